package treesitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeproof/codeproof-go/internal/models"
)

func TestPythonFallback(t *testing.T) {
	src := `import os
from app.db import session, engine

class Store:
    def save(self, obj):
        pass

def top_level(a, b):
    pass
`
	res := parsePythonFallback("store.py", src)

	cls := symbolByQName(res.Symbols, "store.py:Store")
	require.NotNil(t, cls)
	assert.Equal(t, models.SymbolClass, cls.Kind)

	method := symbolByQName(res.Symbols, "store.py:Store.save")
	require.NotNil(t, method)
	assert.Equal(t, models.SymbolMethod, method.Kind)
	assert.Equal(t, "store.py:Store", method.Parent)

	fn := symbolByQName(res.Symbols, "store.py:top_level")
	require.NotNil(t, fn)

	// Fallback symbols never carry a body.
	for _, s := range res.Symbols {
		assert.Empty(t, s.Body, s.QualifiedName)
	}

	require.Len(t, res.Imports, 2)
	assert.Equal(t, "os", res.Imports[0].Module)
	assert.Equal(t, "app.db", res.Imports[1].Module)
	assert.ElementsMatch(t, []string{"session", "engine"}, res.Imports[1].ImportedNames)
}

func TestJSFallback(t *testing.T) {
	src := `import helpers from './helpers';
export class Cart {}
export function checkout(cart) {}
const total = (items) => items.length;
`
	res := parseJSFallback("cart.js", src)

	assert.NotNil(t, symbolByQName(res.Symbols, "cart.js:Cart"))
	assert.NotNil(t, symbolByQName(res.Symbols, "cart.js:checkout"))
	assert.NotNil(t, symbolByQName(res.Symbols, "cart.js:total"))
	require.Len(t, res.Imports, 1)
	assert.Equal(t, "./helpers", res.Imports[0].Module)
}

func TestGenericFallback_PHP(t *testing.T) {
	src := `<?php
class UserController extends Controller
{
    public function index()
    {
    }

    private function guard()
    {
    }
}
`
	res := parseGenericFallback("app/Http/UserController.php", src)

	assert.NotNil(t, symbolByQName(res.Symbols, "app/Http/UserController.php:UserController"))
	assert.NotNil(t, symbolByQName(res.Symbols, "app/Http/UserController.php:index"))
	assert.NotNil(t, symbolByQName(res.Symbols, "app/Http/UserController.php:guard"))
}

func TestGenericFallback_Go(t *testing.T) {
	src := `package main

type Server struct{}

func (s *Server) Start() error { return nil }

func main() {}
`
	res := parseGenericFallback("main.go", src)

	assert.NotNil(t, symbolByQName(res.Symbols, "main.go:Server"))
	assert.NotNil(t, symbolByQName(res.Symbols, "main.go:Start"))
	assert.NotNil(t, symbolByQName(res.Symbols, "main.go:main"))
}

func TestGenericFallback_UnknownExtensionYieldsNothing(t *testing.T) {
	res := parseGenericFallback("notes.txt", "def nothing():\n")
	assert.Empty(t, res.Symbols)
}

func TestStripStringQuotes(t *testing.T) {
	assert.Equal(t, "doc", stripStringQuotes(`"""doc"""`))
	assert.Equal(t, "doc", stripStringQuotes(`'''doc'''`))
	assert.Equal(t, "doc", stripStringQuotes(`"doc"`))
	assert.Equal(t, "doc", stripStringQuotes(`'doc'`))
	assert.Equal(t, "no quotes", stripStringQuotes("no quotes"))
}
