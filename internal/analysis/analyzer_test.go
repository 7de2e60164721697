package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeproof/codeproof-go/internal/models"
	"github.com/codeproof/codeproof-go/internal/treesitter"
)

func contextWith(files map[string]string) *Context {
	return &Context{
		RepoPath:     "/tmp/repo",
		FileContents: files,
		ParseResult:  &treesitter.ParseResult{},
	}
}

func TestLineForOffset(t *testing.T) {
	content := "one\ntwo\nthree"
	assert.Equal(t, 1, lineForOffset(content, 0))
	assert.Equal(t, 1, lineForOffset(content, 3))
	assert.Equal(t, 2, lineForOffset(content, 4))
	assert.Equal(t, 3, lineForOffset(content, len(content)))
	assert.Equal(t, 3, lineForOffset(content, 999))
}

func TestSecurityAnalyzer(t *testing.T) {
	ctx := contextWith(map[string]string{
		"app.py": "result = eval(user_input)\npassword = \"supersecretvalue\"\n",
	})
	findings := NewSecurityAnalyzer().Analyze(ctx)

	var ruleIDs []string
	for _, f := range findings {
		ruleIDs = append(ruleIDs, f.RuleID)
		assert.NotEmpty(t, f.Snippet)
		assert.NotEmpty(t, f.RuleTriggerReason)
		assert.GreaterOrEqual(t, f.StartLine, 1)
		assert.GreaterOrEqual(t, f.EndLine, f.StartLine)
	}
	assert.Contains(t, ruleIDs, "SEC-001")
	assert.Contains(t, ruleIDs, "SEC-003")
}

func TestReliabilityAnalyzer(t *testing.T) {
	ctx := contextWith(map[string]string{
		"client.py": strings.Join([]string{
			"resp = requests.get(url)",
			"resp = requests.get(url, timeout=5)",
		}, "\n"),
	})
	findings := NewReliabilityAnalyzer().Analyze(ctx)

	require.Len(t, findings, 1)
	assert.Equal(t, "REL-001", findings[0].RuleID)
	assert.Equal(t, 1, findings[0].StartLine)
}

func TestMaintainabilityAnalyzer(t *testing.T) {
	big := models.Symbol{
		Kind: models.SymbolFunction, Name: "huge", QualifiedName: "a.py:huge",
		FilePath: "a.py", LineStart: 1, LineEnd: 120,
		Body: strings.Repeat("x = 1\n", 120),
	}
	small := models.Symbol{
		Kind: models.SymbolFunction, Name: "tiny", QualifiedName: "a.py:tiny",
		FilePath: "a.py", LineStart: 121, LineEnd: 125,
	}
	cls := models.Symbol{
		Kind: models.SymbolClass, Name: "Big", QualifiedName: "a.py:Big",
		FilePath: "a.py", LineStart: 1, LineEnd: 500,
	}

	ctx := contextWith(nil)
	ctx.ParseResult = &treesitter.ParseResult{Symbols: []models.Symbol{big, small, cls}}

	findings := NewMaintainabilityAnalyzer(0).Analyze(ctx)
	require.Len(t, findings, 1)
	assert.Equal(t, "a.py:huge", findings[0].Symbol)
	assert.Contains(t, findings[0].RuleTriggerReason, "120")
	// Snippet is capped at the match-snippet limit.
	assert.LessOrEqual(t, len(strings.Split(findings[0].Snippet, "\n")), maxMatchSnippetLines)
}

func TestArchitectureAnalyzer(t *testing.T) {
	ctx := contextWith(map[string]string{
		"app/controllers/users.py": "def index():\n    return db.query(User).all()\n",
		"app/services/users.py":    "def index():\n    return db.query(User).all()\n",
	})
	findings := NewArchitectureAnalyzer().Analyze(ctx)

	require.Len(t, findings, 1)
	assert.Equal(t, "app/controllers/users.py", findings[0].FilePath)
	assert.Equal(t, "ARCH-001", findings[0].RuleID)
}

func TestPrivacyAnalyzer_PIIInLogs(t *testing.T) {
	ctx := contextWith(map[string]string{
		"audit.py": `logger.info(f"user email {email}")`,
	})
	findings := NewPrivacyAnalyzer().Analyze(ctx)

	var ruleIDs []string
	for _, f := range findings {
		ruleIDs = append(ruleIDs, f.RuleID)
	}
	assert.Contains(t, ruleIDs, "PRIV-001")
	assert.Contains(t, ruleIDs, "PRIV-002")
}

func TestRegistry_Enabled(t *testing.T) {
	r := DefaultRegistry()

	all := r.Enabled(nil)
	assert.Len(t, all, 7)

	some := r.Enabled([]string{"security", "high_precision"})
	require.Len(t, some, 2)
	assert.Equal(t, "security", some[0].Name())
	assert.Equal(t, "high_precision", some[1].Name())

	assert.Contains(t, r.Names(), "maintainability")
}

func TestDiffScoping_PatternAnalyzer(t *testing.T) {
	ctx := contextWith(map[string]string{
		"app.py": "x = eval(a)\ny = eval(b)\n",
	})
	ctx.DiffLines = map[string]map[int]bool{"app.py": {2: true}}

	findings := NewSecurityAnalyzer().Analyze(ctx)
	require.Len(t, findings, 1)
	assert.Equal(t, 2, findings[0].StartLine)
}
