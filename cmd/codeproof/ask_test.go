package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateQuestion(t *testing.T) {
	assert.NoError(t, validateQuestion("How does login work?"))
	assert.NoError(t, validateQuestion(strings.Repeat("q", maxQuestionChars)))

	assert.Error(t, validateQuestion(""))
	assert.Error(t, validateQuestion(strings.Repeat("q", maxQuestionChars+1)))
}
