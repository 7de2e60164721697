package answer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeproof/codeproof-go/internal/logging"
	"github.com/codeproof/codeproof-go/internal/models"
)

type scriptedCompleter struct {
	responses []string
	calls     int
	prompts   []string
}

func (c *scriptedCompleter) Complete(_ context.Context, _, userPrompt string) (string, error) {
	c.prompts = append(c.prompts, userPrompt)
	if c.calls >= len(c.responses) {
		return "", fmt.Errorf("unexpected call %d", c.calls)
	}
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}

func testEngine(t *testing.T, c *scriptedCompleter) *Engine {
	t.Helper()
	log, err := logging.NewLogger(logging.Config{Level: logging.ERROR})
	require.NoError(t, err)
	return NewEngine(c, log)
}

func answerRepo() models.Repository {
	return models.Repository{
		ID:                "repo-1",
		FullName:          "acme/shop",
		LastIndexedCommit: "abc123",
	}
}

func twoSources() []models.RetrievedSource {
	return []models.RetrievedSource{
		{Index: 1, FilePath: "app/auth.py", StartLine: 10, EndLine: 20, Score: 0.9,
			SymbolName: "app/auth.py:login",
			Content:    "def login():\n    return jwt.encode(payload, key)"},
		{Index: 2, FilePath: "app/session.py", StartLine: 5, EndLine: 12, Score: 0.7,
			Content: "def create_session(user):\n    token = jwt.encode(claims, key)"},
	}
}

func TestAnswer_VerifiedHighConfidence(t *testing.T) {
	c := &scriptedCompleter{responses: []string{`{
		"sections": [
			{"heading": "Login", "text": "Login encodes a JWT.", "source_ids": [1],
			 "quoted_spans": [{"source_id": 1, "quote": "jwt.encode"}]},
			{"heading": "Sessions", "text": "Sessions also sign JWTs.", "source_ids": [2],
			 "quoted_spans": [{"source_id": 2, "quote": "jwt.encode"}]}
		],
		"unknowns": []
	}`}}
	e := testEngine(t, c)

	ans, err := e.Answer(context.Background(), answerRepo(), "how are JWTs issued", twoSources())
	require.NoError(t, err)

	require.Len(t, ans.Sections, 2)
	assert.True(t, ans.Sections[0].QuotedSpans[0].Verified)
	assert.True(t, ans.Sections[1].QuotedSpans[0].Verified)
	assert.Equal(t, models.TierHigh, ans.ConfidenceTier)
	assert.True(t, ans.ValidationPassed)
	require.Len(t, ans.Citations, 2)
	assert.Equal(t, "https://github.com/acme/shop/blob/abc123/app/auth.py#L10-L20", ans.Citations[0].GitHubURL)
}

func TestAnswer_FabricatedQuoteDropsSection(t *testing.T) {
	c := &scriptedCompleter{responses: []string{`{
		"sections": [
			{"text": "Real claim.", "source_ids": [1],
			 "quoted_spans": [{"source_id": 1, "quote": "jwt.encode"}]},
			{"text": "Invented claim.", "source_ids": [2],
			 "quoted_spans": [{"source_id": 2, "quote": "rsa.sign_blind"}]}
		],
		"unknowns": []
	}`}}
	e := testEngine(t, c)

	ans, err := e.Answer(context.Background(), answerRepo(), "q", twoSources())
	require.NoError(t, err)

	require.Len(t, ans.Sections, 1)
	assert.Equal(t, "Real claim.", ans.Sections[0].Text)
	assert.False(t, ans.ValidationPassed)
	require.Len(t, ans.ValidationErrors, 1)
	assert.Contains(t, ans.ValidationErrors[0], "no quoted span could be verified")
	// Only the surviving section's source is cited.
	require.Len(t, ans.Citations, 1)
	assert.Equal(t, 1, ans.Citations[0].SourceIndex)
}

func TestAnswer_QuotelessSectionFlaggedUnverified(t *testing.T) {
	c := &scriptedCompleter{responses: []string{`{
		"sections": [{"text": "General observation.", "source_ids": [1]}],
		"unknowns": []
	}`}}
	e := testEngine(t, c)

	ans, err := e.Answer(context.Background(), answerRepo(), "q", twoSources())
	require.NoError(t, err)

	require.Len(t, ans.Sections, 1)
	assert.True(t, ans.Sections[0].Unverified)
	// No verified quotes anywhere.
	assert.Equal(t, models.TierNone, ans.ConfidenceTier)
}

func TestAnswer_InvalidSourceIDStripped(t *testing.T) {
	c := &scriptedCompleter{responses: []string{`{
		"sections": [{"text": "Claim.", "source_ids": [1, 99],
			"quoted_spans": [{"source_id": 1, "quote": "jwt.encode"}]}],
		"unknowns": []
	}`}}
	e := testEngine(t, c)

	ans, err := e.Answer(context.Background(), answerRepo(), "q", twoSources())
	require.NoError(t, err)

	require.Len(t, ans.Sections, 1)
	assert.Equal(t, []int{1}, ans.Sections[0].SourceIDs)
	assert.False(t, ans.ValidationPassed)
}

func TestAnswer_RetryOnBadJSON(t *testing.T) {
	c := &scriptedCompleter{responses: []string{
		"Sure! Here is my analysis of the code.",
		`{"sections": [{"text": "Claim.", "source_ids": [1],
			"quoted_spans": [{"source_id": 1, "quote": "jwt.encode"}]}], "unknowns": []}`,
	}}
	e := testEngine(t, c)

	ans, err := e.Answer(context.Background(), answerRepo(), "q", twoSources())
	require.NoError(t, err)
	assert.Equal(t, 2, c.calls)
	assert.Contains(t, c.prompts[1], "Remember: Output ONLY valid JSON.")
	require.Len(t, ans.Sections, 1)
}

func TestAnswer_DegradedWhenJSONUnrecoverable(t *testing.T) {
	c := &scriptedCompleter{responses: []string{"not json", "still not json"}}
	e := testEngine(t, c)

	ans, err := e.Answer(context.Background(), answerRepo(), "q", twoSources())
	require.NoError(t, err)

	assert.Equal(t, models.TierNone, ans.ConfidenceTier)
	assert.False(t, ans.ValidationPassed)
	assert.Contains(t, ans.ValidationErrors, "JSON parsing failed")
	require.Len(t, ans.Sections, 1)
	assert.True(t, ans.Sections[0].Unverified)
	assert.Len(t, ans.Citations, 2)
	assert.Equal(t, []string{"q"}, ans.Unknowns)
}

func TestAnswer_NoEvidence(t *testing.T) {
	c := &scriptedCompleter{}
	e := testEngine(t, c)

	ans, err := e.Answer(context.Background(), answerRepo(), "where is billing handled", nil)
	require.NoError(t, err)

	assert.Equal(t, 0, c.calls)
	assert.Equal(t, models.TierNone, ans.ConfidenceTier)
	assert.Empty(t, ans.Citations)
	assert.Equal(t, []string{"where is billing handled"}, ans.Unknowns)
}

func TestBuildUserPrompt(t *testing.T) {
	prompt := buildUserPrompt("how does login work", twoSources())
	assert.Contains(t, prompt, "[Source 1] app/auth.py:10-20 (app/auth.py:login)")
	assert.Contains(t, prompt, "[Source 2] app/session.py:5-12")
	assert.Contains(t, prompt, "QUESTION: how does login work")
}

func TestConfidenceTier(t *testing.T) {
	tests := []struct {
		name     string
		v, t, s  int
		f        int
		avgScore float64
		want     models.ConfidenceTier
	}{
		{"no verified quotes", 0, 4, 0, 0, 0.9, models.TierNone},
		{"under half verified", 1, 3, 1, 1, 0.9, models.TierLow},
		{"strong multi-file", 3, 4, 2, 2, 0.6, models.TierHigh},
		{"single file stays medium", 3, 4, 2, 1, 0.6, models.TierMedium},
		{"decent but weak retrieval", 2, 3, 2, 2, 0.2, models.TierLow},
		{"half verified one section", 1, 2, 1, 1, 0.4, models.TierMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := confidenceTier(tt.v, tt.t, tt.s, tt.f, tt.avgScore)
			assert.Equal(t, tt.want, got)
		})
	}
}
