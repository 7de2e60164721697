package review

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeproof/codeproof-go/internal/github"
	"github.com/codeproof/codeproof-go/internal/logging"
	"github.com/codeproof/codeproof-go/internal/models"
)

type fakeGitHub struct {
	pr       *github.PullRequestInfo
	files    []github.PRFile
	contents map[string]string

	postedEvent    string
	postedBody     string
	postedComments []github.ReviewComment
}

func (f *fakeGitHub) PullRequest(context.Context, models.Repository, int) (*github.PullRequestInfo, error) {
	return f.pr, nil
}

func (f *fakeGitHub) PullRequestFiles(context.Context, models.Repository, int) ([]github.PRFile, error) {
	return f.files, nil
}

func (f *fakeGitHub) FileContent(_ context.Context, _ models.Repository, path, _ string) (string, error) {
	content, ok := f.contents[path]
	if !ok {
		return "", fmt.Errorf("not found: %s", path)
	}
	return content, nil
}

func (f *fakeGitHub) CreatePRReview(_ context.Context, _ models.Repository, _ int, event, body string, comments []github.ReviewComment) error {
	f.postedEvent = event
	f.postedBody = body
	f.postedComments = comments
	return nil
}

func testReviewer(t *testing.T, gh *fakeGitHub) *Reviewer {
	t.Helper()
	log, err := logging.NewLogger(logging.Config{Level: logging.ERROR})
	require.NoError(t, err)
	return NewReviewer(gh, log)
}

func reviewRepo() models.Repository {
	return models.Repository{ID: "repo-1", Owner: "acme", Name: "shop", FullName: "acme/shop"}
}

func TestReviewPullRequest_SecretInDiffRequestsChanges(t *testing.T) {
	patch := "@@ -1,2 +1,3 @@\n context\n+GITHUB_TOKEN = 'ghp_" + "abcdefghijklmnopqrstuvwxyz0123456789'\n context"
	gh := &fakeGitHub{
		pr:    &github.PullRequestInfo{Number: 7, HeadSHA: "headsha"},
		files: []github.PRFile{{Filename: "src/deploy.js", Status: "modified", Patch: patch}},
		contents: map[string]string{
			"src/deploy.js": "context\nGITHUB_TOKEN = 'ghp_" + "abcdefghijklmnopqrstuvwxyz0123456789'\ncontext",
		},
	}
	r := testReviewer(t, gh)

	result, err := r.ReviewPullRequest(context.Background(), reviewRepo(), 7)
	require.NoError(t, err)

	assert.Equal(t, 1, result.CriticalCount)
	assert.Equal(t, "REQUEST_CHANGES", result.Event)
	assert.Equal(t, "REQUEST_CHANGES", gh.postedEvent)
	assert.Contains(t, gh.postedBody, ":red_circle: Critical (1)")
	require.Len(t, gh.postedComments, 1)
	assert.Equal(t, "src/deploy.js", gh.postedComments[0].Path)
	// The raw token never reaches the review.
	assert.NotContains(t, gh.postedBody, "abcdefghijklmnopqrstuvwxyz")
	assert.NotContains(t, gh.postedComments[0].Body, "abcdefghijklmnopqrstuvwxyz")
}

func TestReviewPullRequest_SecretOutsideDiffIgnored(t *testing.T) {
	// The secret is on line 2 but the diff only touched line 4.
	patch := "@@ -4,1 +4,1 @@\n+added_line = true"
	gh := &fakeGitHub{
		pr:    &github.PullRequestInfo{Number: 8, HeadSHA: "headsha"},
		files: []github.PRFile{{Filename: "src/old.js", Status: "modified", Patch: patch}},
		contents: map[string]string{
			"src/old.js": "a\ntoken = 'ghp_" + "abcdefghijklmnopqrstuvwxyz0123456789'\nb\nadded_line = true",
		},
	}
	r := testReviewer(t, gh)

	result, err := r.ReviewPullRequest(context.Background(), reviewRepo(), 8)
	require.NoError(t, err)

	assert.Equal(t, 0, result.CriticalCount)
	assert.Equal(t, "COMMENT", result.Event)
	assert.Contains(t, gh.postedBody, "No high-risk issues detected")
}

func TestReviewPullRequest_RemovedFilesSkipped(t *testing.T) {
	gh := &fakeGitHub{
		pr:       &github.PullRequestInfo{Number: 9, HeadSHA: "headsha"},
		files:    []github.PRFile{{Filename: "gone.py", Status: "removed", Patch: "@@ -1 +0,0 @@\n-x = 1"}},
		contents: map[string]string{},
	}
	r := testReviewer(t, gh)

	result, err := r.ReviewPullRequest(context.Background(), reviewRepo(), 9)
	require.NoError(t, err)
	assert.Empty(t, result.Findings)
	assert.Equal(t, 1, result.FilesChanged)
}

func TestReviewPullRequest_DangerousFileWithoutContent(t *testing.T) {
	gh := &fakeGitHub{
		pr:       &github.PullRequestInfo{Number: 10, HeadSHA: "headsha"},
		files:    []github.PRFile{{Filename: ".env", Status: "added"}},
		contents: map[string]string{},
	}
	r := testReviewer(t, gh)

	result, err := r.ReviewPullRequest(context.Background(), reviewRepo(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, result.Findings)
	assert.Equal(t, "REQUEST_CHANGES", result.Event)
}

func TestParseDiffLines(t *testing.T) {
	patch := `@@ -10,3 +10,5 @@ func foo() {
 kept
+added one
+added two
 kept
-removed
+added three`

	lines := ParseDiffLines(patch)
	assert.True(t, lines[11])
	assert.True(t, lines[12])
	assert.True(t, lines[14])
	assert.False(t, lines[10])
	assert.False(t, lines[13])
	assert.Len(t, lines, 3)
}

func TestParseDiffLines_Empty(t *testing.T) {
	assert.Nil(t, ParseDiffLines(""))
}
