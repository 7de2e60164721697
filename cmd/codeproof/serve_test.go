package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeproof/codeproof-go/internal/logging"
	"github.com/codeproof/codeproof-go/internal/models"
	"github.com/codeproof/codeproof-go/internal/storage"
)

// fakeRepoStore fakes the two repository methods the webhook handlers
// touch; everything else panics through the embedded nil interface.
type fakeRepoStore struct {
	storage.Store
	repos map[string]*models.Repository
}

func (f *fakeRepoStore) GetRepositoryByFullName(_ context.Context, fullName string) (*models.Repository, error) {
	if r, ok := f.repos[fullName]; ok {
		out := *r
		return &out, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeRepoStore) UpsertRepository(_ context.Context, repo *models.Repository) error {
	r := *repo
	f.repos[repo.FullName] = &r
	return nil
}

func init() {
	// The handlers log through the package-level logger the root command
	// normally initializes.
	logger, _ = logging.NewLogger(logging.Config{Level: logging.ERROR})
}

func sign(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func postEvent(srv *webhookServer, event, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-Hub-Signature-256", signature)
	w := httptest.NewRecorder()
	srv.handleWebhook(w, req)
	return w
}

func TestHandleWebhook_RejectsBadSignature(t *testing.T) {
	srv := &webhookServer{secret: "hook-secret", jobs: make(chan job, 8)}

	w := postEvent(srv, "push", `{}`, "sha256=deadbeef")
	assert.Equal(t, 401, w.Code)
	assert.Empty(t, srv.jobs)
}

func TestHandleWebhook_DefaultBranchPushQueuesIndexAndScan(t *testing.T) {
	srv := &webhookServer{secret: "hook-secret", jobs: make(chan job, 8)}
	body := `{
		"ref": "refs/heads/main",
		"after": "abc123",
		"repository": {"full_name": "acme/shop", "default_branch": "main", "owner": {"login": "acme"}, "name": "shop"},
		"installation": {"id": 42}
	}`

	w := postEvent(srv, "push", body, sign(body, "hook-secret"))
	assert.Equal(t, 202, w.Code)
	require.Len(t, srv.jobs, 2)

	first := <-srv.jobs
	second := <-srv.jobs
	assert.Equal(t, "index acme/shop", first.name)
	assert.Equal(t, "scan acme/shop", second.name)
}

func TestHandleWebhook_FeatureBranchPushIgnored(t *testing.T) {
	srv := &webhookServer{secret: "hook-secret", jobs: make(chan job, 8)}
	body := `{
		"ref": "refs/heads/feature-x",
		"repository": {"full_name": "acme/shop", "default_branch": "main"}
	}`

	w := postEvent(srv, "push", body, sign(body, "hook-secret"))
	assert.Equal(t, 202, w.Code)
	assert.Empty(t, srv.jobs)
}

func TestHandleWebhook_PullRequestOpenedQueuesReview(t *testing.T) {
	srv := &webhookServer{secret: "hook-secret", jobs: make(chan job, 8)}
	body := `{
		"action": "opened",
		"pull_request": {"number": 7},
		"repository": {"full_name": "acme/shop", "default_branch": "main"},
		"installation": {"id": 42}
	}`

	w := postEvent(srv, "pull_request", body, sign(body, "hook-secret"))
	assert.Equal(t, 202, w.Code)
	require.Len(t, srv.jobs, 1)
	assert.Equal(t, "review acme/shop#7", (<-srv.jobs).name)
}

func TestHandleWebhook_InstallationCreatedBindsRepos(t *testing.T) {
	store := &fakeRepoStore{repos: map[string]*models.Repository{}}
	srv := &webhookServer{secret: "hook-secret", store: store, jobs: make(chan job, 8)}
	body := `{
		"action": "created",
		"installation": {"id": 42},
		"repositories": [{"full_name": "acme/shop", "name": "shop"}]
	}`

	w := postEvent(srv, "installation", body, sign(body, "hook-secret"))
	assert.Equal(t, 202, w.Code)

	repo := store.repos["acme/shop"]
	require.NotNil(t, repo)
	assert.Equal(t, int64(42), repo.InstallID)
}

func TestHandleWebhook_InstallationDeletedUnbindsRepos(t *testing.T) {
	store := &fakeRepoStore{repos: map[string]*models.Repository{
		"acme/shop": {ID: "repo-1", FullName: "acme/shop", InstallID: 42},
	}}
	srv := &webhookServer{secret: "hook-secret", store: store, jobs: make(chan job, 8)}
	body := `{
		"action": "deleted",
		"installation": {"id": 42},
		"repositories": [{"full_name": "acme/shop", "name": "shop"}]
	}`

	w := postEvent(srv, "installation", body, sign(body, "hook-secret"))
	assert.Equal(t, 202, w.Code)
	assert.Equal(t, int64(0), store.repos["acme/shop"].InstallID)
}

func TestHandleWebhook_InstallationRepositoriesAdded(t *testing.T) {
	store := &fakeRepoStore{repos: map[string]*models.Repository{}}
	srv := &webhookServer{secret: "hook-secret", store: store, jobs: make(chan job, 8)}
	body := `{
		"action": "added",
		"installation": {"id": 7},
		"repositories_added": [{"full_name": "acme/billing", "name": "billing"}]
	}`

	w := postEvent(srv, "installation_repositories", body, sign(body, "hook-secret"))
	assert.Equal(t, 202, w.Code)

	repo := store.repos["acme/billing"]
	require.NotNil(t, repo)
	assert.Equal(t, int64(7), repo.InstallID)
}

func TestHandleWebhook_ClosedPullRequestIgnored(t *testing.T) {
	srv := &webhookServer{secret: "hook-secret", jobs: make(chan job, 8)}
	body := `{"action": "closed", "pull_request": {"number": 7}, "repository": {"full_name": "acme/shop"}}`

	w := postEvent(srv, "pull_request", body, sign(body, "hook-secret"))
	assert.Equal(t, 202, w.Code)
	assert.Empty(t, srv.jobs)
}

func TestParseRepoArg(t *testing.T) {
	owner, name, err := parseRepoArg("acme/shop")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "shop", name)

	owner, name, err = parseRepoArg("https://github.com/acme/shop")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "shop", name)

	_, _, err = parseRepoArg("not-a-repo")
	assert.Error(t, err)
}
