package github

import (
	"context"
	"fmt"
	"io"
	"strings"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	"github.com/codeproof/codeproof-go/internal/config"
	"github.com/codeproof/codeproof-go/internal/logging"
	"github.com/codeproof/codeproof-go/internal/models"
)

// Client wraps the GitHub API with rate pacing. Authentication is either a
// static token (development) or App installation tokens minted per call.
type Client struct {
	auth        *AppAuth
	staticToken string
	rateLimiter *rate.Limiter
	log         *logging.Logger
}

func NewClient(cfg config.GitHubConfig, log *logging.Logger) (*Client, error) {
	c := &Client{
		staticToken: cfg.Token,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		log:         log.WithComponent("github"),
	}

	if cfg.AppID != 0 && cfg.PrivateKeyPEM != "" {
		auth, err := NewAppAuth(cfg.AppID, cfg.PrivateKeyPEM)
		if err != nil {
			return nil, err
		}
		c.auth = auth
	}
	if c.auth == nil && c.staticToken == "" {
		return nil, fmt.Errorf("github auth missing: set a token or app credentials")
	}
	return c, nil
}

// apiClient returns a client authenticated for the repository's
// installation, or the static-token client when configured.
func (c *Client) apiClient(ctx context.Context, installID int64) (*gh.Client, error) {
	if c.staticToken != "" {
		return gh.NewClient(nil).WithAuthToken(c.staticToken), nil
	}
	token, err := c.auth.InstallationToken(ctx, installID)
	if err != nil {
		return nil, err
	}
	return gh.NewClient(nil).WithAuthToken(token), nil
}

// Token returns a clone-capable access token for the installation.
func (c *Client) Token(ctx context.Context, installID int64) (string, error) {
	if c.staticToken != "" {
		return c.staticToken, nil
	}
	return c.auth.InstallationToken(ctx, installID)
}

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(ctx context.Context, installID int64, owner, name string) (*models.Repository, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	api, err := c.apiClient(ctx, installID)
	if err != nil {
		return nil, err
	}

	repo, _, err := api.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("fetch repository: %w", err)
	}

	return &models.Repository{
		Owner:         owner,
		Name:          name,
		FullName:      repo.GetFullName(),
		URL:           repo.GetHTMLURL(),
		DefaultBranch: repo.GetDefaultBranch(),
		InstallID:     installID,
	}, nil
}

// FileContent downloads a file's raw content at an exact ref. Satisfies
// the retriever's fetch port.
func (c *Client) FileContent(ctx context.Context, repo models.Repository, path, ref string) (string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	api, err := c.apiClient(ctx, repo.InstallID)
	if err != nil {
		return "", err
	}

	rc, _, err := api.Repositories.DownloadContents(ctx, repo.Owner, repo.Name, path, &gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", fmt.Errorf("download %s@%s: %w", path, shortRef(ref), err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(content), nil
}

// FileLines fetches a file and returns the 1-based inclusive line span.
func (c *Client) FileLines(ctx context.Context, repo models.Repository, path, ref string, startLine, endLine int) (string, error) {
	content, err := c.FileContent(ctx, repo, path, ref)
	if err != nil {
		return "", err
	}

	lines := strings.Split(content, "\n")
	start := startLine - 1
	if start < 0 {
		start = 0
	}
	end := endLine
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return "", nil
	}
	return strings.Join(lines[start:end], "\n"), nil
}

// PullRequestInfo is the subset of PR metadata the reviewer needs.
type PullRequestInfo struct {
	Number  int
	Title   string
	HTMLURL string
	HeadSHA string
	BaseSHA string
}

// PullRequest fetches PR metadata.
func (c *Client) PullRequest(ctx context.Context, repo models.Repository, number int) (*PullRequestInfo, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	api, err := c.apiClient(ctx, repo.InstallID)
	if err != nil {
		return nil, err
	}

	pr, _, err := api.PullRequests.Get(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		return nil, fmt.Errorf("fetch pull request: %w", err)
	}
	return &PullRequestInfo{
		Number:  number,
		Title:   pr.GetTitle(),
		HTMLURL: pr.GetHTMLURL(),
		HeadSHA: pr.GetHead().GetSHA(),
		BaseSHA: pr.GetBase().GetSHA(),
	}, nil
}

// PRFile is one changed file in a pull request.
type PRFile struct {
	Filename string
	Status   string
	Patch    string
}

// PullRequestFiles lists the changed files with their unified-diff patches.
func (c *Client) PullRequestFiles(ctx context.Context, repo models.Repository, number int) ([]PRFile, error) {
	api, err := c.apiClient(ctx, repo.InstallID)
	if err != nil {
		return nil, err
	}

	opts := &gh.ListOptions{PerPage: 100}
	var files []PRFile
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		page, resp, err := api.PullRequests.ListFiles(ctx, repo.Owner, repo.Name, number, opts)
		if err != nil {
			return nil, fmt.Errorf("list pr files: %w", err)
		}
		for _, f := range page {
			files = append(files, PRFile{
				Filename: f.GetFilename(),
				Status:   f.GetStatus(),
				Patch:    f.GetPatch(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return files, nil
}

// ReviewComment is one inline comment anchored to a changed line.
type ReviewComment struct {
	Path string
	Line int
	Body string
}

// CreatePRReview posts a review. Event is APPROVE, REQUEST_CHANGES, or
// COMMENT.
func (c *Client) CreatePRReview(ctx context.Context, repo models.Repository, number int, event, body string, comments []ReviewComment) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	api, err := c.apiClient(ctx, repo.InstallID)
	if err != nil {
		return err
	}

	req := &gh.PullRequestReviewRequest{
		Event: gh.String(event),
		Body:  gh.String(body),
	}
	for _, cm := range comments {
		req.Comments = append(req.Comments, &gh.DraftReviewComment{
			Path: gh.String(cm.Path),
			Line: gh.Int(cm.Line),
			Body: gh.String(cm.Body),
			Side: gh.String("RIGHT"),
		})
	}

	if _, _, err := api.PullRequests.CreateReview(ctx, repo.Owner, repo.Name, number, req); err != nil {
		return fmt.Errorf("create pr review: %w", err)
	}
	c.log.Info("pr review posted", "repo", repo.FullName, "pr", number, "event", event)
	return nil
}

func shortRef(ref string) string {
	if len(ref) > 12 {
		return ref[:12]
	}
	return ref
}
