package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeproof/codeproof-go/internal/embeddings"
	"github.com/codeproof/codeproof-go/internal/github"
	"github.com/codeproof/codeproof-go/internal/ingestion"
	"github.com/codeproof/codeproof-go/internal/llm"
	"github.com/codeproof/codeproof-go/internal/models"
	"github.com/codeproof/codeproof-go/internal/review"
	"github.com/codeproof/codeproof-go/internal/scan"
	"github.com/codeproof/codeproof-go/internal/storage"
	"github.com/codeproof/codeproof-go/internal/treesitter"
)

const (
	jobSoftLimit  = 9 * time.Minute
	jobHardLimit  = 10 * time.Minute
	maxQueuedJobs = 256
)

var serveAddr string

var serveWebhookCmd = &cobra.Command{
	Use:   "serve-webhook",
	Short: "Serve the GitHub webhook endpoint",
	Long: `Listens for push and pull_request events. Pushes to the default
branch trigger re-indexing and a scan; pull requests trigger a
high-precision review posted back to the PR.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := newStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		gh := newGitHubClient()
		if gh == nil {
			return fmt.Errorf("webhook serving requires github app credentials")
		}
		llmClient, err := llm.NewClient(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("llm client: %w", err)
		}
		vectors, err := embeddings.NewQdrantStore(cfg.Qdrant)
		if err != nil {
			return fmt.Errorf("qdrant: %w", err)
		}

		parser := treesitter.NewParser(logger)
		defer parser.Close()

		srv := &webhookServer{
			store:    store,
			gh:       gh,
			reviewer: review.NewReviewer(gh, logger),
			scanner:  scan.NewOrchestrator(store, newCloner(), gh, parser, logger),
			indexer: ingestion.NewOrchestrator(store, newCloner(), gh, parser,
				embeddings.BuildChunks, embeddings.NewPipeline(llmClient, vectors, logger), logger),
			secret: cfg.GitHub.WebhookSecret,
			jobs:   make(chan job, maxQueuedJobs),
		}
		srv.startWorkers(ctx, 2*runtime.NumCPU())

		mux := http.NewServeMux()
		mux.HandleFunc("POST /webhook", srv.handleWebhook)
		mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		httpSrv := &http.Server{
			Addr:              serveAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			httpSrv.Shutdown(shutdownCtx)
		}()

		logger.Info("webhook server listening", "addr", serveAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

func init() {
	serveWebhookCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
}

type job struct {
	name string
	run  func(ctx context.Context) error
}

type webhookServer struct {
	store    storage.Store
	gh       *github.Client
	reviewer *review.Reviewer
	scanner  *scan.Orchestrator
	indexer  *ingestion.Orchestrator
	secret   string
	jobs     chan job
}

// startWorkers drains the job queue with a bounded pool. Each job gets a
// hard deadline; a warning fires at the soft limit so slow repositories
// show up before they are killed.
func (s *webhookServer) startWorkers(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case j := <-s.jobs:
					s.runJob(ctx, j)
				}
			}
		}()
	}
}

func (s *webhookServer) runJob(ctx context.Context, j job) {
	jobCtx, cancel := context.WithTimeout(ctx, jobHardLimit)
	defer cancel()

	soft := time.AfterFunc(jobSoftLimit, func() {
		logger.Warn("job exceeded soft time limit", "job", j.name)
	})
	defer soft.Stop()

	start := time.Now()
	if err := j.run(jobCtx); err != nil {
		logger.Error("job failed", "job", j.name, "duration", time.Since(start), "error", err)
		return
	}
	logger.Info("job finished", "job", j.name, "duration", time.Since(start))
}

func (s *webhookServer) enqueue(j job) bool {
	select {
	case s.jobs <- j:
		return true
	default:
		logger.Error("job queue full, dropping", "job", j.name)
		return false
	}
}

// webhookRepository is the slice of the event payload we consume.
type webhookRepository struct {
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
	Owner         struct {
		Login string `json:"login"`
	} `json:"owner"`
	Name string `json:"name"`
}

type pushEvent struct {
	Ref          string            `json:"ref"`
	After        string            `json:"after"`
	Repository   webhookRepository `json:"repository"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
}

type pullRequestEvent struct {
	Action      string `json:"action"`
	PullRequest struct {
		Number int `json:"number"`
	} `json:"pull_request"`
	Repository   webhookRepository `json:"repository"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
}

func (s *webhookServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	if !github.VerifyWebhookSignature(body, r.Header.Get("X-Hub-Signature-256"), s.secret) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event := r.Header.Get("X-GitHub-Event")
	switch event {
	case "push":
		s.handlePush(w, body)
	case "pull_request":
		s.handlePullRequest(w, body)
	case "installation", "installation_repositories":
		s.handleInstallation(r.Context(), w, body)
	case "ping":
		w.WriteHeader(http.StatusOK)
	default:
		logger.Debug("ignoring webhook event", "event", event)
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *webhookServer) handlePush(w http.ResponseWriter, body []byte) {
	var ev pushEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}
	// Only the default branch head feeds the index and the scan history.
	if ev.Ref != "refs/heads/"+ev.Repository.DefaultBranch {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	s.enqueue(job{
		name: "index " + ev.Repository.FullName,
		run: func(ctx context.Context) error {
			repo, err := s.resolveEventRepo(ctx, ev.Repository, ev.Installation.ID)
			if err != nil {
				return err
			}
			_, err = s.indexer.IndexRepository(ctx, repo, ev.After)
			return err
		},
	})
	s.enqueue(job{
		name: "scan " + ev.Repository.FullName,
		run: func(ctx context.Context) error {
			repo, err := s.resolveEventRepo(ctx, ev.Repository, ev.Installation.ID)
			if err != nil {
				return err
			}
			_, err = s.scanner.Run(ctx, repo, scan.Options{Ref: ev.After})
			return err
		},
	})
	w.WriteHeader(http.StatusAccepted)
}

func (s *webhookServer) handlePullRequest(w http.ResponseWriter, body []byte) {
	var ev pullRequestEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}
	switch ev.Action {
	case "opened", "synchronize", "reopened":
	default:
		w.WriteHeader(http.StatusAccepted)
		return
	}

	s.enqueue(job{
		name: fmt.Sprintf("review %s#%d", ev.Repository.FullName, ev.PullRequest.Number),
		run: func(ctx context.Context) error {
			repo, err := s.resolveEventRepo(ctx, ev.Repository, ev.Installation.ID)
			if err != nil {
				return err
			}
			_, err = s.reviewer.ReviewPullRequest(ctx, *repo, ev.PullRequest.Number)
			return err
		},
	})
	w.WriteHeader(http.StatusAccepted)
}

type installationEvent struct {
	Action       string `json:"action"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
	Repositories        []webhookRepository `json:"repositories"`
	RepositoriesAdded   []webhookRepository `json:"repositories_added"`
	RepositoriesRemoved []webhookRepository `json:"repositories_removed"`
}

// handleInstallation keeps the repo-to-installation binding current so
// later pushes and PRs can mint tokens for the right installation.
func (s *webhookServer) handleInstallation(ctx context.Context, w http.ResponseWriter, body []byte) {
	var ev installationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	var bind, unbind []webhookRepository
	switch ev.Action {
	case "created":
		bind = ev.Repositories
	case "deleted":
		unbind = ev.Repositories
	case "added":
		bind = ev.RepositoriesAdded
	case "removed":
		unbind = ev.RepositoriesRemoved
	}

	for _, wr := range bind {
		repo, err := resolveRepository(ctx, s.store, wr.FullName)
		if err != nil {
			logger.Warn("could not bind installation", "repo", wr.FullName, "error", err)
			continue
		}
		repo.InstallID = ev.Installation.ID
		if err := s.store.UpsertRepository(ctx, repo); err != nil {
			logger.Warn("could not bind installation", "repo", wr.FullName, "error", err)
		}
	}
	for _, wr := range unbind {
		// Unknown repos have nothing to unbind.
		repo, err := s.store.GetRepositoryByFullName(ctx, wr.FullName)
		if err != nil {
			continue
		}
		repo.InstallID = 0
		if err := s.store.UpsertRepository(ctx, repo); err != nil {
			logger.Warn("could not unbind installation", "repo", wr.FullName, "error", err)
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *webhookServer) resolveEventRepo(ctx context.Context, wr webhookRepository, installID int64) (*models.Repository, error) {
	repo, err := resolveRepository(ctx, s.store, wr.FullName)
	if err != nil {
		return nil, err
	}
	repo.URL = wr.HTMLURL
	repo.DefaultBranch = wr.DefaultBranch
	repo.InstallID = installID
	if err := s.store.UpsertRepository(ctx, repo); err != nil {
		return nil, err
	}
	return repo, nil
}
