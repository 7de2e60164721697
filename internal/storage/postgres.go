package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/codeproof/codeproof-go/internal/config"
	"github.com/codeproof/codeproof-go/internal/logging"
	"github.com/codeproof/codeproof-go/internal/models"
)

// PostgresStore implements Store on PostgreSQL via pgx.
type PostgresStore struct {
	db  *sqlx.DB
	log *logging.Logger
}

func NewPostgresStore(ctx context.Context, cfg config.StorageConfig, log *logging.Logger) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	pool := cfg.PoolSize
	if pool <= 0 {
		pool = 25
	}
	db.SetMaxOpenConns(pool)
	db.SetMaxIdleConns(pool / 5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &PostgresStore{db: db, log: log.WithComponent("storage")}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Repository operations

func (s *PostgresStore) UpsertRepository(ctx context.Context, repo *models.Repository) error {
	query := `
		INSERT INTO repositories (id, owner, name, full_name, url, default_branch,
			install_id, index_status, created_at, updated_at)
		VALUES (:id, :owner, :name, :full_name, :url, :default_branch,
			:install_id, :index_status, NOW(), NOW())
		ON CONFLICT (full_name) DO UPDATE SET
			url = EXCLUDED.url,
			default_branch = EXCLUDED.default_branch,
			install_id = EXCLUDED.install_id,
			updated_at = NOW()
	`

	if _, err := s.db.NamedExecContext(ctx, query, repo); err != nil {
		return fmt.Errorf("upsert repository: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRepository(ctx context.Context, repoID string) (*models.Repository, error) {
	return s.getRepository(ctx, `SELECT * FROM repositories WHERE id = $1 AND deleted_at IS NULL`, repoID)
}

func (s *PostgresStore) GetRepositoryByFullName(ctx context.Context, fullName string) (*models.Repository, error) {
	return s.getRepository(ctx, `SELECT * FROM repositories WHERE full_name = $1 AND deleted_at IS NULL`, fullName)
}

func (s *PostgresStore) getRepository(ctx context.Context, query string, arg any) (*models.Repository, error) {
	var repo models.Repository
	err := s.db.GetContext(ctx, &repo, query, arg)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get repository: %w", err)
	}
	return &repo, nil
}

func (s *PostgresStore) SetIndexStatus(ctx context.Context, repoID string, status models.IndexStatus, indexError string) error {
	query := `UPDATE repositories SET index_status = $2, index_error = $3, updated_at = NOW() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, repoID, status, indexError); err != nil {
		return fmt.Errorf("set index status: %w", err)
	}
	return nil
}

func (s *PostgresStore) FinishIndex(ctx context.Context, repoID, commitSHA string, fileCount, symbolCount int) error {
	query := `
		UPDATE repositories
		SET index_status = $2, index_error = '', last_indexed_commit = $3,
			file_count = $4, symbol_count = $5, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, repoID, models.IndexStatusReady, commitSHA, fileCount, symbolCount); err != nil {
		return fmt.Errorf("finish index: %w", err)
	}
	return nil
}

// Scan run operations

type scanRunRow struct {
	models.ScanRun
	DegradedModesJSON []byte `db:"degraded_modes"`
}

func (s *PostgresStore) FindScanRun(ctx context.Context, repoID, commitSHA, configHash string) (*models.ScanRun, error) {
	var row scanRunRow
	query := `SELECT * FROM scan_runs WHERE repo_id = $1 AND commit_sha = $2 AND config_hash = $3`
	err := s.db.GetContext(ctx, &row, query, repoID, commitSHA, configHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find scan run: %w", err)
	}

	run := row.ScanRun
	if len(row.DegradedModesJSON) > 0 {
		if err := json.Unmarshal(row.DegradedModesJSON, &run.DegradedModes); err != nil {
			return nil, fmt.Errorf("decode degraded modes: %w", err)
		}
	}
	return &run, nil
}

func (s *PostgresStore) CreateScanRun(ctx context.Context, run *models.ScanRun) error {
	modes, err := json.Marshal(orEmpty(run.DegradedModes))
	if err != nil {
		return fmt.Errorf("encode degraded modes: %w", err)
	}

	query := `
		INSERT INTO scan_runs (id, repo_id, commit_sha, config_hash, status,
			degraded_modes, error, started_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	_, err = s.db.ExecContext(ctx, query,
		run.ID, run.RepoID, run.CommitSHA, run.ConfigHash, run.Status,
		modes, run.Error, run.StartedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrConflict
		}
		return fmt.Errorf("create scan run: %w", err)
	}
	return nil
}

func (s *PostgresStore) FinishScanRun(ctx context.Context, run *models.ScanRun) error {
	modes, err := json.Marshal(orEmpty(run.DegradedModes))
	if err != nil {
		return fmt.Errorf("encode degraded modes: %w", err)
	}

	query := `
		UPDATE scan_runs
		SET status = $2, degraded_modes = $3, error = $4, finished_at = $5
		WHERE id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, run.ID, run.Status, modes, run.Error, run.FinishedAt); err != nil {
		return fmt.Errorf("finish scan run: %w", err)
	}
	return nil
}

// Scan artifact operations

func (s *PostgresStore) SaveFileSnapshots(ctx context.Context, snapshots []models.FileSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO file_snapshots (id, scan_run_id, path, language, content_hash, size_bytes, is_binary)
		VALUES (:id, :scan_run_id, :path, :language, :content_hash, :size_bytes, :is_binary)
	`
	for _, snap := range snapshots {
		if _, err := tx.NamedExecContext(ctx, query, snap); err != nil {
			return fmt.Errorf("save file snapshot: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) SaveCoverageSummary(ctx context.Context, summary *models.CoverageSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode coverage summary: %w", err)
	}

	query := `
		INSERT INTO coverage_summaries (scan_run_id, summary)
		VALUES ($1, $2)
		ON CONFLICT (scan_run_id) DO UPDATE SET summary = EXCLUDED.summary
	`
	if _, err := s.db.ExecContext(ctx, query, summary.ScanRunID, payload); err != nil {
		return fmt.Errorf("save coverage summary: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveFindings(ctx context.Context, findings []models.Finding) error {
	if len(findings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	findingQuery := `
		INSERT INTO findings (id, scan_run_id, rule_id, category, title, description,
			severity, confidence, confidence_rationale, impact_score, exploitability_score,
			impact, likelihood, regulatory_tags, tags, dedupe_key, remediation_summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	instanceQuery := `
		INSERT INTO finding_instances (id, finding_id, symbol, evidence)
		VALUES ($1, $2, $3, $4)
	`

	for _, f := range findings {
		rationale, err := json.Marshal(orEmpty(f.ConfidenceRationale))
		if err != nil {
			return fmt.Errorf("encode finding: %w", err)
		}
		impact, _ := json.Marshal(f.Impact)
		likelihood, _ := json.Marshal(f.Likelihood)
		regTags, _ := json.Marshal(orEmpty(f.RegulatoryTags))
		tags, _ := json.Marshal(orEmpty(f.Tags))

		_, err = tx.ExecContext(ctx, findingQuery,
			f.ID, f.ScanRunID, f.RuleID, f.Category, f.Title, f.Description,
			f.Severity, f.Confidence, rationale, f.ImpactScore, f.ExploitabilityScore,
			impact, likelihood, regTags, tags, f.DedupeKey, f.RemediationSummary)
		if err != nil {
			return fmt.Errorf("save finding: %w", err)
		}

		for _, inst := range f.Instances {
			evidence, err := json.Marshal(inst.Evidence)
			if err != nil {
				return fmt.Errorf("encode evidence: %w", err)
			}
			if _, err := tx.ExecContext(ctx, instanceQuery, inst.ID, f.ID, inst.Symbol, evidence); err != nil {
				return fmt.Errorf("save finding instance: %w", err)
			}
		}
	}
	return tx.Commit()
}

type findingRow struct {
	models.Finding
	ConfidenceRationaleJSON []byte `db:"confidence_rationale"`
	ImpactJSON              []byte `db:"impact"`
	LikelihoodJSON          []byte `db:"likelihood"`
	RegulatoryTagsJSON      []byte `db:"regulatory_tags"`
	TagsJSON                []byte `db:"tags"`
}

func (s *PostgresStore) GetFindings(ctx context.Context, scanRunID string) ([]models.Finding, error) {
	var rows []findingRow
	query := `
		SELECT * FROM findings
		WHERE scan_run_id = $1
		ORDER BY impact_score DESC, rule_id
	`
	if err := s.db.SelectContext(ctx, &rows, query, scanRunID); err != nil {
		return nil, fmt.Errorf("get findings: %w", err)
	}

	findings := make([]models.Finding, 0, len(rows))
	for _, row := range rows {
		f := row.Finding
		json.Unmarshal(row.ConfidenceRationaleJSON, &f.ConfidenceRationale)
		json.Unmarshal(row.ImpactJSON, &f.Impact)
		json.Unmarshal(row.LikelihoodJSON, &f.Likelihood)
		json.Unmarshal(row.RegulatoryTagsJSON, &f.RegulatoryTags)
		json.Unmarshal(row.TagsJSON, &f.Tags)

		instances, err := s.getInstances(ctx, f.ID)
		if err != nil {
			return nil, err
		}
		f.Instances = instances
		findings = append(findings, f)
	}
	return findings, nil
}

type instanceRow struct {
	models.FindingInstance
	EvidenceJSON []byte `db:"evidence"`
}

func (s *PostgresStore) getInstances(ctx context.Context, findingID string) ([]models.FindingInstance, error) {
	var rows []instanceRow
	query := `SELECT * FROM finding_instances WHERE finding_id = $1`
	if err := s.db.SelectContext(ctx, &rows, query, findingID); err != nil {
		return nil, fmt.Errorf("get finding instances: %w", err)
	}

	instances := make([]models.FindingInstance, 0, len(rows))
	for _, row := range rows {
		inst := row.FindingInstance
		if err := json.Unmarshal(row.EvidenceJSON, &inst.Evidence); err != nil {
			return nil, fmt.Errorf("decode evidence: %w", err)
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Index record operations

// ReplaceIndex swaps a repository's file and symbol rows in one
// transaction, so searches never observe a half-indexed repo.
func (s *PostgresStore) ReplaceIndex(ctx context.Context, repoID string, files []FileRecord, symbols []models.Symbol) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM symbols WHERE repo_id = $1`, repoID); err != nil {
		return fmt.Errorf("delete symbols: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE repo_id = $1`, repoID); err != nil {
		return fmt.Errorf("delete files: %w", err)
	}

	fileQuery := `
		INSERT INTO files (repo_id, path, language, size_bytes)
		VALUES (:repo_id, :path, :language, :size_bytes)
	`
	for _, f := range files {
		f.RepoID = repoID
		if _, err := tx.NamedExecContext(ctx, fileQuery, f); err != nil {
			return fmt.Errorf("save file: %w", err)
		}
	}

	symbolQuery := `
		INSERT INTO symbols (repo_id, kind, name, qualified_name, file_path,
			line_start, line_end, signature, docstring, parent, visibility, search_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (repo_id, file_path, qualified_name) DO NOTHING
	`
	for _, sym := range symbols {
		searchText := strings.Join([]string{sym.Name, sym.QualifiedName, sym.Signature, sym.Docstring}, " ")
		_, err := tx.ExecContext(ctx, symbolQuery,
			repoID, sym.Kind, sym.Name, sym.QualifiedName, sym.FilePath,
			sym.LineStart, sym.LineEnd, sym.Signature, sym.Docstring,
			sym.Parent, sym.Visibility, searchText)
		if err != nil {
			return fmt.Errorf("save symbol: %w", err)
		}
	}
	return tx.Commit()
}

// SymbolSearch runs pg_trgm similarity over symbol names and qualified
// names, with a substring fallback on the denormalized search_text.
func (s *PostgresStore) SymbolSearch(ctx context.Context, repoID, query string, limit int) ([]models.RetrievedSource, error) {
	sqlQuery := `
		SELECT
			qualified_name,
			file_path,
			line_start,
			line_end,
			GREATEST(similarity(name, $2), similarity(qualified_name, $2)) AS score
		FROM symbols
		WHERE repo_id = $1
		AND (name % $2 OR qualified_name % $2 OR search_text ILIKE $3)
		ORDER BY score DESC
		LIMIT $4
	`

	firstKeyword := query
	if i := strings.IndexByte(query, ' '); i > 0 {
		firstKeyword = query[:i]
	}

	rows, err := s.db.QueryxContext(ctx, sqlQuery, repoID, query, "%"+firstKeyword+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("symbol search: %w", err)
	}
	defer rows.Close()

	var sources []models.RetrievedSource
	for rows.Next() {
		var (
			src   models.RetrievedSource
			score sql.NullFloat64
		)
		if err := rows.Scan(&src.SymbolName, &src.FilePath, &src.StartLine, &src.EndLine, &score); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		if score.Valid {
			src.Score = score.Float64
		} else {
			src.Score = 0.5
		}
		src.Origin = "trigram"
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// Answer operations

func (s *PostgresStore) SaveAnswer(ctx context.Context, answer *models.Answer) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	sections, err := json.Marshal(answer.Sections)
	if err != nil {
		return fmt.Errorf("encode answer sections: %w", err)
	}
	unknowns, _ := json.Marshal(orEmpty(answer.Unknowns))
	factors, _ := json.Marshal(answer.ConfidenceFactors)
	valErrors, _ := json.Marshal(orEmpty(answer.ValidationErrors))

	answerQuery := `
		INSERT INTO answers (id, repo_id, question, sections, unknowns,
			confidence_tier, confidence_factors, validation_passed, validation_errors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.ExecContext(ctx, answerQuery,
		answer.ID, answer.RepoID, answer.Question, sections, unknowns,
		answer.ConfidenceTier, factors, answer.ValidationPassed, valErrors, answer.CreatedAt)
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}

	citationQuery := `
		INSERT INTO citations (answer_id, source_index, file_path, start_line,
			end_line, snippet, symbol_name, github_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, c := range answer.Citations {
		snippet := c.Snippet
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		_, err := tx.ExecContext(ctx, citationQuery,
			answer.ID, c.SourceIndex, c.FilePath, c.StartLine,
			c.EndLine, snippet, c.SymbolName, c.GitHubURL)
		if err != nil {
			return fmt.Errorf("save citation: %w", err)
		}
	}
	return tx.Commit()
}

// orEmpty keeps JSONB columns as [] instead of null.
func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
