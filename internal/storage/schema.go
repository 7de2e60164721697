package storage

// Schema is applied idempotently at startup. pg_trgm backs the symbol
// similarity search; the GIN indexes keep it fast on large repos.
const schema = `
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS repositories (
	id                  UUID PRIMARY KEY,
	owner               TEXT NOT NULL,
	name                TEXT NOT NULL,
	full_name           TEXT NOT NULL UNIQUE,
	url                 TEXT NOT NULL DEFAULT '',
	default_branch      TEXT NOT NULL DEFAULT 'main',
	install_id          BIGINT NOT NULL DEFAULT 0,
	index_status        TEXT NOT NULL DEFAULT 'pending',
	index_error         TEXT NOT NULL DEFAULT '',
	last_indexed_commit TEXT NOT NULL DEFAULT '',
	file_count          INT NOT NULL DEFAULT 0,
	symbol_count        INT NOT NULL DEFAULT 0,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	deleted_at          TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS scan_runs (
	id             UUID PRIMARY KEY,
	repo_id        UUID NOT NULL REFERENCES repositories(id),
	commit_sha     TEXT NOT NULL,
	config_hash    TEXT NOT NULL,
	status         TEXT NOT NULL,
	degraded_modes JSONB NOT NULL DEFAULT '[]',
	error          TEXT NOT NULL DEFAULT '',
	started_at     TIMESTAMPTZ,
	finished_at    TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (repo_id, commit_sha, config_hash)
);

CREATE TABLE IF NOT EXISTS file_snapshots (
	id           UUID PRIMARY KEY,
	scan_run_id  UUID NOT NULL REFERENCES scan_runs(id),
	path         TEXT NOT NULL,
	language     TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	size_bytes   BIGINT NOT NULL DEFAULT 0,
	is_binary    BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_file_snapshots_scan ON file_snapshots(scan_run_id);

CREATE TABLE IF NOT EXISTS coverage_summaries (
	scan_run_id UUID PRIMARY KEY REFERENCES scan_runs(id),
	summary     JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS findings (
	id                   UUID PRIMARY KEY,
	scan_run_id          UUID NOT NULL REFERENCES scan_runs(id),
	rule_id              TEXT NOT NULL,
	category             TEXT NOT NULL,
	title                TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	severity             TEXT NOT NULL,
	confidence           TEXT NOT NULL,
	confidence_rationale JSONB NOT NULL DEFAULT '[]',
	impact_score         DOUBLE PRECISION NOT NULL DEFAULT 0,
	exploitability_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	impact               JSONB NOT NULL DEFAULT '{}',
	likelihood           JSONB NOT NULL DEFAULT '{}',
	regulatory_tags      JSONB NOT NULL DEFAULT '[]',
	tags                 JSONB NOT NULL DEFAULT '[]',
	dedupe_key           TEXT NOT NULL,
	remediation_summary  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_findings_scan ON findings(scan_run_id);

CREATE TABLE IF NOT EXISTS finding_instances (
	id         UUID PRIMARY KEY,
	finding_id UUID NOT NULL REFERENCES findings(id),
	symbol     TEXT NOT NULL DEFAULT '',
	evidence   JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_finding_instances_finding ON finding_instances(finding_id);

CREATE TABLE IF NOT EXISTS files (
	repo_id    UUID NOT NULL REFERENCES repositories(id),
	path       TEXT NOT NULL,
	language   TEXT NOT NULL DEFAULT '',
	size_bytes BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (repo_id, path)
);

CREATE TABLE IF NOT EXISTS symbols (
	repo_id        UUID NOT NULL REFERENCES repositories(id),
	kind           TEXT NOT NULL,
	name           TEXT NOT NULL,
	qualified_name TEXT NOT NULL,
	file_path      TEXT NOT NULL,
	line_start     INT NOT NULL,
	line_end       INT NOT NULL,
	signature      TEXT NOT NULL DEFAULT '',
	docstring      TEXT NOT NULL DEFAULT '',
	parent         TEXT NOT NULL DEFAULT '',
	visibility     TEXT NOT NULL DEFAULT 'public',
	search_text    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (repo_id, file_path, qualified_name)
);
CREATE INDEX IF NOT EXISTS idx_symbols_name_trgm ON symbols USING GIN (name gin_trgm_ops);
CREATE INDEX IF NOT EXISTS idx_symbols_qname_trgm ON symbols USING GIN (qualified_name gin_trgm_ops);

CREATE TABLE IF NOT EXISTS answers (
	id                 UUID PRIMARY KEY,
	repo_id            UUID NOT NULL REFERENCES repositories(id),
	question           TEXT NOT NULL,
	sections           JSONB NOT NULL DEFAULT '[]',
	unknowns           JSONB NOT NULL DEFAULT '[]',
	confidence_tier    TEXT NOT NULL,
	confidence_factors JSONB NOT NULL DEFAULT '{}',
	validation_passed  BOOLEAN NOT NULL,
	validation_errors  JSONB NOT NULL DEFAULT '[]',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS citations (
	answer_id    UUID NOT NULL REFERENCES answers(id),
	source_index INT NOT NULL,
	file_path    TEXT NOT NULL,
	start_line   INT NOT NULL,
	end_line     INT NOT NULL,
	snippet      TEXT NOT NULL DEFAULT '',
	symbol_name  TEXT NOT NULL DEFAULT '',
	github_url   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (answer_id, source_index)
);
`
