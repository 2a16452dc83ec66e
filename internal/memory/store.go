// Package memory is SolGuard's persistence layer: a single embedded
// SQLite file backing repos/scans/findings/narratives, the durable form
// of the findings.json/narratives.json artifacts a run produces.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/solguard/solguard/internal/domain"
)

// Repo is a persisted record of a scanned repository.
type Repo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// Scan is one investigation run against a Repo.
type Scan struct {
	ID          string     `json:"id"`
	RepoID      string     `json:"repo_id"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	TurnsUsed   int        `json:"turns_used"`
	ToolCalls   int        `json:"tool_calls"`
	TokensUsed  int        `json:"tokens_used"`
	CostUSD     float64    `json:"cost_usd"`
	Partial     bool       `json:"partial"`
	AbortReason string     `json:"abort_reason,omitempty"`
}

// InvestigatedArea records a file/pattern combination a scan already
// covered, so a repeated invocation against the same repo can steer the
// agent loop toward unexplored code instead of re-walking ground it has
// already covered.
type InvestigatedArea struct {
	ID        string    `json:"id"`
	RepoID    string    `json:"repo_id"`
	ScanID    string    `json:"scan_id"`
	Path      string    `json:"path"`
	Pattern   string    `json:"pattern"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence contract every SolGuard component that
// outlives a single process uses: the CLI records repos/scans/findings
// at the end of a run and exports them to findings.json/narratives.json,
// which the render subcommand reads back.
type Store interface {
	CreateRepo(ctx context.Context, r *Repo) error
	GetRepoByPath(ctx context.Context, path string) (*Repo, error)
	ListRepos(ctx context.Context) ([]*Repo, error)

	CreateScan(ctx context.Context, s *Scan) error
	FinishScan(ctx context.Context, scanID string, stats domain.ScanStats) error

	SaveFindings(ctx context.Context, scanID string, findings []domain.Finding) error
	ListFindings(ctx context.Context, repoName string) ([]domain.Finding, error)
	AllFindings(ctx context.Context) ([]domain.Finding, error)

	SaveNarratives(ctx context.Context, narratives []domain.Narrative) error
	ListNarratives(ctx context.Context) ([]domain.Narrative, error)

	MarkInvestigated(ctx context.Context, area *InvestigatedArea) error
	GetInvestigatedAreas(ctx context.Context, repoID string) ([]*InvestigatedArea, error)

	ExportJSON(findingsPath, narrativesPath string) error

	Close() error
}

type sqliteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS repos (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    path        TEXT NOT NULL UNIQUE,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS scans (
    id           TEXT PRIMARY KEY,
    repo_id      TEXT NOT NULL REFERENCES repos(id),
    started_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    ended_at     DATETIME,
    turns_used   INTEGER DEFAULT 0,
    tool_calls   INTEGER DEFAULT 0,
    tokens_used  INTEGER DEFAULT 0,
    cost_usd     REAL DEFAULT 0.0,
    partial      BOOLEAN DEFAULT FALSE,
    abort_reason TEXT
);

CREATE TABLE IF NOT EXISTS findings (
    id                TEXT PRIMARY KEY,
    scan_id           TEXT NOT NULL REFERENCES scans(id),
    repo              TEXT NOT NULL,
    pattern_id        TEXT NOT NULL,
    severity          TEXT NOT NULL,
    file              TEXT NOT NULL,
    line              INTEGER NOT NULL,
    snippet           TEXT,
    title             TEXT NOT NULL,
    description       TEXT,
    validation        TEXT NOT NULL,
    validation_reason TEXT,
    confidence        REAL,
    discovered_at     DATETIME NOT NULL,
    UNIQUE(repo, file, line, pattern_id)
);

CREATE TABLE IF NOT EXISTS narratives (
    id             TEXT PRIMARY KEY,
    title          TEXT NOT NULL,
    summary        TEXT,
    confidence     REAL,
    active_repos   TEXT NOT NULL,
    risk_score     REAL,
    risk_level     TEXT,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS investigated_areas (
    id          TEXT PRIMARY KEY,
    repo_id     TEXT NOT NULL REFERENCES repos(id),
    scan_id     TEXT NOT NULL REFERENCES scans(id),
    path        TEXT NOT NULL,
    pattern     TEXT NOT NULL,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(repo_id, path, pattern)
);
`

// DefaultDBPath returns the default database path (~/.config/solguard/solguard.db).
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("memory: cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "solguard", "solguard.db"), nil
}

// NewStore opens (or creates) a SQLite database at dbPath and initializes the schema.
func NewStore(dbPath string) (Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("memory: failed to create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("memory: failed to open database %s: %w", dbPath, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: failed to initialize schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// --- Repos ---

func (s *sqliteStore) CreateRepo(ctx context.Context, r *Repo) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO repos (id, name, path, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET name = excluded.name`,
		r.ID, r.Name, r.Path, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("memory: create repo: %w", err)
	}
	// On conflict the existing row keeps its id; read it back so scans
	// reference the stored repo, not the discarded candidate id.
	return s.db.QueryRowContext(ctx, `SELECT id FROM repos WHERE path = ?`, r.Path).Scan(&r.ID)
}

func (s *sqliteStore) GetRepoByPath(ctx context.Context, path string) (*Repo, error) {
	r := &Repo{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, path, created_at FROM repos WHERE path = ?`, path).
		Scan(&r.ID, &r.Name, &r.Path, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("memory: repo with path %q not found", path)
	}
	if err != nil {
		return nil, fmt.Errorf("memory: get repo by path: %w", err)
	}
	return r, nil
}

func (s *sqliteStore) ListRepos(ctx context.Context) ([]*Repo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, path, created_at FROM repos ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("memory: list repos: %w", err)
	}
	defer rows.Close()

	var repos []*Repo
	for rows.Next() {
		r := &Repo{}
		if err := rows.Scan(&r.ID, &r.Name, &r.Path, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("memory: list repos scan: %w", err)
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// --- Scans ---

func (s *sqliteStore) CreateScan(ctx context.Context, sc *Scan) error {
	if sc.ID == "" {
		sc.ID = uuid.New().String()
	}
	sc.StartedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (id, repo_id, started_at) VALUES (?, ?, ?)`,
		sc.ID, sc.RepoID, sc.StartedAt)
	if err != nil {
		return fmt.Errorf("memory: create scan: %w", err)
	}
	return nil
}

func (s *sqliteStore) FinishScan(ctx context.Context, scanID string, stats domain.ScanStats) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE scans SET ended_at = ?, turns_used = ?, tool_calls = ?, tokens_used = ?, cost_usd = ?, partial = ?, abort_reason = ?
		 WHERE id = ?`,
		now, stats.TurnsUsed, stats.ToolCalls, stats.TokensUsed, stats.CostUSD, stats.Partial, stats.AbortReason, scanID)
	if err != nil {
		return fmt.Errorf("memory: finish scan: %w", err)
	}
	return nil
}

// --- Findings ---

func (s *sqliteStore) SaveFindings(ctx context.Context, scanID string, findings []domain.Finding) error {
	for _, f := range findings {
		id := f.ID
		if id == "" {
			id = uuid.New().String()
		}
		discoveredAt := f.DiscoveredAt
		if discoveredAt.IsZero() {
			discoveredAt = time.Now().UTC()
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO findings (id, scan_id, repo, pattern_id, severity, file, line, snippet, title, description, validation, validation_reason, confidence, discovered_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(repo, file, line, pattern_id) DO UPDATE SET
			   severity = excluded.severity,
			   validation = excluded.validation,
			   validation_reason = excluded.validation_reason`,
			id, scanID, f.Repo, string(f.PatternID), string(f.Severity), f.File, f.Line, f.Snippet,
			f.Title, f.Description, string(f.Validation), f.ValidationReason, f.Confidence, discoveredAt)
		if err != nil {
			return fmt.Errorf("memory: save finding: %w", err)
		}
	}
	return nil
}

func (s *sqliteStore) ListFindings(ctx context.Context, repoName string) ([]domain.Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, repo, pattern_id, severity, file, line, snippet, title, description, validation, validation_reason, confidence, discovered_at
		 FROM findings WHERE repo = ? ORDER BY discovered_at DESC`, repoName)
	if err != nil {
		return nil, fmt.Errorf("memory: list findings: %w", err)
	}
	defer rows.Close()
	return scanFindings(rows)
}

func (s *sqliteStore) AllFindings(ctx context.Context) ([]domain.Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, repo, pattern_id, severity, file, line, snippet, title, description, validation, validation_reason, confidence, discovered_at
		 FROM findings ORDER BY repo ASC, file ASC, line ASC`)
	if err != nil {
		return nil, fmt.Errorf("memory: all findings: %w", err)
	}
	defer rows.Close()
	return scanFindings(rows)
}

func scanFindings(rows *sql.Rows) ([]domain.Finding, error) {
	var findings []domain.Finding
	for rows.Next() {
		var f domain.Finding
		var snippet, description, validationReason sql.NullString
		var patternID, severity, validation string
		if err := rows.Scan(&f.ID, &f.Repo, &patternID, &severity, &f.File, &f.Line, &snippet,
			&f.Title, &description, &validation, &validationReason, &f.Confidence, &f.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("memory: findings scan: %w", err)
		}
		f.PatternID = domain.PatternId(patternID)
		f.Severity = domain.Severity(severity)
		f.Validation = domain.ValidationStatus(validation)
		f.Snippet = snippet.String
		f.Description = description.String
		f.ValidationReason = validationReason.String
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// --- Narratives ---

func (s *sqliteStore) SaveNarratives(ctx context.Context, narratives []domain.Narrative) error {
	for _, n := range narratives {
		id := n.ID
		if id == "" {
			id = uuid.New().String()
		}
		repos, err := json.Marshal(n.ActiveRepos)
		if err != nil {
			return fmt.Errorf("memory: marshal active repos: %w", err)
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO narratives (id, title, summary, confidence, active_repos, risk_score, risk_level, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   summary = excluded.summary,
			   confidence = excluded.confidence,
			   active_repos = excluded.active_repos,
			   risk_score = excluded.risk_score,
			   risk_level = excluded.risk_level`,
			id, n.Title, n.Summary, n.Confidence, string(repos), n.RiskScore, string(n.RiskLevel), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("memory: save narrative: %w", err)
		}
	}
	return nil
}

func (s *sqliteStore) ListNarratives(ctx context.Context) ([]domain.Narrative, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, summary, confidence, active_repos, risk_score, risk_level, created_at
		 FROM narratives ORDER BY risk_score DESC`)
	if err != nil {
		return nil, fmt.Errorf("memory: list narratives: %w", err)
	}
	defer rows.Close()

	var narratives []domain.Narrative
	for rows.Next() {
		var n domain.Narrative
		var activeRepos string
		var riskLevel string
		if err := rows.Scan(&n.ID, &n.Title, &n.Summary, &n.Confidence, &activeRepos, &n.RiskScore, &riskLevel, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("memory: narratives scan: %w", err)
		}
		if err := json.Unmarshal([]byte(activeRepos), &n.ActiveRepos); err != nil {
			return nil, fmt.Errorf("memory: unmarshal active repos: %w", err)
		}
		n.RiskLevel = domain.RiskLevel(riskLevel)
		narratives = append(narratives, n)
	}
	return narratives, rows.Err()
}

// --- Investigated Areas ---

func (s *sqliteStore) MarkInvestigated(ctx context.Context, area *InvestigatedArea) error {
	if area.ID == "" {
		area.ID = uuid.New().String()
	}
	area.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO investigated_areas (id, repo_id, scan_id, path, pattern, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		area.ID, area.RepoID, area.ScanID, area.Path, area.Pattern, area.CreatedAt)
	if err != nil {
		return fmt.Errorf("memory: mark investigated: %w", err)
	}
	return nil
}

func (s *sqliteStore) GetInvestigatedAreas(ctx context.Context, repoID string) ([]*InvestigatedArea, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, repo_id, scan_id, path, pattern, created_at FROM investigated_areas WHERE repo_id = ? ORDER BY created_at DESC`, repoID)
	if err != nil {
		return nil, fmt.Errorf("memory: get investigated areas: %w", err)
	}
	defer rows.Close()

	var areas []*InvestigatedArea
	for rows.Next() {
		a := &InvestigatedArea{}
		if err := rows.Scan(&a.ID, &a.RepoID, &a.ScanID, &a.Path, &a.Pattern, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("memory: get investigated areas scan: %w", err)
		}
		areas = append(areas, a)
	}
	return areas, rows.Err()
}

// --- Export ---

// ExportJSON writes the current findings and narratives tables out as
// the findings.json/narratives.json artifacts a run leaves behind.
func (s *sqliteStore) ExportJSON(findingsPath, narrativesPath string) error {
	ctx := context.Background()

	findings, err := s.AllFindings(ctx)
	if err != nil {
		return err
	}
	if err := writeJSON(findingsPath, findings); err != nil {
		return err
	}

	narratives, err := s.ListNarratives(ctx)
	if err != nil {
		return err
	}
	return writeJSON(narrativesPath, narratives)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("memory: mkdir for export: %w", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: marshal export: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}
