package validator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solguard/solguard/internal/domain"
	"github.com/solguard/solguard/internal/providers"
	"github.com/solguard/solguard/internal/toolbox"
)

// AuditRecord is one line written to validator-log.jsonl for every
// Dismissed finding — the reasoning the report itself never shows.
type AuditRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Repo      string    `json:"repo"`
	PatternID string    `json:"pattern_id"`
	File      string    `json:"file"`
	Line      int       `json:"line"`
	Title     string    `json:"title"`
	Verdict   string    `json:"verdict"`
	Reason    string    `json:"reason"`
}

// ValidateAll runs the adversarial loop over every finding for one
// repo, up to nVal concurrently, and
// returns the surviving findings (Dismissed ones removed) plus the
// audit records for everything that was dismissed.
func ValidateAll(ctx context.Context, provider providers.Provider, executor *toolbox.Executor, repo domain.RepoHandle, findings []domain.Finding, investigationBudget domain.Budget, nVal int) ([]domain.Finding, []AuditRecord) {
	if nVal < 1 {
		nVal = 1
	}
	if len(findings) == 0 {
		return nil, nil
	}

	outcomes := make([]Outcome, len(findings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(nVal)

	for i, f := range findings {
		i, f := i, f
		g.Go(func() error {
			outcomes[i] = Validate(gctx, provider, executor, repo, f, investigationBudget)
			return nil
		})
	}
	_ = g.Wait()

	surviving := make([]domain.Finding, 0, len(findings))
	var audit []AuditRecord
	for _, o := range outcomes {
		if o.Dismissed {
			audit = append(audit, AuditRecord{
				Timestamp: time.Now(),
				Repo:      repo.Name,
				PatternID: string(o.Finding.PatternID),
				File:      o.Finding.File,
				Line:      o.Finding.Line,
				Title:     o.Finding.Title,
				Verdict:   string(o.Verdict.Status),
				Reason:    o.Verdict.Reason,
			})
			continue
		}
		surviving = append(surviving, o.Finding)
	}
	return surviving, audit
}

// AppendAuditLog appends audit records to validator-log.jsonl under
// dir, one JSON object per line, creating the file if needed.
func AppendAuditLog(dir string, records []AuditRecord) error {
	if len(records) == 0 {
		return nil
	}
	path := filepath.Join(dir, "validator-log.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
