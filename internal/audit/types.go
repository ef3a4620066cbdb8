// Package audit persists one record per deterministic rule evaluation
// so that risk decisions remain traceable to a rule table version.
// It stores rule firings only, never full analysis reports.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/niramay/risk-engine/internal/domain"
)

// Record is one rule-engine evaluation within an analysis request.
type Record struct {
	ID          int64            `json:"id,omitempty"`
	RequestID   string           `json:"request_id"`
	Drug        string           `json:"drug"`
	Gene        string           `json:"gene"`
	Diplotype   string           `json:"diplotype"`
	Phenotype   domain.Phenotype `json:"phenotype"`
	Severity    string           `json:"severity"`
	RiskLabel   string           `json:"risk_label"`
	Confidence  float64          `json:"confidence"`
	RuleVersion string           `json:"rule_version"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Store defines the audit trail storage operations.
type Store interface {
	// Save appends one rule-evaluation record.
	Save(ctx context.Context, record *Record) error

	// List returns records ordered newest first, with pagination.
	List(ctx context.Context, limit, offset int) ([]*Record, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int64, error)

	// Close closes the store and releases resources.
	Close() error
}

func phenotypeFromString(s string) domain.Phenotype {
	if s == "" {
		return domain.PhenotypeUnknown
	}
	return domain.Phenotype(s)
}

// Drivers accepted by New.
const (
	DriverDisabled = "disabled"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// New creates the audit store selected by cfg. A disabled driver
// returns (nil, nil); callers treat a nil store as "auditing off".
func New(cfg domain.AuditConfig) (Store, error) {
	switch cfg.Driver {
	case "", DriverDisabled:
		return nil, nil
	case DriverSQLite:
		return NewSQLiteStore(cfg.Path)
	case DriverPostgres:
		return NewPostgresStoreFromURL(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown audit driver: %q", cfg.Driver)
	}
}
