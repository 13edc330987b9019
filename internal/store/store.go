// Package store persists contract analysis records and audit events.
//
// One Store interface has three implementations selected at startup: an
// in-memory store, a database/sql store (sqlite or postgres), and a redis
// lookaside cache that decorates either of them for fingerprint lookups.
package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ericksa/lexiguard/internal/analysis"
	"github.com/ericksa/lexiguard/internal/config"
	apperrors "github.com/ericksa/lexiguard/pkg/errors"
)

// Record is one persisted contract analysis.
type Record struct {
	ID              string          `json:"id"`
	Filename        string          `json:"filename"`
	Hash            string          `json:"hash"`
	Timestamp       time.Time       `json:"timestamp"`
	RiskScore       int             `json:"risk_score"`
	Risks           []analysis.Risk `json:"risks"`
	Summary         string          `json:"summary"`
	FullTextSnippet string          `json:"full_text_snippet"`
	Source          string          `json:"source"`
	HighRiskCount   int             `json:"high_risk_count"`
	ClauseCount     int             `json:"clause_count"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Risks = append(make([]analysis.Risk, 0, len(r.Risks)), r.Risks...)
	return &c
}

// AuditEvent is one append-only audit log entry.
type AuditEvent struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the persistence boundary. Implementations must be safe for
// concurrent use.
type Store interface {
	// AddContract persists rec, assigning an ID when rec.ID is empty, and
	// returns the ID.
	AddContract(ctx context.Context, rec *Record) (string, error)
	// FindByHash returns the first record stored under hash, or a
	// NOT_FOUND error.
	FindByHash(ctx context.Context, hash string) (*Record, error)
	GetContract(ctx context.Context, id string) (*Record, error)
	// ListContracts returns every record, newest first.
	ListContracts(ctx context.Context) ([]*Record, error)
	AddAudit(ctx context.Context, ev *AuditEvent) error
	// ListAudit returns up to limit events, newest first. A non-positive
	// limit returns all of them.
	ListAudit(ctx context.Context, limit int) ([]*AuditEvent, error)
	Close() error
}

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool {
	return apperrors.IsCode(err, apperrors.CodeNotFound)
}

func notFound(kind, key string) error {
	return apperrors.NotFound(fmt.Sprintf("%s %s not found", kind, key))
}

// Open builds the store named by cfg.Driver. A sqlite or postgres driver
// with no DSN falls back to the in-memory store; a configured database that
// cannot be opened is an error.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "", "memory":
		logger.Info("using in-memory contract store")
		return NewMemoryStore(), nil
	case "sqlite", "postgres":
		if cfg.DSN == "" {
			logger.Warn("no store credentials configured, falling back to in-memory store",
				zap.String("driver", cfg.Driver))
			return NewMemoryStore(), nil
		}
		s, err := OpenSQL(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info("opened contract store", zap.String("driver", cfg.Driver))
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
}
