package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ericksa/lexiguard/internal/analysis"
	apperrors "github.com/ericksa/lexiguard/pkg/errors"
)

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS contracts (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	hash TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	risk_score INTEGER NOT NULL,
	risks TEXT NOT NULL,
	summary TEXT NOT NULL,
	full_text_snippet TEXT NOT NULL,
	source TEXT NOT NULL,
	high_risk_count INTEGER NOT NULL DEFAULT 0,
	clause_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_contracts_hash ON contracts(hash);
CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	user_name TEXT NOT NULL,
	action TEXT NOT NULL,
	details TEXT NOT NULL,
	timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);
`

const contractColumns = `id, filename, hash, timestamp, risk_score, risks, summary, full_text_snippet, source, high_risk_count, clause_count`

// SQLStore persists to sqlite (mattn/go-sqlite3) or postgres (lib/pq).
type SQLStore struct {
	db       *sql.DB
	postgres bool
}

// OpenSQL opens driver ("sqlite" or "postgres") at dsn and creates the
// schema.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var driverName string
	switch driver {
	case "sqlite", "sqlite3":
		driverName = "sqlite3"
	case "postgres":
		driverName = "postgres"
	default:
		return nil, fmt.Errorf("unsupported sql driver: %s", driver)
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "open store")
	}
	if driverName == "sqlite3" {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "connect to store")
	}
	s := &SQLStore{db: db, postgres: driverName == "postgres"}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return apperrors.Wrap(err, apperrors.CodePersistence, "create schema")
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) AddContract(ctx context.Context, rec *Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	risks, err := json.Marshal(rec.Risks)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodePersistence, "encode risks")
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO contracts (`+contractColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.Filename, rec.Hash, formatTime(rec.Timestamp), rec.RiskScore, string(risks),
		rec.Summary, rec.FullTextSnippet, rec.Source, rec.HighRiskCount, rec.ClauseCount,
	)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodePersistence, "insert contract")
	}
	return rec.ID, nil
}

func (s *SQLStore) FindByHash(ctx context.Context, hash string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+contractColumns+` FROM contracts WHERE hash = ? ORDER BY timestamp ASC, id ASC LIMIT 1`), hash)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("contract with hash", hash)
	}
	return rec, err
}

func (s *SQLStore) GetContract(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+contractColumns+` FROM contracts WHERE id = ?`), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("contract", id)
	}
	return rec, err
}

func (s *SQLStore) ListContracts(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+contractColumns+` FROM contracts ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "list contracts")
	}
	defer rows.Close()

	out := make([]*Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "list contracts")
	}
	return out, nil
}

func (s *SQLStore) AddAudit(ctx context.Context, ev *AuditEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO audit_logs (id, user_name, action, details, timestamp) VALUES (?, ?, ?, ?, ?)`),
		ev.ID, ev.User, ev.Action, ev.Details, formatTime(ev.Timestamp))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodePersistence, "insert audit event")
	}
	return nil
}

func (s *SQLStore) ListAudit(ctx context.Context, limit int) ([]*AuditEvent, error) {
	query := `SELECT id, user_name, action, details, timestamp FROM audit_logs ORDER BY timestamp DESC, id DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "list audit events")
	}
	defer rows.Close()

	out := make([]*AuditEvent, 0)
	for rows.Next() {
		var (
			ev AuditEvent
			ts string
		)
		if err := rows.Scan(&ev.ID, &ev.User, &ev.Action, &ev.Details, &ts); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodePersistence, "scan audit event")
		}
		if ev.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "list audit events")
	}
	return out, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec   Record
		ts    string
		risks string
	)
	err := row.Scan(&rec.ID, &rec.Filename, &rec.Hash, &ts, &rec.RiskScore, &risks,
		&rec.Summary, &rec.FullTextSnippet, &rec.Source, &rec.HighRiskCount, &rec.ClauseCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "scan contract")
	}
	if rec.Timestamp, err = parseTime(ts); err != nil {
		return nil, err
	}
	rec.Risks = make([]analysis.Risk, 0)
	if err := json.Unmarshal([]byte(risks), &rec.Risks); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "decode risks")
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, apperrors.Wrap(err, apperrors.CodePersistence, "parse timestamp")
	}
	return t, nil
}
