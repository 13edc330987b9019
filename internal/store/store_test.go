package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ericksa/lexiguard/internal/analysis"
	"github.com/ericksa/lexiguard/internal/config"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRecord(hash string, offset time.Duration) *Record {
	return &Record{
		Filename:  "msa.txt",
		Hash:      hash,
		Timestamp: baseTime.Add(offset),
		RiskScore: 95,
		Risks: []analysis.Risk{{
			Clause:      "The Provider shall indemnify the Client.",
			Level:       analysis.LevelHigh,
			Score:       0.9,
			Explanation: "Contains high-risk keyword: 'indemnify'",
			Type:        analysis.GeneralRiskType,
		}},
		Summary:         "Found 1 high-risk clauses.",
		FullTextSnippet: "The Provider shall indemnify the Client.",
		Source:          "api",
		HighRiskCount:   1,
		ClauseCount:     1,
	}
}

// exerciseStore runs the behavior every Store implementation shares.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	first := sampleRecord("aaa", 0)
	id, err := s.AddContract(ctx, first)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, id, first.ID)

	second := sampleRecord("aaa", time.Minute)
	second.Filename = "copy.txt"
	_, err = s.AddContract(ctx, second)
	require.NoError(t, err)

	other := sampleRecord("bbb", 2*time.Minute)
	other.Risks = []analysis.Risk{}
	_, err = s.AddContract(ctx, other)
	require.NoError(t, err)

	got, err := s.FindByHash(ctx, "aaa")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID, "first record for a hash wins")
	assert.Equal(t, "msa.txt", got.Filename)
	assert.True(t, got.Timestamp.Equal(first.Timestamp))
	require.Len(t, got.Risks, 1)
	assert.Equal(t, first.Risks[0], got.Risks[0])

	_, err = s.FindByHash(ctx, "zzz")
	assert.True(t, IsNotFound(err))

	got, err = s.GetContract(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "bbb", got.Hash)
	assert.NotNil(t, got.Risks)

	_, err = s.GetContract(ctx, "missing")
	assert.True(t, IsNotFound(err))

	list, err := s.ListContracts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, other.ID, list[0].ID)
	assert.Equal(t, first.ID, list[2].ID)

	for i, action := range []string{"first", "second", "third"} {
		require.NoError(t, s.AddAudit(ctx, &AuditEvent{
			User: "api_user", Action: action, Details: "d", Timestamp: baseTime.Add(time.Duration(i) * time.Second),
		}))
	}
	events, err := s.ListAudit(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "third", events[0].Action)
	assert.Equal(t, "second", events[1].Action)
	assert.NotEmpty(t, events[0].ID)

	events, err = s.ListAudit(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	rec := sampleRecord("aaa", 0)
	_, err := s.AddContract(ctx, rec)
	require.NoError(t, err)

	rec.Risks[0].Clause = "mutated"
	got, err := s.FindByHash(ctx, "aaa")
	require.NoError(t, err)
	assert.Equal(t, "The Provider shall indemnify the Client.", got.Risks[0].Clause)
}

func TestSQLStore_SQLite(t *testing.T) {
	s, err := OpenSQL(context.Background(), "sqlite", filepath.Join(t.TempDir(), "lexiguard.db"))
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestSQLStore_Rebind(t *testing.T) {
	pg := &SQLStore{postgres: true}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &SQLStore{}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestOpenSQL_UnknownDriver(t *testing.T) {
	_, err := OpenSQL(context.Background(), "oracle", "dsn")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Driver: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	core, logs := observer.New(zap.WarnLevel)
	s, err = Open(ctx, config.StoreConfig{Driver: "postgres"}, zap.New(core))
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	assert.Equal(t, 1, logs.Len())

	s, err = Open(ctx, config.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "x.db")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "no", "such", "dir", "x.db")}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, config.StoreConfig{Driver: "cassandra"}, nil)
	assert.Error(t, err)
}
