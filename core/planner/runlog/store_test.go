package runlog

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func sampleRecords() []Record {
	return []Record{
		{RunID: "a", Timestamp: base, PlanID: 1, Outcome: "complete", InputDigest: "d1"},
		{RunID: "b", Timestamp: base.Add(time.Hour), PlanID: 2, Outcome: "partial", InputDigest: "d2", Reasons: []string{"NO_TIME"}},
		{RunID: "c", Timestamp: base.Add(2 * time.Hour), PlanID: 1, Outcome: "infeasible", InputDigest: "d1"},
	}
}

func storeBackends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	jsonl, err := NewJSONLStore(filepath.Join(dir, "runs.jsonl"))
	require.NoError(t, err)
	rot, err := NewRotatingJSONLStore(filepath.Join(dir, "rot", "runs.jsonl"), 1, 2, 1)
	require.NoError(t, err)
	db, err := NewSQLiteStore(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	stores := map[string]Store{"jsonl": jsonl, "rotating": rot, "sqlite": db}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func runIDs(recs []Record) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.RunID
	}
	return ids
}

func TestStoresQuery(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			for _, r := range sampleRecords() {
				require.NoError(t, s.Append(ctx, r))
			}

			all, err := s.Query(ctx, Query{})
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, runIDs(all))
			assert.Equal(t, []string{"NO_TIME"}, all[1].Reasons)
			assert.True(t, all[0].Timestamp.Equal(base))

			cases := []struct {
				q    Query
				want []string
			}{
				{Query{PlanID: 1}, []string{"a", "c"}},
				{Query{Outcome: "partial"}, []string{"b"}},
				{Query{RunID: "c"}, []string{"c"}},
				{Query{InputDigest: "d1", Limit: 1}, []string{"c"}},
				{Query{Start: base.Add(30 * time.Minute)}, []string{"b", "c"}},
				{Query{End: base.Add(time.Hour)}, []string{"a", "b"}},
				{Query{Limit: 2}, []string{"b", "c"}},
				{Query{PlanID: 9}, []string{}},
			}
			for _, tc := range cases {
				out, err := s.Query(ctx, tc.q)
				require.NoError(t, err)
				assert.Equal(t, tc.want, runIDs(out), "query %+v", tc.q)
			}
		})
	}
}

func TestJSONLStoreSkipsBadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	s, err := NewJSONLStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), Record{RunID: "a", Timestamp: base}))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, s.Append(context.Background(), Record{RunID: "b", Timestamp: base}))

	out, err := s.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, runIDs(out))
}

func TestAppendHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := NewJSONLStore(filepath.Join(t.TempDir(), "runs.jsonl"))
	require.NoError(t, err)
	assert.ErrorIs(t, s.Append(ctx, Record{RunID: "a"}), context.Canceled)
}

func TestConfig(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, BackendJSONL, c.Backend)
	assert.Equal(t, "showplan-runs.jsonl", c.Path)
	require.NoError(t, c.Validate())

	c = Config{Backend: BackendSQLite}
	c.SetDefaults()
	assert.Equal(t, "showplan-runs.db", c.Path)

	assert.Error(t, Config{Backend: "mongo", Path: "x"}.Validate())
	assert.Error(t, Config{Backend: BackendJSONL}.Validate())
	assert.NoError(t, Config{Backend: BackendNone}.Validate())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for backend, want := range map[string]any{
		BackendJSONL:         &JSONLStore{},
		BackendJSONLRotating: &RotatingJSONLStore{},
		BackendSQLite:        &SQLiteStore{},
	} {
		cfg := Config{Backend: backend, Path: filepath.Join(dir, backend)}
		cfg.SetDefaults()
		s, err := Open(cfg)
		require.NoError(t, err, backend)
		assert.IsType(t, want, s)
		require.NoError(t, s.Close())
	}

	s, err := Open(Config{Backend: BackendNone})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = Open(Config{Backend: "bogus", Path: "x"})
	assert.Error(t, err)
}

type failingCloser struct {
	bytes.Buffer
	err error
}

func (f *failingCloser) Close() error { return f.err }

func TestWriteRecordReportsCloseError(t *testing.T) {
	boom := errors.New("disk full")
	w := &failingCloser{err: boom}
	assert.ErrorIs(t, writeRecord(w, sampleRecords()[0]), boom)
	assert.Contains(t, w.String(), `"run_id":"a"`)

	ok := &failingCloser{}
	require.NoError(t, writeRecord(ok, sampleRecords()[1]))
	assert.True(t, strings.HasSuffix(ok.String(), "\n"))
}
