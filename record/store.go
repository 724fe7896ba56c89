// Package record persists recorded runs to SQLite: one row per run, one row
// per sample batch, with samples packed as a binary blob. The store doubles
// as a batch sink so the engine can write while acquiring.
package record

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/RTXI/clamp-protocol/protocol"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for recorded runs.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			protocol TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			period_ms REAL NOT NULL,
			trials INTEGER NOT NULL,
			junction_mv REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS batches (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			trial INTEGER NOT NULL,
			segment INTEGER NOT NULL,
			sweep INTEGER NOT NULL,
			step INTEGER NOT NULL,
			step_start INTEGER NOT NULL,
			step_start_sweep INTEGER NOT NULL,
			period_ms REAL NOT NULL,
			samples BLOB NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_batches_run ON batches(run_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RunMeta describes a run being recorded.
type RunMeta struct {
	Protocol            string
	PeriodMS            float64
	Trials              int
	JunctionPotentialMV float64
}

// RunInfo is one row of the run listing.
type RunInfo struct {
	ID        string
	Protocol  string
	StartedAt time.Time
	EndedAt   *time.Time
	PeriodMS  float64
	Trials    int
}

// BeginRun registers a new run and returns its id.
func (s *Store) BeginRun(ctx context.Context, meta RunMeta) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, protocol, started_at, period_ms, trials, junction_mv)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, meta.Protocol, time.Now().Format(time.RFC3339Nano),
		meta.PeriodMS, meta.Trials, meta.JunctionPotentialMV)
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishRun stamps the run's end time.
func (s *Store) FinishRun(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET ended_at = ? WHERE id = ?`,
		time.Now().Format(time.RFC3339Nano), id)
	return err
}

// WriteBatch appends one sample batch to a run.
func (s *Store) WriteBatch(ctx context.Context, runID string, seq int, b protocol.SampleBatch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (run_id, seq, trial, segment, sweep, step, step_start, step_start_sweep, period_ms, samples)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, seq, b.Trial, b.Segment, b.Sweep, b.Step,
		b.StepStart, b.StepStartSweep, b.Period, packSamples(b.Samples))
	return err
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, protocol, started_at, ended_at, period_ms, trials
		 FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var r RunInfo
		var started string
		var ended sql.NullString
		if err := rows.Scan(&r.ID, &r.Protocol, &started, &ended, &r.PeriodMS, &r.Trials); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, err
		}
		if ended.Valid {
			t, err := time.Parse(time.RFC3339Nano, ended.String)
			if err != nil {
				return nil, err
			}
			r.EndedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Batches returns a run's batches in write order, samples decoded.
func (s *Store) Batches(ctx context.Context, runID string) ([]protocol.SampleBatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trial, segment, sweep, step, step_start, step_start_sweep, period_ms, samples
		 FROM batches WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []protocol.SampleBatch
	for rows.Next() {
		var b protocol.SampleBatch
		var blob []byte
		if err := rows.Scan(&b.Trial, &b.Segment, &b.Sweep, &b.Step,
			&b.StepStart, &b.StepStartSweep, &b.Period, &blob); err != nil {
			return nil, err
		}
		b.Samples = unpackSamples(blob)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func packSamples(samples []float64) []byte {
	buf := make([]byte, 8*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func unpackSamples(buf []byte) []float64 {
	samples := make([]float64, len(buf)/8)
	for i := range samples {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return samples
}

// Writer binds a store to one run as an engine batch sink.
type Writer struct {
	store *Store
	runID string
	seq   int
}

// NewWriter returns a sink that appends every batch to the given run.
func (s *Store) NewWriter(runID string) *Writer {
	return &Writer{store: s, runID: runID}
}

// HandleBatch persists one batch. Called from the engine's drain goroutine,
// never from the tick path, so blocking on the database is fine here.
func (w *Writer) HandleBatch(b protocol.SampleBatch) error {
	err := w.store.WriteBatch(context.Background(), w.runID, w.seq, b)
	if err == nil {
		w.seq++
	}
	return err
}
