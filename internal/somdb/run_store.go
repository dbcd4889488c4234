package somdb

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/gob"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/gge-data/changedetect/internal/som"
	"github.com/gge-data/changedetect/internal/timeutil"
)

// TrainingRun is the persisted record of one trained map.
type TrainingRun struct {
	RunID       string          `json:"run_id"`
	Label       string          `json:"label,omitempty"`
	GridRows    int             `json:"grid_rows"`
	GridCols    int             `json:"grid_cols"`
	Dim         int             `json:"dim"`
	Iterations  int             `json:"iterations"`
	Seed        int64           `json:"seed"`
	FinalQE     float64         `json:"final_qe"`
	Converged   bool            `json:"converged"`
	ConfigJSON  json.RawMessage `json:"config_json,omitempty"`
	CreatedAtNs int64           `json:"created_at_ns"`
}

// RunStore provides persistence for training runs and score batches.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore creates a RunStore. A nil clock selects the real clock.
func NewRunStore(db *DB, clock timeutil.Clock) *RunStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RunStore{db: db.DB, clock: clock}
}

// InsertRun persists a trained map under the given run record. An empty
// RunID gets a fresh UUID; CreatedAtNs defaults to now. The run record
// is filled from the map's snapshot where fields are zero.
func (s *RunStore) InsertRun(run *TrainingRun, m *som.Map) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAtNs == 0 {
		run.CreatedAtNs = s.clock.Now().UnixNano()
	}
	snap := m.Snapshot()
	run.GridRows = snap.Rows
	run.GridCols = snap.Cols
	run.Dim = snap.Dim
	run.Iterations = snap.Meta.Iterations
	run.Seed = snap.Meta.Seed
	run.FinalQE = snap.Meta.FinalQE
	run.Converged = snap.Meta.Converged

	blob, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO som_runs (
			run_id, label, grid_rows, grid_cols, dim, iterations,
			seed, final_qe, converged, config_json, snapshot_blob, created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query,
		run.RunID,
		nullString(run.Label),
		run.GridRows,
		run.GridCols,
		run.Dim,
		run.Iterations,
		run.Seed,
		run.FinalQE,
		boolToInt(run.Converged),
		nullString(string(run.ConfigJSON)),
		blob,
		run.CreatedAtNs,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run record by ID.
func (s *RunStore) GetRun(runID string) (*TrainingRun, error) {
	query := `
		SELECT run_id, label, grid_rows, grid_cols, dim, iterations,
		       seed, final_qe, converged, config_json, created_at_ns
		FROM som_runs WHERE run_id = ?
	`
	var (
		run        TrainingRun
		label      sql.NullString
		configJSON sql.NullString
		converged  int
	)
	err := s.db.QueryRow(query, runID).Scan(
		&run.RunID, &label, &run.GridRows, &run.GridCols, &run.Dim,
		&run.Iterations, &run.Seed, &run.FinalQE, &converged,
		&configJSON, &run.CreatedAtNs,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	run.Label = label.String
	run.Converged = converged != 0
	if configJSON.Valid {
		run.ConfigJSON = json.RawMessage(configJSON.String)
	}
	return &run, nil
}

// GetMap reconstitutes the trained map stored under a run.
func (s *RunStore) GetMap(runID string) (*som.Map, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT snapshot_blob FROM som_runs WHERE run_id = ?`, runID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get map: %w", err)
	}
	snap, err := decodeSnapshot(blob)
	if err != nil {
		return nil, err
	}
	return som.FromSnapshot(snap)
}

// ListRuns returns all run records, newest first.
func (s *RunStore) ListRuns() ([]TrainingRun, error) {
	query := `
		SELECT run_id, label, grid_rows, grid_cols, dim, iterations,
		       seed, final_qe, converged, config_json, created_at_ns
		FROM som_runs ORDER BY created_at_ns DESC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []TrainingRun
	for rows.Next() {
		var (
			run        TrainingRun
			label      sql.NullString
			configJSON sql.NullString
			converged  int
		)
		if err := rows.Scan(
			&run.RunID, &label, &run.GridRows, &run.GridCols, &run.Dim,
			&run.Iterations, &run.Seed, &run.FinalQE, &converged,
			&configJSON, &run.CreatedAtNs,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Label = label.String
		run.Converged = converged != 0
		if configJSON.Valid {
			run.ConfigJSON = json.RawMessage(configJSON.String)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and all its score batches.
func (s *RunStore) DeleteRun(runID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM som_scores WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete scores: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM som_runs WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return tx.Commit()
}

// InsertScores persists a score batch for a run inside one transaction.
// An empty batchID gets a fresh UUID; the batch ID used is returned.
func (s *RunStore) InsertScores(runID, batchID string, scores []som.Score) (string, error) {
	if batchID == "" {
		batchID = uuid.New().String()
	}
	now := s.clock.Now().UnixNano()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("insert scores: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO som_scores (
			run_id, batch_id, sample_idx, bmu_row, bmu_col,
			distance, lattice_jump, created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("prepare score insert: %w", err)
	}
	defer stmt.Close()

	for _, sc := range scores {
		if _, err := stmt.Exec(runID, batchID, sc.Index, sc.Row, sc.Col, sc.Distance, sc.LatticeJump, now); err != nil {
			return "", fmt.Errorf("insert score %d: %w", sc.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit scores: %w", err)
	}
	return batchID, nil
}

// GetScores retrieves one score batch in sample order.
func (s *RunStore) GetScores(runID, batchID string) ([]som.Score, error) {
	rows, err := s.db.Query(`
		SELECT sample_idx, bmu_row, bmu_col, distance, lattice_jump
		FROM som_scores WHERE run_id = ? AND batch_id = ?
		ORDER BY sample_idx
	`, runID, batchID)
	if err != nil {
		return nil, fmt.Errorf("get scores: %w", err)
	}
	defer rows.Close()

	var out []som.Score
	for rows.Next() {
		var sc som.Score
		if err := rows.Scan(&sc.Index, &sc.Row, &sc.Col, &sc.Distance, &sc.LatticeJump); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ListScoreBatches returns the batch IDs recorded for a run, oldest
// first.
func (s *RunStore) ListScoreBatches(runID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT batch_id FROM som_scores WHERE run_id = ?
		GROUP BY batch_id ORDER BY MIN(created_at_ns)
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list score batches: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan batch id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// encodeSnapshot compresses a map snapshot with gob encoding and gzip.
func encodeSnapshot(snap som.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gz).Encode(snap); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(blob []byte) (som.Snapshot, error) {
	var snap som.Snapshot
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return snap, fmt.Errorf("decompress snapshot: %w", err)
	}
	defer gz.Close()
	if err := gob.NewDecoder(gz).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
