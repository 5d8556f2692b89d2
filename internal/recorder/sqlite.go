package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"CycleSentinel/internal/model"
)

// SQLiteRecorder persists analysis runs to a SQLite database. One row per
// side per run in calculations, one row per indicator in indicator_results.
type SQLiteRecorder struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so status queries can read while a run is being written.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, path: dbPath}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS calculations (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id           TEXT NOT NULL,
			timestamp        INTEGER NOT NULL,
			side             TEXT NOT NULL,
			composite_score  REAL,
			success_rate     REAL,
			duration_seconds REAL,
			strength         TEXT,
			raw_data         TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_calc_ts ON calculations(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_calc_side ON calculations(side)`,
		`CREATE INDEX IF NOT EXISTS idx_calc_run ON calculations(run_id)`,

		`CREATE TABLE IF NOT EXISTS indicator_results (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			calculation_id   INTEGER NOT NULL,
			indicator_name   TEXT NOT NULL,
			side             TEXT NOT NULL,
			raw_value        REAL,
			normalized_score REAL,
			weight           REAL,
			bounds_lower     REAL,
			bounds_upper     REAL,
			timestamp        INTEGER NOT NULL,
			error_message    TEXT,
			FOREIGN KEY (calculation_id) REFERENCES calculations (id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ind_name ON indicator_results(indicator_name)`,
		`CREATE INDEX IF NOT EXISTS idx_ind_ts ON indicator_results(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun persists both sides of a run. A side with a nil composite is
// still recorded so failed runs remain visible in history.
func (r *SQLiteRecorder) RecordRun(run *model.RunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, side := range []*model.CompositeResult{run.Bottom, run.Top} {
		if side == nil {
			continue
		}
		if err := r.recordSide(tx, run, side); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) recordSide(tx *sql.Tx, run *model.RunResult, side *model.CompositeResult) error {
	raw, err := json.Marshal(side)
	if err != nil {
		return fmt.Errorf("marshal %s analysis: %w", side.Side, err)
	}

	var strength string
	if side.Interpretation != nil {
		strength = side.Interpretation.Strength
	}

	res, err := tx.Exec(`INSERT INTO calculations
		(run_id, timestamp, side, composite_score, success_rate, duration_seconds, strength, raw_data)
		VALUES (?,?,?,?,?,?,?,?)`,
		run.RunID, run.StartTime.Unix(), string(side.Side),
		nullable(side.CompositeScore), side.Quality.SuccessRate,
		run.Duration.Seconds(), strength, string(raw),
	)
	if err != nil {
		return fmt.Errorf("insert %s calculation: %w", side.Side, err)
	}
	calcID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("calculation id: %w", err)
	}

	for _, ind := range side.Results {
		_, err := tx.Exec(`INSERT INTO indicator_results
			(calculation_id, indicator_name, side, raw_value, normalized_score,
			 weight, bounds_lower, bounds_upper, timestamp, error_message)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			calcID, ind.Name, string(ind.Side),
			nullable(ind.RawValue), nullable(ind.NormalizedScore),
			ind.Weight, ind.Bounds.Lower, ind.Bounds.Upper,
			ind.Timestamp.Unix(), ind.Error,
		)
		if err != nil {
			return fmt.Errorf("insert indicator %s: %w", ind.Name, err)
		}
	}
	return nil
}

// RecentCalculations returns calculations within the last hours, newest
// first. An empty side matches both sides.
func (r *SQLiteRecorder) RecentCalculations(hours int, side model.Side) ([]CalculationRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour).Unix()
	query := `SELECT id, run_id, timestamp, side, composite_score, success_rate, duration_seconds, strength
		FROM calculations WHERE timestamp > ?`
	args := []any{cutoff}
	if side != "" {
		query += ` AND side = ?`
		args = append(args, string(side))
	}
	query += ` ORDER BY timestamp DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query calculations: %w", err)
	}
	defer rows.Close()

	var out []CalculationRow
	for rows.Next() {
		var row CalculationRow
		var ts int64
		var score sql.NullFloat64
		var sideStr string
		if err := rows.Scan(&row.ID, &row.RunID, &ts, &sideStr, &score,
			&row.SuccessRate, &row.DurationSec, &row.Strength); err != nil {
			return nil, fmt.Errorf("scan calculation: %w", err)
		}
		row.Timestamp = time.Unix(ts, 0)
		row.Side = model.Side(sideStr)
		if score.Valid {
			row.CompositeScore = model.Float(score.Float64)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// IndicatorHistory returns one indicator's results within the last days,
// newest first.
func (r *SQLiteRecorder) IndicatorHistory(name string, days int) ([]IndicatorRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -days).Unix()
	rows, err := r.db.Query(`SELECT id, calculation_id, indicator_name, side,
			raw_value, normalized_score, weight, timestamp, error_message
		FROM indicator_results
		WHERE indicator_name = ? AND timestamp > ?
		ORDER BY timestamp DESC`, name, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query indicator history: %w", err)
	}
	defer rows.Close()

	var out []IndicatorRow
	for rows.Next() {
		var row IndicatorRow
		var ts int64
		var raw, score sql.NullFloat64
		var sideStr string
		if err := rows.Scan(&row.ID, &row.CalculationID, &row.Name, &sideStr,
			&raw, &score, &row.Weight, &ts, &row.Error); err != nil {
			return nil, fmt.Errorf("scan indicator: %w", err)
		}
		row.Timestamp = time.Unix(ts, 0)
		row.Side = model.Side(sideStr)
		if raw.Valid {
			row.RawValue = model.Float(raw.Float64)
		}
		if score.Valid {
			row.NormalizedScore = model.Float(score.Float64)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Cleanup deletes calculations and their indicator rows older than the
// retention window. Returns the number of calculations removed.
func (r *SQLiteRecorder) Cleanup(retentionDays int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays).Unix()

	if _, err := r.db.Exec(`DELETE FROM indicator_results
		WHERE calculation_id IN (SELECT id FROM calculations WHERE timestamp < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("cleanup indicators: %w", err)
	}
	res, err := r.db.Exec(`DELETE FROM calculations WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup calculations: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		log.Printf("[INFO] cleaned up %d calculations older than %d days", n, retentionDays)
	}
	return n, nil
}

// Stats reports row counts, recent activity, and file size.
func (r *SQLiteRecorder) Stats() (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Stats{}
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM calculations`).Scan(&s.Calculations); err != nil {
		return nil, fmt.Errorf("count calculations: %w", err)
	}
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM indicator_results`).Scan(&s.IndicatorResults); err != nil {
		return nil, fmt.Errorf("count indicators: %w", err)
	}
	dayAgo := time.Now().Add(-24 * time.Hour).Unix()
	if err := r.db.QueryRow(`SELECT COUNT(DISTINCT run_id) FROM calculations WHERE timestamp > ?`, dayAgo).Scan(&s.RunsLast24h); err != nil {
		return nil, fmt.Errorf("count recent runs: %w", err)
	}
	if info, err := os.Stat(r.path); err == nil {
		s.SizeBytes = info.Size()
	}
	return s, nil
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
