// internal/store/updatelog.go
package store

import (
	"fmt"
	"time"
)

// Run statuses for the audit trail.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusError   = "error"
	RunStatusWarning = "warning"
)

// RunRecord is one orchestration run in the audit log.
type RunRecord struct {
	ID            int64
	RunID         string
	TriggerSource string
	Status        string
	Start         time.Time
	End           time.Time
	Message       string
}

// StartRun creates the audit row for a run in status "running" and
// returns its row id for the later FinishRun.
func (s *Store) StartRun(runID, source, message string) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO update_logs (run_id, trigger_source, status, start_time, message)
		VALUES (?, ?, ?, ?, ?)`,
		runID, source, RunStatusRunning, fmtTime(time.Now()), message)
	if err != nil {
		return 0, fmt.Errorf("insert run log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run log id: %w", err)
	}
	return id, nil
}

// FinishRun mutates a run's audit row once, to its terminal status.
func (s *Store) FinishRun(id int64, status, message string) error {
	_, err := s.db.Exec(`
		UPDATE update_logs SET status = ?, message = ?, end_time = ? WHERE id = ?`,
		status, message, fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish run log: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0
// returns all.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	query := `
		SELECT id, run_id, trigger_source, status, start_time, end_time, message
		FROM update_logs
		ORDER BY start_time DESC, id DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run logs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var start, end string
		if err := rows.Scan(&r.ID, &r.RunID, &r.TriggerSource, &r.Status, &start, &end, &r.Message); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Start = parseStoredTime(start)
		r.End = parseStoredTime(end)
		out = append(out, r)
	}
	return out, rows.Err()
}
