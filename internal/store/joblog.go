// internal/store/joblog.go
package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/campusit/mfpusage/internal/export"
)

// JobLogRecord is a persisted job-log row.
type JobLogRecord struct {
	ID           int64
	PrinterAddr  string
	JobID        string
	AccountJobID string
	Mode         string
	User         string
	Login        string
	Computer     string
	Start        time.Time
	End          time.Time
	BW           int
	Color        int
	Pages        int
	FileName     string
	ScanType     string
	Destination  string
}

// UpsertJobLogs ingests normalized entries for one printer inside a single
// transaction (one export file = one atomicity unit). The natural key is
// (printer_addr, job_id, start_time); on conflict only the fields that can
// legitimately change on re-export are updated; identity fields are never
// overwritten. Entries without a start time are dropped: they cannot be
// keyed. Returns the number of rows written.
func (s *Store) UpsertJobLogs(printerAddr string, entries []export.JobLogEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO job_logs (
			printer_addr, job_id, account_job_id, mode,
			user_name, login_name, computer_name,
			start_time, end_time, bw_pages, color_pages, total_pages,
			file_name, scan_type, destination
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (printer_addr, job_id, start_time) DO UPDATE SET
			file_name   = excluded.file_name,
			scan_type   = excluded.scan_type,
			destination = excluded.destination,
			bw_pages    = excluded.bw_pages,
			color_pages = excluded.color_pages,
			total_pages = excluded.total_pages`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, e := range entries {
		if e.Start.IsZero() {
			continue
		}
		if _, err := stmt.Exec(
			printerAddr, e.JobID, e.AccountJobID, e.Mode,
			e.User, e.Login, e.Computer,
			fmtTime(e.Start), fmtTime(e.End), e.BW, e.Color, e.Pages,
			e.FileName, e.ScanType, e.Destination,
		); err != nil {
			return 0, fmt.Errorf("upsert job %s: %w", e.JobID, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return count, nil
}

// JobLogFilter narrows job-log queries. Zero values mean "no constraint";
// Printer "all" matches everything. UserMatches carries usernames resolved
// externally (directory lookup) and is OR-ed with the keyword match.
type JobLogFilter struct {
	Printer         string
	UserKeyword     string
	UserMatches     []string
	ModeKeyword     string
	ComputerKeyword string
	FileKeyword     string
	Start           time.Time
	End             time.Time
}

func (f JobLogFilter) where() (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.Printer != "" && f.Printer != "all" {
		conds = append(conds, "printer_addr = ?")
		args = append(args, f.Printer)
	}
	if f.UserKeyword != "" {
		kw := "%" + f.UserKeyword + "%"
		if len(f.UserMatches) > 0 {
			ph := strings.TrimSuffix(strings.Repeat("?,", len(f.UserMatches)), ",")
			conds = append(conds, fmt.Sprintf(
				"(user_name LIKE ? OR login_name LIKE ? OR user_name IN (%s) OR login_name IN (%s))", ph, ph))
			args = append(args, kw, kw)
			for i := 0; i < 2; i++ {
				for _, u := range f.UserMatches {
					args = append(args, u)
				}
			}
		} else {
			conds = append(conds, "(user_name LIKE ? OR login_name LIKE ?)")
			args = append(args, kw, kw)
		}
	}
	if f.ModeKeyword != "" {
		conds = append(conds, "mode LIKE ?")
		args = append(args, "%"+f.ModeKeyword+"%")
	}
	if f.ComputerKeyword != "" {
		conds = append(conds, "computer_name LIKE ?")
		args = append(args, "%"+f.ComputerKeyword+"%")
	}
	if f.FileKeyword != "" {
		kw := "%" + f.FileKeyword + "%"
		conds = append(conds, "(file_name LIKE ? OR scan_type LIKE ? OR destination LIKE ?)")
		args = append(args, kw, kw, kw)
	}
	if !f.Start.IsZero() {
		conds = append(conds, "start_time >= ?")
		args = append(args, fmtTime(f.Start))
	}
	if !f.End.IsZero() {
		conds = append(conds, "start_time <= ?")
		args = append(args, fmtTime(f.End))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// QueryJobLogs returns matching rows, newest start time first.
func (s *Store) QueryJobLogs(f JobLogFilter) ([]JobLogRecord, error) {
	where, args := f.where()
	rows, err := s.db.Query(`
		SELECT id, printer_addr, job_id, account_job_id, mode,
		       user_name, login_name, computer_name,
		       start_time, end_time, bw_pages, color_pages, total_pages,
		       file_name, scan_type, destination
		FROM job_logs`+where+`
		ORDER BY start_time DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query job logs: %w", err)
	}
	defer rows.Close()

	var records []JobLogRecord
	for rows.Next() {
		var r JobLogRecord
		var start, end string
		if err := rows.Scan(
			&r.ID, &r.PrinterAddr, &r.JobID, &r.AccountJobID, &r.Mode,
			&r.User, &r.Login, &r.Computer,
			&start, &end, &r.BW, &r.Color, &r.Pages,
			&r.FileName, &r.ScanType, &r.Destination,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Start = parseStoredTime(start)
		r.End = parseStoredTime(end)
		records = append(records, r)
	}
	return records, rows.Err()
}

// UserPageSum is one (user, login) pair's aggregate over the filtered logs.
type UserPageSum struct {
	User  string
	Login string
	Jobs  int
	BW    int
	Color int
	Pages int
}

// AggregateUsers groups the filtered job logs by (user, login), ranked by
// total pages descending with job count as tiebreaker. page is 1-based;
// perPage <= 0 disables pagination. Returns the page plus the total number
// of distinct users.
func (s *Store) AggregateUsers(f JobLogFilter, page, perPage int) ([]UserPageSum, int, error) {
	where, args := f.where()

	var total int
	countSQL := "SELECT COUNT(*) FROM (SELECT 1 FROM job_logs" + where + " GROUP BY user_name, login_name)"
	if err := s.db.QueryRow(countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	query := `
		SELECT user_name, login_name, COUNT(*),
		       SUM(bw_pages), SUM(color_pages), SUM(total_pages) AS page_sum
		FROM job_logs` + where + `
		GROUP BY user_name, login_name
		ORDER BY page_sum DESC, COUNT(*) DESC`
	queryArgs := args
	if perPage > 0 {
		if page < 1 {
			page = 1
		}
		query += " LIMIT ? OFFSET ?"
		queryArgs = append(append([]interface{}{}, args...), perPage, (page-1)*perPage)
	}

	rows, err := s.db.Query(query, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("aggregate users: %w", err)
	}
	defer rows.Close()

	var out []UserPageSum
	for rows.Next() {
		var u UserPageSum
		if err := rows.Scan(&u.User, &u.Login, &u.Jobs, &u.BW, &u.Color, &u.Pages); err != nil {
			return nil, 0, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}
