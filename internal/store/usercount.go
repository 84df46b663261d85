// internal/store/usercount.go
package store

import (
	"fmt"
	"time"

	"github.com/campusit/mfpusage/internal/export"
)

// Known usage buckets. Everything else the device reports lands in the
// computed "other" bucket.
const (
	catPrintBW    = "印表機:黑白"
	catPrintColor = "印表機:全彩"
	catCopyBW     = "影印:黑白"
	catCopyColor  = "影印:全彩"
)

// UserCountRecord is one user's usage within one snapshot.
type UserCountRecord struct {
	PrinterAddr string
	User        string
	PrintBW     int
	PrintColor  int
	CopyBW      int
	CopyColor   int
	Other       int
	Total       int
	SnapshotAt  time.Time
}

// Usage rebuilds the category->pages map from the bucketed columns,
// skipping empty buckets.
func (r UserCountRecord) Usage() map[string]int {
	usage := make(map[string]int, 5)
	if r.PrintBW > 0 {
		usage[catPrintBW] = r.PrintBW
	}
	if r.PrintColor > 0 {
		usage[catPrintColor] = r.PrintColor
	}
	if r.CopyBW > 0 {
		usage[catCopyBW] = r.CopyBW
	}
	if r.CopyColor > 0 {
		usage[catCopyColor] = r.CopyColor
	}
	if r.Other > 0 {
		usage["其他"] = r.Other
	}
	return usage
}

// InsertUserCounts stores one snapshot batch for a printer. snapshotAt
// should be the capture time parsed from the artifact filename (callers
// fall back to time.Now when the name carries no stamp). Users whose
// total is zero are skipped unless includeZero is set. History is
// append-only; earlier snapshots are never touched.
func (s *Store) InsertUserCounts(printerAddr string, rows []export.UserCountRow, snapshotAt time.Time, includeZero bool) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO user_counts (
			printer_addr, user_name,
			print_bw, print_color, copy_bw, copy_color, other_usage, total_pages,
			snapshot_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, row := range rows {
		printBW := row.Usage[catPrintBW]
		printColor := row.Usage[catPrintColor]
		copyBW := row.Usage[catCopyBW]
		copyColor := row.Usage[catCopyColor]
		known := printBW + printColor + copyBW + copyColor
		other := row.Total - known

		if row.Total == 0 && !includeZero {
			continue
		}
		if _, err := stmt.Exec(
			printerAddr, row.Name,
			printBW, printColor, copyBW, copyColor, other, row.Total,
			fmtTime(snapshotAt),
		); err != nil {
			return 0, fmt.Errorf("insert user count for %s: %w", row.Name, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return count, nil
}

// LatestUserCounts returns the most recent snapshot per printer, ranked
// by total pages descending. printerAddr "" or "all" covers the whole
// fleet, each printer contributing its own latest snapshot. userFilter
// substring-matches the user name; zero-total users are excluded unless
// showZero. limit <= 0 returns all. The second return is the total
// matching count before limit/offset.
func (s *Store) LatestUserCounts(printerAddr, userFilter string, showZero bool, limit, offset int) ([]UserCountRecord, int, error) {
	base := `
		FROM user_counts AS uc
		JOIN (
			SELECT printer_addr, MAX(snapshot_time) AS snapshot_time
			FROM user_counts
			GROUP BY printer_addr
		) AS latest
		  ON uc.printer_addr = latest.printer_addr
		 AND uc.snapshot_time = latest.snapshot_time
		WHERE 1 = 1`
	var args []interface{}

	if printerAddr != "" && printerAddr != "all" {
		base += " AND uc.printer_addr = ?"
		args = append(args, printerAddr)
	}
	if userFilter != "" {
		base += " AND uc.user_name LIKE ?"
		args = append(args, "%"+userFilter+"%")
	}
	if !showZero {
		base += " AND uc.total_pages > 0"
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*)"+base, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count user counts: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	query := `SELECT uc.printer_addr, uc.user_name, uc.print_bw, uc.print_color, uc.copy_bw, uc.copy_color,
	                 uc.other_usage, uc.total_pages, uc.snapshot_time` + base + `
	          ORDER BY uc.total_pages DESC`
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query user counts: %w", err)
	}
	defer rows.Close()

	var out []UserCountRecord
	for rows.Next() {
		var r UserCountRecord
		var snap string
		if err := rows.Scan(
			&r.PrinterAddr, &r.User, &r.PrintBW, &r.PrintColor, &r.CopyBW, &r.CopyColor,
			&r.Other, &r.Total, &snap,
		); err != nil {
			return nil, 0, fmt.Errorf("scan row: %w", err)
		}
		r.SnapshotAt = parseStoredTime(snap)
		out = append(out, r)
	}
	return out, total, rows.Err()
}
