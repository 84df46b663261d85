// internal/export/parser.go
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// JobLogEntry is one normalized device job record. Start is the zero time
// when the source field was missing or unparsable; such rows carry no
// storage identity and are dropped at ingest.
type JobLogEntry struct {
	JobID        string
	AccountJobID string
	Mode         string
	Computer     string
	User         string
	Login        string
	Start        time.Time
	End          time.Time
	BW           int
	Color        int
	Pages        int
	FileName     string
	ScanType     string
	Destination  string
}

// UserCountRow is one user's cumulative usage from a user-count export,
// bucketed by the device's category labels (e.g. "印表機:黑白").
type UserCountRow struct {
	Name  string
	Usage map[string]int
	Total int
}

// Parser turns raw Big5 export files into normalized rows, memoizing
// results through its Cache.
type Parser struct {
	cache Cache

	// zeroed counts numeric fields that failed every parse and were
	// silently coerced to 0; surfaced in the run audit message.
	zeroed int64
}

// NewParser builds a Parser; a nil cache gets the stat-keyed default.
func NewParser(c Cache) *Parser {
	if c == nil {
		c = NewStatCache()
	}
	return &Parser{cache: c}
}

// ZeroedFields returns how many numeric fields were force-coerced to 0.
func (p *Parser) ZeroedFields() int64 { return atomic.LoadInt64(&p.zeroed) }

func (p *Parser) coerce(v string) int {
	n, fellBack := coerceInt(v)
	if fellBack {
		atomic.AddInt64(&p.zeroed, 1)
	}
	return n
}

// readRows decodes a Big5 CSV into header-keyed maps. Undecodable bytes
// become U+FFFD; decoding is never fatal.
func readRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	dec := traditionalchinese.Big5.NewDecoder()
	r := csv.NewReader(transform.NewReader(f, dec))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]string
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		row := make(map[string]string, len(header))
		for i, v := range rec {
			if i < len(header) {
				row[header[i]] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// JobLog parses a job-log artifact into normalized entries.
func (p *Parser) JobLog(path string) ([]JobLogEntry, error) {
	v, err := p.cache.Load(path, func(path string) (interface{}, error) {
		return p.parseJobLog(path)
	})
	if err != nil {
		return nil, err
	}
	return v.([]JobLogEntry), nil
}

func (p *Parser) parseJobLog(path string) ([]JobLogEntry, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	entries := make([]JobLogEntry, 0, len(rows))
	for _, row := range rows {
		e := JobLogEntry{
			JobID:        field(row, aliasJobID),
			AccountJobID: field(row, aliasAccountJobID),
			Mode:         field(row, aliasMode),
			Computer:     field(row, aliasComputer),
			User:         field(row, aliasUser),
			Login:        field(row, aliasLogin),
			Start:        ParseTime(field(row, aliasStart)),
			End:          ParseTime(field(row, aliasEnd)),
			BW:           p.coerce(field(row, aliasBW)),
			Color:        p.coerce(field(row, aliasColor)),
			FileName:     field(row, aliasFileName),
			ScanType:     field(row, aliasScanType),
			Destination:  field(row, aliasDestination),
		}
		// Total is always recomputed; the device's own total column is
		// not trusted.
		e.Pages = e.BW + e.Color
		entries = append(entries, e)
	}
	return entries, nil
}

// usedMarker tags usage columns in user-count exports. The column name is
// "<category>已使用" with an optional fullwidth colon.
const usedMarker = "已使用"

// UserCounts parses a user-count artifact into per-user usage rows.
func (p *Parser) UserCounts(path string) ([]UserCountRow, error) {
	v, err := p.cache.Load(path, func(path string) (interface{}, error) {
		return p.parseUserCounts(path)
	})
	if err != nil {
		return nil, err
	}
	return v.([]UserCountRow), nil
}

func (p *Parser) parseUserCounts(path string) ([]UserCountRow, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	out := make([]UserCountRow, 0, len(rows))
	for _, row := range rows {
		uc := UserCountRow{
			Name:  NormalizeName(field(row, aliasUser), "N/A"),
			Usage: make(map[string]int),
		}
		for key, value := range row {
			if key == "" || key == aliasUser[0] || key == aliasUser[1] {
				continue
			}
			normalized := strings.ReplaceAll(key, "：", ":")
			if !strings.Contains(normalized, usedMarker) {
				continue
			}
			category := strings.TrimRight(strings.SplitN(normalized, usedMarker, 2)[0], ":")
			if category == "" {
				continue
			}
			uc.Usage[category] += p.coerce(value)
		}
		for _, pages := range uc.Usage {
			uc.Total += pages
		}
		out = append(out, uc)
	}
	return out, nil
}
