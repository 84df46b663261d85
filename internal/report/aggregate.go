// internal/report/aggregate.go
package report

import (
	"sort"
	"strings"

	"github.com/campusit/mfpusage/internal/export"
	"github.com/campusit/mfpusage/internal/store"
)

// Totals sums the jobs in a report.
type Totals struct {
	Jobs  int `json:"jobs"`
	BW    int `json:"bw"`
	Color int `json:"color"`
	Pages int `json:"pages"`
}

// UserStat is one user's share of a report.
type UserStat struct {
	User  string `json:"user"`
	Login string `json:"login"`
	Jobs  int    `json:"jobs"`
	BW    int    `json:"bw"`
	Color int    `json:"color"`
	Pages int    `json:"pages"`
}

// Report aggregates one printer's filtered job logs.
type Report struct {
	Printer  string               `json:"printer"`
	Alias    string               `json:"alias,omitempty"`
	Totals   Totals               `json:"totals"`
	TopUsers []UserStat           `json:"top_users"`
	Entries  []store.JobLogRecord `json:"-"`
}

type userKey struct {
	user  string
	login string
}

// Build aggregates job-log records into totals and a per-user ranking:
// pages descending, ties broken by job count descending.
func Build(printer string, records []store.JobLogRecord) *Report {
	r := &Report{Printer: printer, Entries: records}
	stats := make(map[userKey]*UserStat)

	for _, rec := range records {
		r.Totals.Jobs++
		r.Totals.BW += rec.BW
		r.Totals.Color += rec.Color
		r.Totals.Pages += rec.Pages

		key := userKey{
			user:  strings.ToLower(export.NormalizeName(rec.User, "未知")),
			login: strings.ToLower(export.NormalizeName(rec.Login, "N/A")),
		}
		st, ok := stats[key]
		if !ok {
			st = &UserStat{
				User:  export.NormalizeName(rec.User, "未知"),
				Login: export.NormalizeName(rec.Login, "N/A"),
			}
			stats[key] = st
		}
		st.Jobs++
		st.BW += rec.BW
		st.Color += rec.Color
		st.Pages += rec.Pages
	}

	r.TopUsers = rankUsers(stats)
	return r
}

// Merge combines per-printer reports into a fleet-wide summary.
func Merge(reports []*Report) *Report {
	if len(reports) == 0 {
		return nil
	}
	out := &Report{Printer: "all"}
	stats := make(map[userKey]*UserStat)

	for _, rep := range reports {
		out.Totals.Jobs += rep.Totals.Jobs
		out.Totals.BW += rep.Totals.BW
		out.Totals.Color += rep.Totals.Color
		out.Totals.Pages += rep.Totals.Pages

		for _, u := range rep.TopUsers {
			key := userKey{user: strings.ToLower(u.User), login: strings.ToLower(u.Login)}
			st, ok := stats[key]
			if !ok {
				st = &UserStat{User: u.User, Login: u.Login}
				stats[key] = st
			}
			st.Jobs += u.Jobs
			st.BW += u.BW
			st.Color += u.Color
			st.Pages += u.Pages
		}
	}

	out.TopUsers = rankUsers(stats)
	return out
}

func rankUsers(stats map[userKey]*UserStat) []UserStat {
	users := make([]UserStat, 0, len(stats))
	for _, st := range stats {
		users = append(users, *st)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Pages != users[j].Pages {
			return users[i].Pages > users[j].Pages
		}
		if users[i].Jobs != users[j].Jobs {
			return users[i].Jobs > users[j].Jobs
		}
		return users[i].User < users[j].User
	})
	return users
}
