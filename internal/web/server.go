// internal/web/server.go
//
// JSON API and xlsx export endpoints over the usage database, plus a
// trigger endpoint that starts a fleet update through the run slot.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/campusit/mfpusage/internal/config"
	"github.com/campusit/mfpusage/internal/directory"
	"github.com/campusit/mfpusage/internal/fleet"
	"github.com/campusit/mfpusage/internal/report"
	"github.com/campusit/mfpusage/internal/store"
)

const (
	defaultPerPage = 50
	maxPerPage     = 500
)

// Server serves the usage API.
type Server struct {
	cfg   *config.Config
	st    *store.Store
	orch  *fleet.Orchestrator
	dir   directory.Lookup
	debug func(format string, args ...interface{})
}

// New wires the API server. dir may be nil, debug may be nil.
func New(cfg *config.Config, st *store.Store, orch *fleet.Orchestrator, dir directory.Lookup, debug func(string, ...interface{})) *Server {
	if dir == nil {
		dir = directory.Nop{}
	}
	if debug == nil {
		debug = func(string, ...interface{}) {}
	}
	return &Server{cfg: cfg, st: st, orch: orch, dir: dir, debug: debug}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/jobs", s.handleJobs).Methods(http.MethodGet)
	r.HandleFunc("/api/counts", s.handleCounts).Methods(http.MethodGet)
	r.HandleFunc("/api/leaders", s.handleLeaders).Methods(http.MethodGet)
	r.HandleFunc("/api/runs", s.handleRuns).Methods(http.MethodGet)
	r.HandleFunc("/api/update", s.handleUpdate).Methods(http.MethodPost)
	r.HandleFunc("/export/jobs.xlsx", s.handleJobsXLSX).Methods(http.MethodGet)
	r.HandleFunc("/export/counts.xlsx", s.handleCountsXLSX).Methods(http.MethodGet)
	r.HandleFunc("/export/leaders.xlsx", s.handleLeadersXLSX).Methods(http.MethodGet)
	return r
}

// ListenAndServe blocks serving the API until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}

// jobFilter builds a store filter from the common query parameters. A user
// keyword is also resolved through the directory so a search by display name
// matches rows stored under the login name.
func (s *Server) jobFilter(r *http.Request) (store.JobLogFilter, error) {
	q := r.URL.Query()
	f := store.JobLogFilter{
		Printer:         q.Get("printer"),
		UserKeyword:     q.Get("user"),
		ModeKeyword:     q.Get("mode"),
		ComputerKeyword: q.Get("computer"),
		FileKeyword:     q.Get("file"),
	}
	if f.UserKeyword != "" {
		f.UserMatches = s.dir.SearchUsernames(f.UserKeyword)
	}
	start, end, err := report.ResolveRange(q.Get("month"), q.Get("week"), q.Get("start"), q.Get("end"))
	if err != nil {
		return f, err
	}
	f.Start, f.End = start, end
	return f, nil
}

func paging(r *http.Request) (page, perPage int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(q.Get("per_page"))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	f, err := s.jobFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	records, err := s.st.QueryJobLogs(f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	page, perPage := paging(r)
	total := len(records)
	records = slicePage(records, page, perPage)

	type jobRow struct {
		store.JobLogRecord
		Display string `json:"display_name"`
	}
	rows := make([]jobRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, jobRow{rec, s.dir.DisplayName(rec.Login)})
	}
	writeJSON(w, map[string]interface{}{
		"total": total, "page": page, "per_page": perPage, "jobs": rows,
	})
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, perPage := paging(r)
	showZero := q.Get("show_zero") == "1"
	records, total, err := s.st.LatestUserCounts(q.Get("printer"), q.Get("user"), showZero, perPage, (page-1)*perPage)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"total": total, "page": page, "per_page": perPage, "counts": records,
	})
}

func (s *Server) handleLeaders(w http.ResponseWriter, r *http.Request) {
	f, err := s.jobFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	page, perPage := paging(r)
	users, total, err := s.st.AggregateUsers(f, page, perPage)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	type leaderRow struct {
		store.UserPageSum
		Display string `json:"display_name"`
	}
	rows := make([]leaderRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, leaderRow{u, s.dir.DisplayName(u.Login)})
	}
	writeJSON(w, map[string]interface{}{
		"total": total, "page": page, "per_page": perPage, "leaders": rows,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 200 {
		limit = 20
	}
	runs, err := s.st.ListRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]interface{}{"runs": runs, "running": s.orch.Running()})
}

// handleUpdate kicks off a fleet run in the background. A second trigger
// while one is in flight gets 409 immediately instead of queueing.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	printers := s.cfg.ResolvePrinters(r.URL.Query().Get("printer"))
	if len(printers) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("no matching printers"))
		return
	}
	if err := s.orch.Start(printers, fleet.SourceWeb, 30*time.Minute); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "started", "printers": len(printers)})
}

func (s *Server) handleJobsXLSX(w http.ResponseWriter, r *http.Request) {
	f, err := s.jobFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	records, err := s.st.QueryJobLogs(f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	xlsxHeaders(w, "jobs")
	if err := report.WriteJobsXLSX(w, records); err != nil {
		s.debug("jobs xlsx: %v", err)
	}
}

func (s *Server) handleCountsXLSX(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, _, err := s.st.LatestUserCounts(q.Get("printer"), q.Get("user"), q.Get("show_zero") == "1", maxPerPage*10, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	xlsxHeaders(w, "counts")
	if err := report.WriteCountsXLSX(w, records); err != nil {
		s.debug("counts xlsx: %v", err)
	}
}

func (s *Server) handleLeadersXLSX(w http.ResponseWriter, r *http.Request) {
	f, err := s.jobFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	records, err := s.st.QueryJobLogs(f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	rep := report.Build(f.Printer, records)
	for i := range rep.TopUsers {
		rep.TopUsers[i].User = directory.FormatUser(s.dir, rep.TopUsers[i].Login)
	}
	xlsxHeaders(w, "leaders")
	if err := report.WriteLeadersXLSX(w, rep); err != nil {
		s.debug("leaders xlsx: %v", err)
	}
}

func xlsxHeaders(w http.ResponseWriter, stem string) {
	name := fmt.Sprintf("%s_%s.xlsx", stem, time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func slicePage[T any](items []T, page, perPage int) []T {
	lo := (page - 1) * perPage
	if lo >= len(items) {
		return nil
	}
	hi := lo + perPage
	if hi > len(items) {
		hi = len(items)
	}
	return items[lo:hi]
}
