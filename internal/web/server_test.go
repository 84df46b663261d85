// internal/web/server_test.go
package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/campusit/mfpusage/internal/config"
	"github.com/campusit/mfpusage/internal/directory"
	"github.com/campusit/mfpusage/internal/export"
	"github.com/campusit/mfpusage/internal/fleet"
	"github.com/campusit/mfpusage/internal/mfp"
	"github.com/campusit/mfpusage/internal/store"
)

func testServer(t *testing.T, printers ...config.Printer) (*Server, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	if len(printers) == 0 {
		printers = []config.Printer{{URL: "http://10.0.1.20"}}
	}
	cfg := &config.Config{
		Printers:     printers,
		ExportDir:    filepath.Join(dir, "exports"),
		DatabasePath: filepath.Join(dir, "usage.db"),
	}
	cfg.ApplyDefaults()
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	orch := fleet.New(cfg, st, nil)
	lookup := directory.Static{"wang01": "王小明"}
	return New(cfg, st, orch, lookup, nil), st
}

func seedJobs(t *testing.T, st *store.Store) {
	t.Helper()
	entries := []export.JobLogEntry{
		{JobID: "1", User: "wang", Login: "wang01", Start: time.Date(2026, 2, 5, 10, 0, 0, 0, time.Local), BW: 3, Pages: 3},
		{JobID: "2", User: "陳大文", Login: "chen02", Start: time.Date(2026, 2, 6, 11, 0, 0, 0, time.Local), Color: 5, Pages: 5},
	}
	if _, err := st.UpsertJobLogs("http://10.0.1.20", entries); err != nil {
		t.Fatal(err)
	}
}

func get(t *testing.T, s *Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestJobsEndpoint(t *testing.T) {
	s, st := testServer(t)
	seedJobs(t, st)

	w := get(t, s, "/api/jobs")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Total int `json:"total"`
		Jobs  []struct {
			Login   string `json:"Login"`
			Display string `json:"display_name"`
		} `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || len(resp.Jobs) != 2 {
		t.Fatalf("total = %d, jobs = %d, want 2", resp.Total, len(resp.Jobs))
	}
	// Newest first, with the directory name attached.
	if resp.Jobs[0].Login != "chen02" {
		t.Errorf("first job = %+v, want newest (chen02)", resp.Jobs[0])
	}
	if resp.Jobs[1].Display != "王小明" {
		t.Errorf("display_name = %q", resp.Jobs[1].Display)
	}
}

func TestJobsEndpointUserSearchViaDirectory(t *testing.T) {
	s, st := testServer(t)
	seedJobs(t, st)

	// 小明 only appears in the directory display name, not in any stored
	// row field; the search must expand through the lookup.
	w := get(t, s, "/api/jobs?user="+"%E5%B0%8F%E6%98%8E")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 {
		t.Errorf("total = %d, want 1 via directory expansion", resp.Total)
	}
}

func TestJobsEndpointRejectsBadRange(t *testing.T) {
	s, _ := testServer(t)
	if w := get(t, s, "/api/jobs?month=notamonth"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if w := get(t, s, "/api/jobs?month=2026-02&week=2026-W06"); w.Code != http.StatusBadRequest {
		t.Errorf("status for month+week = %d, want 400", w.Code)
	}
}

func TestLeadersEndpoint(t *testing.T) {
	s, st := testServer(t)
	seedJobs(t, st)

	w := get(t, s, "/api/leaders")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Leaders []struct {
			Login string `json:"Login"`
			Pages int    `json:"Pages"`
		} `json:"leaders"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Leaders) != 2 || resp.Leaders[0].Login != "chen02" || resp.Leaders[0].Pages != 5 {
		t.Errorf("leaders = %+v", resp.Leaders)
	}
}

func TestRunsEndpoint(t *testing.T) {
	s, st := testServer(t)
	if _, err := st.StartRun("run-1", "cli", ""); err != nil {
		t.Fatal(err)
	}

	w := get(t, s, "/api/runs")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Runs    []store.RunRecord `json:"runs"`
		Running bool              `json:"running"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Runs) != 1 || resp.Running {
		t.Errorf("resp = %+v", resp)
	}
}

func TestUpdateEndpoint(t *testing.T) {
	mock := mfp.StartMockPrinter()
	defer mock.Close()
	s, st := testServer(t, config.Printer{URL: mock.URL()})

	req := httptest.NewRequest(http.MethodPost, "/api/update", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	// The background run finishes and leaves a terminal audit row.
	deadline := time.Now().Add(10 * time.Second)
	for {
		runs, err := st.ListRuns(1)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) == 1 && runs[0].Status != store.RunStatusRunning {
			if runs[0].Status != store.RunStatusSuccess {
				t.Errorf("run status = %q (%s)", runs[0].Status, runs[0].Message)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("background run did not finish")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestUpdateEndpointBusy(t *testing.T) {
	// A device that never answers keeps the run slot held for the whole
	// test.
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer slow.Close()
	defer close(release)

	s, _ := testServer(t, config.Printer{URL: slow.URL})

	if err := s.orch.Start(s.cfg.Printers, fleet.SourceCLI, time.Minute); err != nil {
		t.Fatalf("Start() = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/update", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 while busy", w.Code)
	}
}

func TestExportJobsXLSX(t *testing.T) {
	s, st := testServer(t)
	seedJobs(t, st)

	w := get(t, s, "/export/jobs.xlsx")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("empty workbook body")
	}
}
