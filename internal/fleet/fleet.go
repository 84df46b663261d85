// internal/fleet/fleet.go
//
// Fleet orchestration: walk the configured printers in sequence, pull both
// exports from each, ingest them, then prune old artifacts. A run holds a
// single non-blocking slot so overlapping triggers (CLI and web) never
// interleave device sessions.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/campusit/mfpusage/internal/config"
	"github.com/campusit/mfpusage/internal/export"
	"github.com/campusit/mfpusage/internal/mfp"
	"github.com/campusit/mfpusage/internal/retry"
	"github.com/campusit/mfpusage/internal/store"
)

// ErrBusy is returned when a run is already in flight.
var ErrBusy = errors.New("an update run is already in progress")

// keepArtifacts is how many exports survive cleanup per printer and kind.
const keepArtifacts = 2

// Source identifies what triggered a run, recorded in the audit log.
type Source string

const (
	SourceCLI Source = "cli"
	SourceWeb Source = "web"
)

// PrinterResult is the outcome for a single printer within a run.
type PrinterResult struct {
	Printer   string
	Alias     string
	CountRows int
	JobRows   int
	Err       error
}

// RunResult summarizes a completed fleet run.
type RunResult struct {
	RunID    string
	Results  []PrinterResult
	Zeroed   int64
	Removed  []string
	Duration time.Duration
}

// Failed reports whether every printer in the run errored.
func (r *RunResult) Failed() bool {
	if len(r.Results) == 0 {
		return true
	}
	for _, pr := range r.Results {
		if pr.Err == nil {
			return false
		}
	}
	return true
}

// Partial reports whether some but not all printers errored.
func (r *RunResult) Partial() bool {
	var ok, bad bool
	for _, pr := range r.Results {
		if pr.Err == nil {
			ok = true
		} else {
			bad = true
		}
	}
	return ok && bad
}

// Orchestrator drives update runs against the configured fleet.
type Orchestrator struct {
	cfg   *config.Config
	st    *store.Store
	debug func(format string, args ...interface{})

	mu      sync.Mutex
	running bool
}

// New returns an orchestrator. debug may be nil.
func New(cfg *config.Config, st *store.Store, debug func(string, ...interface{})) *Orchestrator {
	if debug == nil {
		debug = func(string, ...interface{}) {}
	}
	return &Orchestrator{cfg: cfg, st: st, debug: debug}
}

// Running reports whether a run currently holds the slot.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

func (o *Orchestrator) tryAcquire() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return false
	}
	o.running = true
	return true
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
}

// Run updates the given printers. It returns ErrBusy without blocking when
// another run holds the slot. Per-printer failures are isolated: one dead
// device never aborts the rest of the sweep.
func (o *Orchestrator) Run(ctx context.Context, printers []config.Printer, source Source) (*RunResult, error) {
	if !o.tryAcquire() {
		return nil, ErrBusy
	}
	defer o.release()
	return o.run(ctx, printers, source)
}

// Start acquires the run slot synchronously, then performs the run in the
// background. It returns ErrBusy when the slot is taken, so a web trigger
// can answer 409 before any device work begins.
func (o *Orchestrator) Start(printers []config.Printer, source Source, timeout time.Duration) error {
	if !o.tryAcquire() {
		return ErrBusy
	}
	go func() {
		defer o.release()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := o.run(ctx, printers, source); err != nil {
			o.debug("background run: %v", err)
		}
	}()
	return nil
}

func (o *Orchestrator) run(ctx context.Context, printers []config.Printer, source Source) (*RunResult, error) {

	started := time.Now()
	res := &RunResult{RunID: uuid.New().String()}

	auditID, err := o.st.StartRun(res.RunID, string(source), fmt.Sprintf("updating %d printers", len(printers)))
	if err != nil {
		return nil, fmt.Errorf("record run start: %w", err)
	}

	parser := export.NewParser(nil)

	// Pace successive device sessions so a sweep never hammers the network.
	pace := rate.NewLimiter(rate.Every(time.Duration(o.cfg.PauseSeconds*float64(time.Second))), 1)
	pace.Allow() // drain the initial token; the first gap must be a full pause

	for i, p := range printers {
		if i > 0 {
			if err := pace.Wait(ctx); err != nil {
				res.Results = append(res.Results, PrinterResult{Printer: p.URL, Alias: p.Alias, Err: err})
				break
			}
		}
		pr := o.updatePrinter(ctx, parser, p)
		res.Results = append(res.Results, pr)
		if pr.Err != nil {
			o.debug("printer %s failed: %v", p.URL, pr.Err)
		}
	}

	res.Zeroed = parser.ZeroedFields()

	removed, cleanErr := export.Cleanup(o.cfg.ExportDir, keepArtifacts)
	if cleanErr != nil {
		o.debug("artifact cleanup: %v", cleanErr)
	}
	res.Removed = removed
	res.Duration = time.Since(started)

	status, msg := summarize(res)
	if err := o.st.FinishRun(auditID, status, msg); err != nil {
		return res, fmt.Errorf("record run finish: %w", err)
	}
	return res, nil
}

// updatePrinter runs the full per-device sequence: login, export and ingest
// the user counters, export and ingest the job log. Transport failures are
// retried; protocol failures are not.
func (o *Orchestrator) updatePrinter(ctx context.Context, parser *export.Parser, p config.Printer) PrinterResult {
	res := PrinterResult{Printer: p.URL, Alias: p.Alias}

	client := mfp.NewClient(p.URL, o.cfg.Username, o.cfg.Password, mfp.Options{
		Timeout:         time.Duration(o.cfg.TimeoutSeconds) * time.Second,
		UserNum:         o.cfg.UserNum,
		DeleteAfterSave: o.cfg.DeleteAfterSave,
	})

	attempts := o.cfg.RetryCount
	if err := retry.Do(ctx, attempts, time.Second, func() error {
		return client.Login(ctx)
	}); err != nil {
		res.Err = fmt.Errorf("login: %w", err)
		return res
	}
	o.debug("logged in to %s", p.URL)

	var countPath string
	if err := retry.Do(ctx, attempts, time.Second, func() error {
		var err error
		countPath, err = client.ExportUserCount(ctx, o.cfg.ExportDir)
		return err
	}); err != nil {
		res.Err = fmt.Errorf("user count export: %w", err)
		return res
	}

	rows, err := parser.UserCounts(countPath)
	if err != nil {
		res.Err = fmt.Errorf("parse %s: %w", countPath, err)
		return res
	}
	snapshot, ok := export.CaptureTime(countPath)
	if !ok {
		snapshot = time.Now()
	}
	n, err := o.st.InsertUserCounts(p.URL, rows, snapshot, false)
	if err != nil {
		res.Err = fmt.Errorf("ingest user counts: %w", err)
		return res
	}
	res.CountRows = n
	o.debug("ingested %d counter rows from %s", n, p.URL)

	var jobPath string
	if err := retry.Do(ctx, attempts, time.Second, func() error {
		var err error
		jobPath, err = client.ExportJobLog(ctx, o.cfg.ExportDir)
		return err
	}); err != nil {
		res.Err = fmt.Errorf("job log export: %w", err)
		return res
	}

	entries, err := parser.JobLog(jobPath)
	if err != nil {
		res.Err = fmt.Errorf("parse %s: %w", jobPath, err)
		return res
	}
	n, err = o.st.UpsertJobLogs(p.URL, entries)
	if err != nil {
		res.Err = fmt.Errorf("ingest job logs: %w", err)
		return res
	}
	res.JobRows = n
	o.debug("ingested %d job rows from %s", n, p.URL)

	return res
}

// summarize picks the audit status and message for a finished run.
func summarize(res *RunResult) (string, string) {
	var parts []string
	var firstErr string
	jobs, counts := 0, 0
	for _, pr := range res.Results {
		if pr.Err != nil {
			if firstErr == "" {
				firstErr = fmt.Sprintf("%s: %v", pr.Printer, pr.Err)
			}
			continue
		}
		jobs += pr.JobRows
		counts += pr.CountRows
	}
	parts = append(parts, fmt.Sprintf("%d job rows, %d counter rows", jobs, counts))
	if res.Zeroed > 0 {
		parts = append(parts, fmt.Sprintf("%d numeric fields coerced to zero", res.Zeroed))
	}
	if len(res.Removed) > 0 {
		parts = append(parts, fmt.Sprintf("%d old exports pruned", len(res.Removed)))
	}
	if firstErr != "" {
		parts = append(parts, firstErr)
	}
	msg := strings.Join(parts, "; ")

	switch {
	case res.Failed():
		return store.RunStatusError, msg
	case res.Partial():
		return store.RunStatusWarning, msg
	default:
		return store.RunStatusSuccess, msg
	}
}
