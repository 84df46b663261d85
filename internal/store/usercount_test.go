// internal/store/usercount_test.go
package store

import (
	"testing"
	"time"

	"github.com/campusit/mfpusage/internal/export"
)

func sampleCounts() []export.UserCountRow {
	return []export.UserCountRow{
		{Name: "王小明", Usage: map[string]int{
			"印表機:黑白": 100, "印表機:全彩": 20, "影印:黑白": 5, "掃描": 8,
		}, Total: 133},
		{Name: "陳大文", Usage: map[string]int{"印表機:黑白": 40}, Total: 40},
		{Name: "idle", Usage: map[string]int{}, Total: 0},
	}
}

func TestInsertUserCountsBucketsAndOther(t *testing.T) {
	st := openTestStore(t)
	snap := at(5, 14)

	n, err := st.InsertUserCounts("http://10.0.1.20", sampleCounts(), snap, false)
	if err != nil {
		t.Fatalf("InsertUserCounts() = %v", err)
	}
	if n != 2 {
		t.Errorf("inserted %d rows, want 2 (zero-total user skipped)", n)
	}

	records, total, err := st.LatestUserCounts("http://10.0.1.20", "", false, 0, 0)
	if err != nil {
		t.Fatalf("LatestUserCounts() = %v", err)
	}
	if total != 2 || len(records) != 2 {
		t.Fatalf("records = %d (total %d), want 2", len(records), total)
	}

	r := records[0] // ranked by total pages
	if r.User != "王小明" || r.Total != 133 {
		t.Fatalf("top record = %+v", r)
	}
	if r.PrintBW != 100 || r.PrintColor != 20 || r.CopyBW != 5 || r.CopyColor != 0 {
		t.Errorf("buckets = %d/%d/%d/%d", r.PrintBW, r.PrintColor, r.CopyBW, r.CopyColor)
	}
	// The unrecognized 掃描 category lands in the computed other bucket.
	if r.Other != 8 {
		t.Errorf("Other = %d, want 8", r.Other)
	}
	if !r.SnapshotAt.Equal(snap) {
		t.Errorf("SnapshotAt = %v, want %v", r.SnapshotAt, snap)
	}
	if got := r.Usage()["其他"]; got != 8 {
		t.Errorf("Usage()[其他] = %d, want 8", got)
	}
}

func TestInsertUserCountsIncludeZero(t *testing.T) {
	st := openTestStore(t)

	n, err := st.InsertUserCounts("http://10.0.1.20", sampleCounts(), at(5, 14), true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("inserted %d rows, want 3 with includeZero", n)
	}

	// Zero-total users stay hidden by default and appear with showZero.
	_, total, err := st.LatestUserCounts("http://10.0.1.20", "", false, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Errorf("visible users = %d, want 2", total)
	}
	_, total, err = st.LatestUserCounts("http://10.0.1.20", "", true, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("users with showZero = %d, want 3", total)
	}
}

func TestLatestUserCountsPicksNewestSnapshot(t *testing.T) {
	st := openTestStore(t)
	addr := "http://10.0.1.20"

	old := []export.UserCountRow{{Name: "王小明", Usage: map[string]int{"印表機:黑白": 50}, Total: 50}}
	if _, err := st.InsertUserCounts(addr, old, at(4, 14), false); err != nil {
		t.Fatal(err)
	}
	if _, err := st.InsertUserCounts(addr, sampleCounts(), at(5, 14), false); err != nil {
		t.Fatal(err)
	}

	records, _, err := st.LatestUserCounts(addr, "王", false, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	// Counters are lifetime totals; only the newest snapshot is reported.
	if records[0].Total != 133 {
		t.Errorf("Total = %d, want 133 from the newer snapshot", records[0].Total)
	}
}

func TestLatestUserCountsAcrossFleet(t *testing.T) {
	st := openTestStore(t)

	if _, err := st.InsertUserCounts("http://10.0.1.20", sampleCounts(), at(5, 14), false); err != nil {
		t.Fatal(err)
	}
	// The second printer has an older, then a newer snapshot; only the
	// newer one should surface.
	old := []export.UserCountRow{{Name: "lib-user", Usage: map[string]int{"印表機:黑白": 1}, Total: 1}}
	if _, err := st.InsertUserCounts("http://10.0.1.21", old, at(4, 14), false); err != nil {
		t.Fatal(err)
	}
	newer := []export.UserCountRow{{Name: "lib-user", Usage: map[string]int{"印表機:黑白": 9}, Total: 9}}
	if _, err := st.InsertUserCounts("http://10.0.1.21", newer, at(5, 14), false); err != nil {
		t.Fatal(err)
	}

	// "" and "all" cover every printer, each at its own latest snapshot.
	for _, spec := range []string{"", "all"} {
		records, total, err := st.LatestUserCounts(spec, "", false, 0, 0)
		if err != nil {
			t.Fatalf("LatestUserCounts(%q) = %v", spec, err)
		}
		if total != 3 || len(records) != 3 {
			t.Fatalf("LatestUserCounts(%q) = %d rows (total %d), want 3", spec, len(records), total)
		}
		for _, r := range records {
			if r.User == "lib-user" && r.Total != 9 {
				t.Errorf("lib-user total = %d, want 9 from the newer snapshot", r.Total)
			}
		}
	}

	// A concrete printer still narrows to that device only.
	records, total, err := st.LatestUserCounts("http://10.0.1.21", "", false, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || records[0].User != "lib-user" {
		t.Errorf("per-printer query = %+v (total %d)", records, total)
	}
}

func TestRunAuditLifecycle(t *testing.T) {
	st := openTestStore(t)

	id, err := st.StartRun("run-abc", "cli", "updating 2 printers")
	if err != nil {
		t.Fatalf("StartRun() = %v", err)
	}

	runs, err := st.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != RunStatusRunning {
		t.Fatalf("runs = %+v, want one running entry", runs)
	}
	if runs[0].Start.IsZero() {
		t.Error("start time not recorded")
	}
	if !runs[0].End.IsZero() {
		t.Error("end time set before FinishRun")
	}

	if err := st.FinishRun(id, RunStatusSuccess, "12 job rows"); err != nil {
		t.Fatalf("FinishRun() = %v", err)
	}
	runs, err = st.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	r := runs[0]
	if r.Status != RunStatusSuccess || r.Message != "12 job rows" || r.RunID != "run-abc" {
		t.Errorf("finished run = %+v", r)
	}
	if r.End.IsZero() {
		t.Error("end time not recorded")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	st := openTestStore(t)
	for i := 0; i < 3; i++ {
		if _, err := st.StartRun("run", "cli", ""); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	runs, err := st.ListRuns(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want limit 2", len(runs))
	}
	if runs[0].ID < runs[1].ID {
		t.Error("runs not ordered newest first")
	}
}
