package observability

import "testing"

func TestStageWindowSnapshotStats(t *testing.T) {
	w := newStageWindow(8)
	for _, ms := range []float64{1, 2, 3, 4, 5} {
		w.Observe("persist", ms)
	}

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("stages = %d, want 1", len(snap.Stages))
	}

	st := snap.Stages[0]
	if st.Stage != "persist" || st.Samples != 5 {
		t.Fatalf("stats = %+v, want persist with 5 samples", st)
	}
	if st.LastMS != 5 {
		t.Fatalf("LastMS = %v, want 5", st.LastMS)
	}
	if st.AvgMS != 3 {
		t.Fatalf("AvgMS = %v, want 3", st.AvgMS)
	}
	if st.P50MS != 3 {
		t.Fatalf("P50MS = %v, want 3", st.P50MS)
	}
	if st.TargetP95MS != 60 {
		t.Fatalf("TargetP95MS = %v, want 60", st.TargetP95MS)
	}
}

func TestStageWindowRingOverwrite(t *testing.T) {
	w := newStageWindow(4)
	for i := 1; i <= 6; i++ {
		w.Observe("hydrate", float64(i))
	}

	snap := w.Snapshot()
	st := snap.Stages[0]
	if st.Samples != 4 {
		t.Fatalf("Samples = %d, want window size 4", st.Samples)
	}
	// Window holds 3,4,5,6 after overwrite.
	if st.AvgMS != 4.5 {
		t.Fatalf("AvgMS = %v, want 4.5", st.AvgMS)
	}
	if st.LastMS != 6 {
		t.Fatalf("LastMS = %v, want 6", st.LastMS)
	}
}

func TestStageWindowIgnoresInvalidObservations(t *testing.T) {
	w := newStageWindow(4)
	w.Observe("", 10)
	w.Observe("prompt", -1)

	if snap := w.Snapshot(); len(snap.Stages) != 0 {
		t.Fatalf("stages = %+v, want none for invalid observations", snap.Stages)
	}
}

func TestStageWindowSortsStagesAndResets(t *testing.T) {
	w := newStageWindow(4)
	w.Observe("prompt", 1)
	w.Observe("hydrate", 2)
	w.Observe("ingest_total", 3)

	snap := w.Snapshot()
	got := make([]string, 0, len(snap.Stages))
	for _, st := range snap.Stages {
		got = append(got, st.Stage)
	}
	want := []string{"hydrate", "ingest_total", "prompt"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stage order = %v, want %v", got, want)
		}
	}

	w.Reset()
	if snap := w.Snapshot(); len(snap.Stages) != 0 {
		t.Fatalf("stages after reset = %+v, want none", snap.Stages)
	}
}

func TestQuantileInterpolates(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}
	if got := quantile(sorted, 0); got != 10 {
		t.Fatalf("quantile(0) = %v, want 10", got)
	}
	if got := quantile(sorted, 1); got != 40 {
		t.Fatalf("quantile(1) = %v, want 40", got)
	}
	if got := quantile(sorted, 0.5); got != 25 {
		t.Fatalf("quantile(0.5) = %v, want 25", got)
	}
	if got := quantile(nil, 0.5); got != 0 {
		t.Fatalf("quantile(nil) = %v, want 0", got)
	}
}
