package build

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/majorcontext/autobuild/internal/history"
)

func TestFileSinkWritesStatus(t *testing.T) {
	project := t.TempDir()
	sink := NewFileSink(project)

	sink.SetActive("001-login", StatePlanning)

	data, err := os.ReadFile(filepath.Join(project, ".autobuild", "status.json"))
	if err != nil {
		t.Fatal(err)
	}
	var got statusFile
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Spec != "001-login" {
		t.Errorf("Spec = %q, want 001-login", got.Spec)
	}
	if got.State != StatePlanning {
		t.Errorf("State = %q, want %q", got.State, StatePlanning)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt is zero")
	}
}

func TestFileSinkUpdateKeepsSpec(t *testing.T) {
	project := t.TempDir()
	sink := NewFileSink(project)

	sink.SetActive("001-login", StatePlanning)
	sink.Update(StateBuilding)

	data, err := os.ReadFile(filepath.Join(project, ".autobuild", "status.json"))
	if err != nil {
		t.Fatal(err)
	}
	var got statusFile
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Spec != "001-login" {
		t.Errorf("Spec = %q, want the spec from SetActive", got.Spec)
	}
	if got.State != StateBuilding {
		t.Errorf("State = %q, want %q", got.State, StateBuilding)
	}
}

func TestFileSinkLeavesNoTempFile(t *testing.T) {
	project := t.TempDir()
	sink := NewFileSink(project)
	sink.SetActive("001-login", StateComplete)

	if _, err := os.Stat(filepath.Join(project, ".autobuild", "status.json.tmp")); !os.IsNotExist(err) {
		t.Errorf("temp file left behind, stat err = %v", err)
	}
}

func TestFileSinkUnwritableDirectory(t *testing.T) {
	// Pointing the sink at a path whose parent is a regular file makes
	// every write fail. The sink must swallow that.
	project := t.TempDir()
	if err := os.WriteFile(filepath.Join(project, ".autobuild"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	sink := NewFileSink(project)
	sink.SetActive("001-login", StatePlanning)
	sink.Update(StateError)
}

func TestMultiSinkFansOut(t *testing.T) {
	a := &recordSink{}
	b := &recordSink{}
	m := MultiSink{a, b}

	m.SetActive("001-login", StatePlanning)
	m.Update(StateComplete)

	for _, sink := range []*recordSink{a, b} {
		if sink.spec != "001-login" {
			t.Errorf("spec = %q, want 001-login", sink.spec)
		}
		if len(sink.states) != 2 || sink.states[1] != StateComplete {
			t.Errorf("states = %v, want [planning complete]", sink.states)
		}
	}
}

func TestNopSink(t *testing.T) {
	var sink NopSink
	sink.SetActive("001-login", StatePlanning)
	sink.Update(StateComplete)
}

func TestHistorySinkRecordsState(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	run := history.Run{ID: "quick-1700000000", Project: "/tmp/p", Spec: "001-login", Model: "claude-sonnet-4-20250514"}
	if err := store.StartRun(run); err != nil {
		t.Fatal(err)
	}

	sink := NewHistorySink(store, run.ID)
	sink.Update(StateBuilding)

	got, err := store.Get(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != string(StateBuilding) {
		t.Errorf("State = %q, want %q", got.State, StateBuilding)
	}
}

func TestHistorySinkRecordsPhases(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	run := history.Run{ID: "quick-1700000001", Project: "/tmp/p", Spec: "001-login", Model: "claude-sonnet-4-20250514"}
	if err := store.StartRun(run); err != nil {
		t.Fatal(err)
	}

	sink := NewHistorySink(store, run.ID)
	ps, ok := sink.(PhaseSink)
	if !ok {
		t.Fatal("history sink does not implement PhaseSink")
	}
	ps.PhaseStarted("planning", "glm-4.7")
	ps.PhaseFinished("planning", "success")

	phases, err := store.Phases(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(phases) != 1 {
		t.Fatalf("len(phases) = %d, want 1", len(phases))
	}
	if phases[0].Name != "planning" || phases[0].Model != "glm-4.7" || phases[0].Outcome != "success" {
		t.Errorf("phase = %+v", phases[0])
	}
}

func TestMultiSinkForwardsPhases(t *testing.T) {
	plain := &recordSink{}
	phased := &phaseRecordSink{}
	m := MultiSink{plain, phased}

	m.PhaseStarted("planning", "m")
	m.PhaseFinished("planning", "success")

	if len(phased.phases) != 2 {
		t.Fatalf("phases = %v, want start and finish", phased.phases)
	}
}

func TestHistorySinkUnknownRun(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	// UpdateState on a missing row is a no-op; the sink must not panic.
	sink := NewHistorySink(store, "quick-0")
	sink.Update(StateComplete)
}
