package build

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/majorcontext/autobuild/internal/history"
	"github.com/majorcontext/autobuild/internal/log"
)

// StatusSink receives pipeline state transitions. Sinks are
// best-effort: a failing sink never aborts the pipeline.
type StatusSink interface {
	SetActive(specName string, s State)
	Update(s State)
}

// PhaseSink is an optional extension for sinks that record phase
// boundaries. MultiSink forwards to members that implement it.
type PhaseSink interface {
	PhaseStarted(phase, model string)
	PhaseFinished(phase, outcome string)
}

// Phase outcomes recorded through PhaseSink. An interrupted phase is
// never finished; its record stays open.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

// NopSink discards all updates.
type NopSink struct{}

func (NopSink) SetActive(string, State) {}
func (NopSink) Update(State)            {}

// MultiSink fans updates out to several sinks.
type MultiSink []StatusSink

func (m MultiSink) SetActive(specName string, s State) {
	for _, sink := range m {
		sink.SetActive(specName, s)
	}
}

func (m MultiSink) Update(s State) {
	for _, sink := range m {
		sink.Update(s)
	}
}

func (m MultiSink) PhaseStarted(phase, model string) {
	for _, sink := range m {
		if ps, ok := sink.(PhaseSink); ok {
			ps.PhaseStarted(phase, model)
		}
	}
}

func (m MultiSink) PhaseFinished(phase, outcome string) {
	for _, sink := range m {
		if ps, ok := sink.(PhaseSink); ok {
			ps.PhaseFinished(phase, outcome)
		}
	}
}

// FileSink persists the latest state to <project>/.autobuild/status.json
// so external tooling can watch a run. Writes are atomic
// (write-then-rename); failures are logged and dropped.
type FileSink struct {
	path string

	mu   sync.Mutex
	spec string
}

type statusFile struct {
	Spec      string    `json:"spec"`
	State     State     `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewFileSink returns a sink writing under the given project directory.
func NewFileSink(projectDir string) *FileSink {
	return &FileSink{path: filepath.Join(projectDir, ".autobuild", "status.json")}
}

func (f *FileSink) SetActive(specName string, s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spec = specName
	f.write(s)
}

func (f *FileSink) Update(s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.write(s)
}

func (f *FileSink) write(s State) {
	data, err := json.MarshalIndent(statusFile{
		Spec:      f.spec,
		State:     s,
		UpdatedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		log.Debug("marshaling status", "error", err)
		return
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		log.Debug("creating status directory", "error", err)
		return
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Debug("writing status", "error", err)
		return
	}
	if err := os.Rename(tmp, f.path); err != nil {
		log.Debug("replacing status file", "error", err)
	}
}

// historySink records state transitions into the run history store.
type historySink struct {
	store *history.Store
	runID string
}

// NewHistorySink returns a sink recording transitions for the given run.
func NewHistorySink(store *history.Store, runID string) StatusSink {
	return &historySink{store: store, runID: runID}
}

func (h *historySink) SetActive(_ string, s State) {
	h.record(s)
}

func (h *historySink) Update(s State) {
	h.record(s)
}

func (h *historySink) record(s State) {
	if err := h.store.UpdateState(h.runID, string(s)); err != nil {
		log.Debug("recording run state", "run", h.runID, "state", s, "error", err)
	}
}

func (h *historySink) PhaseStarted(phase, model string) {
	if err := h.store.StartPhase(h.runID, phase, model); err != nil {
		log.Debug("recording phase start", "run", h.runID, "phase", phase, "error", err)
	}
}

func (h *historySink) PhaseFinished(phase, outcome string) {
	if err := h.store.FinishPhase(h.runID, phase, outcome); err != nil {
		log.Debug("recording phase finish", "run", h.runID, "phase", phase, "error", err)
	}
}
