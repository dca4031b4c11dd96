package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/proofscout/amazon-proof-scraper/internal/runner"
)

var ErrRunNotFound = errors.New("run not found")

// Run is the record of one triggered scraping run.
type Run struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Summary     *runner.Summary `json:"summary,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// RunManager starts runs on the shared runner and keeps their
// outcomes. Only one run can be active at a time; the sheet has a
// single writer by design.
type RunManager struct {
	runner *runner.Runner
	logger *slog.Logger
	ctx    context.Context

	mu   sync.Mutex
	runs map[string]*Run
}

func NewRunManager(ctx context.Context, r *runner.Runner, logger *slog.Logger) *RunManager {
	return &RunManager{
		runner: r,
		logger: logger.With("component", "run_manager"),
		ctx:    ctx,
		runs:   make(map[string]*Run),
	}
}

// StartRun launches a run in the background and returns its record
// immediately. Returns runner.ErrRunActive when one is in flight.
func (m *RunManager) StartRun() (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.runs {
		if r.Status == "running" {
			return nil, runner.ErrRunActive
		}
	}

	run := &Run{
		ID:        uuid.New().String(),
		Status:    "running",
		StartedAt: time.Now(),
	}
	m.runs[run.ID] = run
	snapshot := *run

	go m.execute(run.ID)

	m.logger.Info("run started", "id", run.ID)
	return &snapshot, nil
}

func (m *RunManager) execute(id string) {
	summary, err := m.runner.Run(m.ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[id]
	if !ok {
		return
	}

	now := time.Now()
	run.CompletedAt = &now
	run.Summary = summary

	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
		m.logger.Error("run failed", "id", id, "error", err)
		return
	}

	run.Status = "completed"
	m.logger.Info("run completed", "id", id,
		"processed", summary.Processed, "with_data", summary.WithData)
}

// GetRun returns the record for a run ID.
func (m *RunManager) GetRun(id string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	snapshot := *run
	return &snapshot, nil
}

// ListRuns returns all run records, newest first.
func (m *RunManager) ListRuns() []*Run {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		snapshot := *r
		out = append(out, &snapshot)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].StartedAt.After(out[i].StartedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// RunnerState exposes the live state of the underlying runner.
func (m *RunManager) RunnerState() runner.State {
	return m.runner.State()
}
