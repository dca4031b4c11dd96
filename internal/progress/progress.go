package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/proofscout/amazon-proof-scraper/internal/models"
)

// Result is the recorded outcome for one ASIN row.
type Result struct {
	ASIN      string        `json:"asin"`
	Row       int           `json:"row"`
	Status    models.Status `json:"status"`
	Text      string        `json:"text,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type state struct {
	LastChunk  int                `json:"last_chunk"`
	TotalASINs int                `json:"total_asins"`
	UpdatedAt  time.Time          `json:"last_updated"`
	Results    map[string]*Result `json:"results"`
}

// Store persists run progress between invocations: the index of the
// last fully processed chunk plus the per-row results collected so
// far. Results accumulate in memory and only hit disk when a chunk is
// checkpointed, so a crash loses at most the in-flight chunk.
type Store struct {
	mu       sync.Mutex
	filename string
	state    state
}

func NewStore(filename string) (*Store, error) {
	s := &Store{
		filename: filename,
		state: state{
			LastChunk: -1,
			Results:   make(map[string]*Result),
		},
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return s, nil
}

// Begin marks the start of a run over total ASINs. If the sheet has
// grown or shrunk since the checkpoint was written, row indices no
// longer line up and resuming would write results into the wrong
// cells, so the checkpoint is discarded.
func (s *Store) Begin(total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.TotalASINs != total {
		s.state.LastChunk = -1
		s.state.Results = make(map[string]*Result)
	}
	s.state.TotalASINs = total

	return s.save()
}

// LastChunk returns the index of the last fully processed chunk, or -1
// for a fresh run.
func (s *Store) LastChunk() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.LastChunk
}

// RecordResult stages one row outcome in memory. It is persisted by
// the next CheckpointChunk call.
func (s *Store) RecordResult(rec models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Results[rec.ASIN] = &Result{
		ASIN:      rec.ASIN,
		Row:       rec.Row,
		Status:    rec.Status,
		Text:      rec.Result,
		UpdatedAt: time.Now(),
	}
}

// CheckpointChunk advances the checkpoint past chunk index and flushes
// staged results to disk.
func (s *Store) CheckpointChunk(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.LastChunk = index
	return s.save()
}

// Reset clears the checkpoint and all recorded results.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state{
		LastChunk: -1,
		Results:   make(map[string]*Result),
	}
	return s.save()
}

// Stats counts recorded results by status.
func (s *Store) Stats() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]int)
	for _, r := range s.state.Results {
		stats[string(r.Status)]++
	}
	stats["total"] = len(s.state.Results)
	return stats
}

// Results returns all recorded results ordered by sheet row.
func (s *Store) Results() []*Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Result, 0, len(s.state.Results))
	for _, r := range s.state.Results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out
}

func (s *Store) save() error {
	s.state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first for atomicity
	tmpFile := s.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write progress file: %w", err)
	}

	return os.Rename(tmpFile, s.filename)
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.filename)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, &s.state); err != nil {
		return fmt.Errorf("failed to parse progress file %s: %w", s.filename, err)
	}
	if s.state.Results == nil {
		s.state.Results = make(map[string]*Result)
	}

	return nil
}
