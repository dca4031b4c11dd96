package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/proofscout/amazon-proof-scraper/internal/fetcher"
	"github.com/proofscout/amazon-proof-scraper/internal/models"
	"github.com/proofscout/amazon-proof-scraper/internal/progress"
	"github.com/proofscout/amazon-proof-scraper/internal/ratelimit"
	"github.com/proofscout/amazon-proof-scraper/internal/sheets"
)

var ErrRunActive = errors.New("a run is already in progress")

// NoDataResult is written for listings that have no social-proof
// tagline, so a resumed run can tell "checked, absent" apart from
// "never processed".
const NoDataResult = "no data"

type State int32

const (
	StateIdle State = iota
	StateLoading
	StateProcessing
	StateCheckpointing
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateProcessing:
		return "processing"
	case StateCheckpointing:
		return "checkpointing"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

type Fetcher interface {
	Fetch(ctx context.Context, asin string) (string, error)
}

type Parser interface {
	ExtractSocialProof(html string) (string, error)
	IsBlockedPage(html string) bool
}

// adaptive is implemented by limiters that adjust their delay based on
// fetch outcomes.
type adaptive interface {
	RecordSuccess()
	RecordFailure()
}

// Chunk is a half-open index range [Start, End) over the record list.
type Chunk struct {
	Index int
	Start int
	End   int
}

// Chunks splits n records into fixed-size batches covering every index
// exactly once, in order. The last chunk may be short.
func Chunks(n, size int) []Chunk {
	if n <= 0 {
		return nil
	}
	if size < 1 {
		size = 1
	}

	chunks := make([]Chunk, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Start: start, End: end})
	}
	return chunks
}

type Summary struct {
	Processed   int `json:"processed"`
	WithData    int `json:"with_data"`
	NoData      int `json:"no_data"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	ChunksDone  int `json:"chunks_done"`
	ChunksTotal int `json:"chunks_total"`
}

type Options struct {
	Reader    sheets.Reader
	Writer    sheets.Writer
	Fetcher   Fetcher
	Parser    Parser
	Limiter   ratelimit.Limiter
	Store     *progress.Store
	ChunkSize int
	DryRun    bool
	Logger    *slog.Logger
}

// Runner drives the whole run: read the ASIN column once, then walk it
// chunk by chunk, one fetch at a time, writing each chunk's results
// back and advancing the checkpoint before starting the next.
type Runner struct {
	reader    sheets.Reader
	writer    sheets.Writer
	fetcher   Fetcher
	parser    Parser
	limiter   ratelimit.Limiter
	store     *progress.Store
	chunkSize int
	dryRun    bool
	logger    *slog.Logger

	state   atomic.Int32
	mu      sync.Mutex
	running bool
}

func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		reader:    opts.Reader,
		writer:    opts.Writer,
		fetcher:   opts.Fetcher,
		parser:    opts.Parser,
		limiter:   opts.Limiter,
		store:     opts.Store,
		chunkSize: opts.ChunkSize,
		dryRun:    opts.DryRun,
		logger:    logger.With("component", "runner"),
	}
}

func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
}

// Run processes every unfinished chunk. Fatal conditions (auth or
// write failures, anti-bot blocks, cancellation) halt the run with the
// checkpoint still pointing at the last fully written chunk; per-row
// failures are recorded and skipped over.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return &Summary{}, ErrRunActive
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	summary := &Summary{}

	r.setState(StateLoading)
	records, err := r.reader.ReadASINs(ctx)
	if err != nil {
		r.setState(StateError)
		return summary, fmt.Errorf("failed to load ASIN list: %w", err)
	}
	if len(records) == 0 {
		r.setState(StateDone)
		r.logger.Info("no ASINs to process")
		return summary, nil
	}

	if err := r.store.Begin(len(records)); err != nil {
		r.setState(StateError)
		return summary, fmt.Errorf("failed to initialize progress: %w", err)
	}

	chunks := Chunks(len(records), r.chunkSize)
	summary.ChunksTotal = len(chunks)

	first := r.store.LastChunk() + 1
	if first > 0 {
		r.logger.Info("resuming run", "next_chunk", first, "chunks_total", len(chunks))
	}

	for ci := first; ci < len(chunks); ci++ {
		chunk := chunks[ci]
		r.setState(StateProcessing)
		r.logger.Info("processing chunk", "chunk", chunk.Index, "rows", chunk.End-chunk.Start)

		if err := r.processChunk(ctx, records, chunk, summary); err != nil {
			r.setState(StateError)
			return summary, err
		}

		r.setState(StateCheckpointing)
		if !r.dryRun {
			if err := r.writer.WriteResults(ctx, records[chunk.Start:chunk.End]); err != nil {
				r.setState(StateError)
				return summary, fmt.Errorf("failed to write chunk %d results: %w", chunk.Index, err)
			}
		}

		if err := r.store.CheckpointChunk(chunk.Index); err != nil {
			r.setState(StateError)
			return summary, fmt.Errorf("failed to checkpoint chunk %d: %w", chunk.Index, err)
		}
		summary.ChunksDone++
	}

	r.setState(StateDone)
	r.logger.Info("run complete",
		"processed", summary.Processed,
		"with_data", summary.WithData,
		"no_data", summary.NoData,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (r *Runner) processChunk(ctx context.Context, records []models.Record, chunk Chunk, summary *Summary) error {
	for i := chunk.Start; i < chunk.End; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec := &records[i]

		if rec.Status == models.StatusSkipped {
			summary.Skipped++
			continue
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}

		if err := r.processRecord(ctx, rec, summary); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) processRecord(ctx context.Context, rec *models.Record, summary *Summary) error {
	html, err := r.fetcher.Fetch(ctx, rec.ASIN)
	if err != nil {
		if errors.Is(err, fetcher.ErrBlocked) {
			return fmt.Errorf("halting run at row %d: %w", rec.Row, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.logger.Warn("fetch failed", "asin", rec.ASIN, "row", rec.Row, "error", err)
		rec.Status = models.StatusFailed
		summary.Failed++
		r.recordFailure()
		r.store.RecordResult(*rec)
		return nil
	}

	if r.parser.IsBlockedPage(html) {
		r.recordFailure()
		return fmt.Errorf("halting run at row %d: CAPTCHA page served: %w", rec.Row, fetcher.ErrBlocked)
	}

	text, err := r.parser.ExtractSocialProof(html)
	if err != nil {
		// Most listings simply have no tagline.
		rec.Result = NoDataResult
		rec.Status = models.StatusNoData
		summary.NoData++
	} else {
		rec.Result = text
		rec.Status = models.StatusCompleted
		summary.WithData++
		r.logger.Info("found social proof", "asin", rec.ASIN, "row", rec.Row, "text", text)
	}

	summary.Processed++
	r.recordSuccess()
	r.store.RecordResult(*rec)
	return nil
}

func (r *Runner) recordSuccess() {
	if a, ok := r.limiter.(adaptive); ok {
		a.RecordSuccess()
	}
}

func (r *Runner) recordFailure() {
	if a, ok := r.limiter.(adaptive); ok {
		a.RecordFailure()
	}
}
