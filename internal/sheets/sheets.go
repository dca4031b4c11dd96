package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/proofscout/amazon-proof-scraper/internal/models"
)

type Reader interface {
	ReadASINs(ctx context.Context) ([]models.Record, error)
}

type Writer interface {
	WriteResults(ctx context.Context, records []models.Record) error
}

type Config struct {
	SpreadsheetID string
	Worksheet     string
	ASINColumn    string
	ResultColumn  string
	StartRow      int
	MaxRetries    int
	RetryDelay    time.Duration
}

// Client reads the ASIN column and writes the result column of one
// worksheet. It never touches any other column.
type Client struct {
	svc    *sheetsapi.Service
	cfg    Config
	logger *slog.Logger
}

func NewClient(ctx context.Context, httpClient *http.Client, cfg Config) (*Client, error) {
	svc, err := sheetsapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	return &Client{
		svc:    svc,
		cfg:    cfg,
		logger: slog.Default().With("component", "sheets"),
	}, nil
}

// ReadASINs fetches the ASIN column from the start row down and returns
// one record per sheet row, in row order. Blank cells become skipped
// records so row arithmetic stays aligned with the sheet.
func (c *Client) ReadASINs(ctx context.Context) ([]models.Record, error) {
	rng := A1Range(c.cfg.Worksheet, c.cfg.ASINColumn, c.cfg.StartRow, 0)

	var resp *sheetsapi.ValueRange
	err := c.withRetry(ctx, "read ASIN column", func() error {
		var err error
		resp, err = c.svc.Spreadsheets.Values.Get(c.cfg.SpreadsheetID, rng).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read range %s: %w", rng, err)
	}

	records := make([]models.Record, 0, len(resp.Values))
	for i, row := range resp.Values {
		raw := ""
		if len(row) > 0 {
			raw = fmt.Sprintf("%v", row[0])
		}
		records = append(records, models.NewRecord(c.cfg.StartRow+i, raw))
	}

	c.logger.Info("read ASIN column", "range", rng, "rows", len(records))
	return records, nil
}

// WriteResults writes the Result of every completed or no-data record
// into the result column, one update per contiguous row block. Rows
// without a result are left untouched.
func (c *Client) WriteResults(ctx context.Context, records []models.Record) error {
	blocks := ContiguousBlocks(records)
	if len(blocks) == 0 {
		return nil
	}

	for _, block := range blocks {
		rng := A1Range(c.cfg.Worksheet, c.cfg.ResultColumn, block[0].Row, block[len(block)-1].Row)

		values := make([][]interface{}, len(block))
		for i, rec := range block {
			values[i] = []interface{}{rec.Result}
		}

		vr := &sheetsapi.ValueRange{Range: rng, Values: values}
		err := c.withRetry(ctx, "write results", func() error {
			_, err := c.svc.Spreadsheets.Values.Update(c.cfg.SpreadsheetID, rng, vr).
				ValueInputOption("RAW").Context(ctx).Do()
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to write range %s: %w", rng, err)
		}

		c.logger.Info("wrote results", "range", rng, "rows", len(block))
	}

	return nil
}

// ContiguousBlocks groups the writable records (those carrying a
// result) into runs of adjacent sheet rows, ordered by row.
func ContiguousBlocks(records []models.Record) [][]models.Record {
	var writable []models.Record
	for _, rec := range records {
		if rec.Result != "" && (rec.Status == models.StatusCompleted || rec.Status == models.StatusNoData) {
			writable = append(writable, rec)
		}
	}
	if len(writable) == 0 {
		return nil
	}

	sort.Slice(writable, func(i, j int) bool { return writable[i].Row < writable[j].Row })

	var blocks [][]models.Record
	current := []models.Record{writable[0]}
	for _, rec := range writable[1:] {
		if rec.Row == current[len(current)-1].Row+1 {
			current = append(current, rec)
			continue
		}
		blocks = append(blocks, current)
		current = []models.Record{rec}
	}
	blocks = append(blocks, current)

	return blocks
}

// A1Range builds a single-column A1 reference. endRow 0 means an
// open-ended range to the bottom of the sheet.
func A1Range(worksheet, column string, startRow, endRow int) string {
	ref := fmt.Sprintf("%s%d:%s", column, startRow, column)
	if endRow > 0 {
		ref = fmt.Sprintf("%s%d", ref, endRow)
	}
	return quoteWorksheet(worksheet) + "!" + ref
}

// quoteWorksheet quotes sheet names the A1 grammar cannot take bare.
func quoteWorksheet(name string) string {
	if strings.ContainsAny(name, " !'") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}

// ColumnIndex converts a column letter such as "C" or "AA" to its
// 1-based index.
func ColumnIndex(letter string) (int, error) {
	if letter == "" {
		return 0, fmt.Errorf("empty column letter")
	}

	idx := 0
	for _, r := range letter {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column letter %q", letter)
		}
		idx = idx*26 + int(r-'A') + 1
	}
	return idx, nil
}

func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying sheets call", "op", op, "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.RetryDelay * time.Duration(attempt)):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, c.cfg.MaxRetries+1, lastErr)
}

// isTransient reports whether a Sheets API error is worth retrying.
// Auth and request errors are not; quota and server errors are.
func isTransient(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	// Non-API errors are transport failures.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
