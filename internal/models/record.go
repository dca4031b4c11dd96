package models

import (
	"strings"
	"unicode"
)

const productURLBase = "https://www.amazon.com/dp/"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusNoData    Status = "no_data"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Record is one ASIN row read from the sheet. Row is the 1-based
// spreadsheet row the raw value came from and never changes, so the
// result can be written back next to its source cell.
type Record struct {
	Row    int    `json:"row"`
	Raw    string `json:"raw"`
	ASIN   string `json:"asin"`
	Result string `json:"result,omitempty"`
	Status Status `json:"status"`
}

// NewRecord normalizes the raw cell value. Rows that normalize to an
// empty ASIN are marked skipped and never fetched.
func NewRecord(row int, raw string) Record {
	asin := NormalizeASIN(raw)
	status := StatusPending
	if asin == "" {
		status = StatusSkipped
	}
	return Record{
		Row:    row,
		Raw:    raw,
		ASIN:   asin,
		Status: status,
	}
}

// NormalizeASIN strips every non-alphanumeric rune from a raw cell
// value. Sheets tend to accumulate stray spaces, dashes and pasted
// punctuation around ASINs.
func NormalizeASIN(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ProductURL builds the product page URL for a normalized ASIN.
func ProductURL(asin string) string {
	return productURLBase + asin
}
