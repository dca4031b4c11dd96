package sheets

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/proofscout/amazon-proof-scraper/internal/models"
)

func TestA1Range(t *testing.T) {
	tests := []struct {
		name      string
		worksheet string
		column    string
		startRow  int
		endRow    int
		expected  string
	}{
		{
			name:      "open ended column read",
			worksheet: "Sheet1",
			column:    "C",
			startRow:  3,
			endRow:    0,
			expected:  "Sheet1!C3:C",
		},
		{
			name:      "bounded write range",
			worksheet: "Sheet1",
			column:    "I",
			startRow:  5,
			endRow:    9,
			expected:  "Sheet1!I5:I9",
		},
		{
			name:      "worksheet name with spaces is quoted",
			worksheet: "Artex Wholesale",
			column:    "C",
			startRow:  3,
			endRow:    0,
			expected:  "'Artex Wholesale'!C3:C",
		},
		{
			name:      "single row",
			worksheet: "Data",
			column:    "I",
			startRow:  12,
			endRow:    12,
			expected:  "Data!I12:I12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, A1Range(tt.worksheet, tt.column, tt.startRow, tt.endRow))
		})
	}
}

func TestColumnIndex(t *testing.T) {
	tests := []struct {
		letter   string
		expected int
		hasError bool
	}{
		{letter: "A", expected: 1},
		{letter: "C", expected: 3},
		{letter: "Z", expected: 26},
		{letter: "AA", expected: 27},
		{letter: "AZ", expected: 52},
		{letter: "", hasError: true},
		{letter: "c", hasError: true},
		{letter: "A1", hasError: true},
	}

	for _, tt := range tests {
		t.Run(tt.letter, func(t *testing.T) {
			idx, err := ColumnIndex(tt.letter)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, idx)
			}
		})
	}
}

func TestContiguousBlocks(t *testing.T) {
	rec := func(row int, result string, status models.Status) models.Record {
		return models.Record{Row: row, ASIN: "B000000000", Result: result, Status: status}
	}

	t.Run("splits on row gaps", func(t *testing.T) {
		records := []models.Record{
			rec(3, "100+ bought in past month", models.StatusCompleted),
			rec(4, "no data", models.StatusNoData),
			rec(6, "2K+ bought in past month", models.StatusCompleted),
		}

		blocks := ContiguousBlocks(records)
		require.Len(t, blocks, 2)
		assert.Equal(t, 3, blocks[0][0].Row)
		assert.Equal(t, 4, blocks[0][1].Row)
		assert.Equal(t, 6, blocks[1][0].Row)
	})

	t.Run("skips rows without results", func(t *testing.T) {
		records := []models.Record{
			rec(3, "100+ bought in past month", models.StatusCompleted),
			rec(4, "", models.StatusFailed),
			rec(5, "", models.StatusSkipped),
			rec(6, "no data", models.StatusNoData),
		}

		blocks := ContiguousBlocks(records)
		require.Len(t, blocks, 2)
		assert.Len(t, blocks[0], 1)
		assert.Len(t, blocks[1], 1)
	})

	t.Run("orders by row regardless of input order", func(t *testing.T) {
		records := []models.Record{
			rec(7, "no data", models.StatusNoData),
			rec(5, "no data", models.StatusNoData),
			rec(6, "no data", models.StatusNoData),
		}

		blocks := ContiguousBlocks(records)
		require.Len(t, blocks, 1)
		assert.Equal(t, []int{5, 6, 7}, []int{blocks[0][0].Row, blocks[0][1].Row, blocks[0][2].Row})
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, ContiguousBlocks(nil))
	})
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&googleapi.Error{Code: http.StatusTooManyRequests}))
	assert.True(t, isTransient(&googleapi.Error{Code: http.StatusServiceUnavailable}))
	assert.False(t, isTransient(&googleapi.Error{Code: http.StatusUnauthorized}))
	assert.False(t, isTransient(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isTransient(&googleapi.Error{Code: http.StatusBadRequest}))
	assert.True(t, isTransient(errors.New("connection reset by peer")))
	assert.False(t, isTransient(context.Canceled))
}
