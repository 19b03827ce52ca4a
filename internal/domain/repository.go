package domain

import (
	"context"
)

// CellCount is the summed event count recorded for one S2 cell
type CellCount struct {
	Count  uint64 `json:"count"`
	CellID uint64 `json:"cellid"`
}

// DateLayout is the calendar date format used for count ranges
const DateLayout = "2006-01-02"

// CountRepository defines the interface for event count storage
// This follows the Dependency Inversion Principle - domain defines the interface
type CountRepository interface {
	// CellCounts returns per-cell sums for days in [start, end] and cell
	// ids in [minCell, maxCell]
	CellCounts(ctx context.Context, start, end string, minCell, maxCell uint64) ([]CellCount, error)

	// Health checks storage connectivity
	Health(ctx context.Context) error
}
