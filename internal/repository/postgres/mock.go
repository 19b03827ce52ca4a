package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/globo/viewer/internal/domain"
)

// mockSamples is how many cells the mock reports per query
const mockSamples = 256

// MockRepository implements domain.CountRepository for demo mode. It
// spreads synthetic leaf cells evenly over the requested cell range,
// each counting a few events per day.
type MockRepository struct{}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{}
}

// CellCounts returns deterministic synthetic rows
func (r *MockRepository) CellCounts(ctx context.Context, start, end string, minCell, maxCell uint64) ([]domain.CellCount, error) {
	from, err := time.Parse(domain.DateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("mock: bad start date: %w", err)
	}
	to, err := time.Parse(domain.DateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("mock: bad end date: %w", err)
	}
	if to.Before(from) || maxCell < minCell {
		return nil, nil
	}
	days := uint64(to.Sub(from).Hours()/24) + 1

	step := (maxCell - minCell) / mockSamples
	if step == 0 {
		step = 1
	}
	var results []domain.CellCount
	for id := minCell; id <= maxCell; id += step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// leaf cell ids are odd
		cell := id | 1
		if cell > maxCell {
			break
		}
		results = append(results, domain.CellCount{
			Count:  days * (cell>>32%5 + 1),
			CellID: cell,
		})
		if maxCell-id < step {
			break
		}
	}
	return results, nil
}

// Health always returns nil in mock mode
func (r *MockRepository) Health(ctx context.Context) error {
	return nil
}
