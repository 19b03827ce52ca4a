package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/globo/viewer/internal/domain"
)

// PostgresRepository implements domain.CountRepository over the
// data(day date, s2cellid numeric, count bigint) table
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// cell ids exceed int64, so they travel as numeric text both ways
const cellCountsQuery = `
	SELECT sum(count)::bigint, s2cellid::text
	FROM data
	WHERE
		daterange($1::date, $2::date, '[]') @> day
	AND
		numrange($3::numeric, $4::numeric, '[]') @> s2cellid
	GROUP BY
		s2cellid
`

// CellCounts sums event counts per cell for the date and cell ranges
func (r *PostgresRepository) CellCounts(ctx context.Context, start, end string, minCell, maxCell uint64) ([]domain.CellCount, error) {
	rows, err := r.pool.Query(ctx, cellCountsQuery,
		start, end,
		strconv.FormatUint(minCell, 10), strconv.FormatUint(maxCell, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query cell counts: %w", err)
	}
	defer rows.Close()

	var results []domain.CellCount
	for rows.Next() {
		var (
			sum  int64
			cell string
		)
		if err := rows.Scan(&sum, &cell); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan cell count row: %w", err)
		}
		id, err := strconv.ParseUint(cell, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("postgres: bad s2cellid %q: %w", cell, err)
		}
		if sum < 0 {
			sum = 0
		}
		results = append(results, domain.CellCount{Count: uint64(sum), CellID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read cell counts: %w", err)
	}

	return results, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
