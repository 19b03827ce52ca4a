package counts

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/globo/viewer/internal/domain"
	"github.com/globo/viewer/internal/metrics"
)

// Property names written on response features
const (
	CellsProperty = "cells"
	CountProperty = domain.CountProperty
)

// Service answers simplify and count requests
type Service struct {
	repo     domain.CountRepository
	maxCells int
	workers  int
	logger   *zap.Logger
}

// NewService creates a counting service over repo
func NewService(repo domain.CountRepository, maxCells int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}
	return &Service{
		repo:     repo,
		maxCells: maxCells,
		workers:  runtime.NumCPU(),
		logger:   logger,
	}
}

// Simplify replaces each feature's geometry with the cells covering it
func (s *Service) Simplify(doc *domain.Document, precision int) (*domain.Document, error) {
	out := geojson.NewFeatureCollection()
	for i, f := range doc.Features() {
		polys, err := domain.Polygons(f)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		var mp orb.MultiPolygon
		for _, p := range polys {
			cov, err := Cover(p, precision, s.maxCells)
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			for _, id := range cov.Cells {
				mp = append(mp, cellPolygon(id))
			}
		}
		nf := geojson.NewFeature(mp)
		copyProperties(nf, f)
		nf.Properties[CellsProperty] = len(mp)
		out.Append(nf)
	}
	s.logger.Debug("Simplified",
		zap.Int("features", doc.Len()), zap.Int("precision", precision))
	return domain.NewDocument(out), nil
}

// Count sums the events recorded between start and end inside every
// feature. Polygons are counted concurrently; a feature's count is the
// sum over its polygons.
func (s *Service) Count(ctx context.Context, doc *domain.Document, precision int, start, end string) (*domain.Document, error) {
	if err := ParseDates(start, end); err != nil {
		return nil, err
	}
	features := doc.Features()

	type job struct {
		feature int
		cov     Covering
	}
	var jobs []job
	for i, f := range features {
		polys, err := domain.Polygons(f)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		for _, p := range polys {
			cov, err := Cover(p, precision, s.maxCells)
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			jobs = append(jobs, job{feature: i, cov: cov})
		}
	}

	t := time.Now()
	sums := make([]uint64, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for j := range jobs {
		g.Go(func() error {
			n, err := s.countCovering(gctx, jobs[j].cov, start, end)
			if err != nil {
				return err
			}
			sums[j] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	totals := make([]uint64, len(features))
	for j, jb := range jobs {
		totals[jb.feature] += sums[j]
	}

	out := geojson.NewFeatureCollection()
	for i, f := range features {
		nf := geojson.NewFeature(f.Geometry)
		nf.ID = f.ID
		copyProperties(nf, f)
		nf.Properties[CountProperty] = totals[i]
		out.Append(nf)
	}
	s.logger.Debug("Counted",
		zap.Int("features", len(features)),
		zap.Int("polygons", len(jobs)),
		zap.Duration("took", time.Since(t)))
	return domain.NewDocument(out), nil
}

func (s *Service) countCovering(ctx context.Context, cov Covering, start, end string) (uint64, error) {
	if len(cov.Cells) == 0 {
		return 0, nil
	}
	rows, err := s.repo.CellCounts(ctx, start, end, cov.MinCell(), cov.MaxCell())
	if err != nil {
		return 0, err
	}
	metrics.CellsScannedTotal.Add(float64(len(rows)))

	var total uint64
	for _, r := range rows {
		if cov.Contains(r.CellID) {
			total += r.Count
		}
	}
	return total, nil
}

// Health reports repository connectivity
func (s *Service) Health(ctx context.Context) error {
	return s.repo.Health(ctx)
}

func copyProperties(dst, src *geojson.Feature) {
	for k, v := range src.Properties {
		dst.Properties[k] = v
	}
}
