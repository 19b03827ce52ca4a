package counts

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globo/viewer/internal/domain"
)

const squares = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{"name":"a"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
	{"type":"Feature","properties":{"name":"b"},"geometry":{"type":"MultiPolygon","coordinates":[
		[[[2,2],[3,2],[3,3],[2,3],[2,2]]],
		[[[4,4],[5,4],[5,5],[4,5],[4,4]]]
	]}}
]}`

func leaf(lat, lng float64) uint64 {
	return uint64(s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lng)))
}

type fakeRepo struct {
	mu     sync.Mutex
	rows   []domain.CellCount
	err    error
	ranges [][2]uint64
}

func (r *fakeRepo) CellCounts(_ context.Context, start, end string, minCell, maxCell uint64) ([]domain.CellCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ranges = append(r.ranges, [2]uint64{minCell, maxCell})
	return r.rows, r.err
}

func (r *fakeRepo) Health(context.Context) error { return r.err }

func parse(t *testing.T, s string) *domain.Document {
	t.Helper()
	doc, err := domain.ParseDocument([]byte(s))
	require.NoError(t, err)
	return doc
}

func TestParsePrecision(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 30, false},
		{"1", 1, false},
		{" 12 ", 12, false},
		{"30", 30, false},
		{"0", 0, true},
		{"31", 0, true},
		{"five", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePrecision(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrBadPrecision, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseDates(t *testing.T) {
	assert.NoError(t, ParseDates("2015-01-01", "2015-01-01"))
	assert.Equal(t, ErrMissingStart, ParseDates("", "2015-01-01"))
	assert.Equal(t, "Missing end date", ParseDates("2015-01-01", "").Error())
	assert.ErrorIs(t, ParseDates("2015-13-01", "2015-01-01"), ErrBadDate)
	assert.ErrorIs(t, ParseDates("2015-01-02", "2015-01-01"), ErrBadDate)
}

func TestCover(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	cov, err := Cover(square, 10, 64)
	require.NoError(t, err)
	require.NotEmpty(t, cov.Cells)
	assert.LessOrEqual(t, len(cov.Cells), 64)
	for _, c := range cov.Cells {
		assert.LessOrEqual(t, c.Level(), 10)
	}
	assert.Less(t, cov.MinCell(), cov.MaxCell())

	inside := leaf(0.5, 0.5)
	assert.True(t, cov.Contains(inside))
	assert.GreaterOrEqual(t, inside, cov.MinCell())
	assert.LessOrEqual(t, inside, cov.MaxCell())
	assert.False(t, cov.Contains(leaf(10, 10)))
	assert.False(t, cov.Contains(0))

	clockwise := orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}}
	cw, err := Cover(clockwise, 10, 64)
	require.NoError(t, err)
	assert.True(t, cw.Contains(inside), "orientation does not flip the covered side")

	_, err = Cover(orb.Polygon{{{0, 0}, {1, 1}, {0, 0}}}, 10, 64)
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
	_, err = Cover(orb.Polygon{}, 10, 64)
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
}

func TestSimplify(t *testing.T) {
	svc := NewService(&fakeRepo{}, 32, nil)
	out, err := svc.Simplify(parse(t, squares), 6)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())

	for i, f := range out.Features() {
		mp, ok := f.Geometry.(orb.MultiPolygon)
		require.True(t, ok)
		require.NotEmpty(t, mp)
		assert.Equal(t, len(mp), f.Properties[CellsProperty])
		for _, p := range mp {
			require.Len(t, p, 1)
			assert.Len(t, p[0], 5)
			assert.Equal(t, p[0][0], p[0][4])
		}
		assert.Equal(t, []string{"a", "b"}[i], f.Properties["name"])
	}

	points := `{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,1]}}`
	_, err = svc.Simplify(parse(t, points), 6)
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
}

func TestCount(t *testing.T) {
	repo := &fakeRepo{rows: []domain.CellCount{
		{Count: 10, CellID: leaf(0.5, 0.5)},
		{Count: 5, CellID: leaf(0.25, 0.75)},
		{Count: 7, CellID: leaf(2.5, 2.5)},
		{Count: 3, CellID: leaf(4.5, 4.5)},
		{Count: 1000, CellID: leaf(-20, -20)},
	}}
	svc := NewService(repo, 0, nil)

	out, err := svc.Count(context.Background(), parse(t, squares), 12, "2015-01-01", "2015-01-02")
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())

	a, ok := domain.CountOf(out.Features()[0])
	require.True(t, ok)
	assert.Equal(t, 15.0, a)

	b, ok := domain.CountOf(out.Features()[1])
	require.True(t, ok)
	assert.Equal(t, 10.0, b, "multipolygon counts sum over parts")
	assert.Equal(t, "b", out.Features()[1].Properties["name"])

	assert.Len(t, repo.ranges, 3, "one query per polygon")
	for _, r := range repo.ranges {
		assert.Less(t, r[0], r[1])
	}
}

func TestCountErrors(t *testing.T) {
	ctx := context.Background()

	svc := NewService(&fakeRepo{}, 0, nil)
	_, err := svc.Count(ctx, parse(t, squares), 12, "", "2015-01-02")
	assert.ErrorIs(t, err, ErrMissingStart)

	boom := errors.New("connection reset")
	svc = NewService(&fakeRepo{err: boom}, 0, nil)
	_, err = svc.Count(ctx, parse(t, squares), 12, "2015-01-01", "2015-01-02")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, svc.Health(ctx), boom)
}
