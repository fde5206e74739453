package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubtract(t *testing.T) {
	a := Interval{10, 20}
	tests := []struct {
		name string
		b    Interval
		want []Interval
	}{
		{"disjoint", Interval{30, 40}, []Interval{{10, 20}}},
		{"covers all", Interval{0, 30}, nil},
		{"middle", Interval{12, 18}, []Interval{{10, 12}, {18, 20}}},
		{"prefix", Interval{5, 15}, []Interval{{15, 20}}},
		{"suffix", Interval{15, 25}, []Interval{{10, 15}}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, subtract(a, tt.b), tt.name)
	}
}

func TestFindIntersections_FullCover(t *testing.T) {
	pieces, uncovered := FindIntersections(Interval{10, 20}, []Segment{
		{Path: "a", Interval: Interval{0, 30}},
	})
	require.Len(t, pieces, 1)
	assert.Empty(t, uncovered)
	assert.Equal(t, Piece{Path: "a", Abs: Interval{10, 20}, In: 10, Out: 20}, pieces[0])
}

func TestFindIntersections_GapsAndOrder(t *testing.T) {
	// Segments cover [0,12] and [18,40]; the gap [12,18] stays uncovered.
	pieces, uncovered := FindIntersections(Interval{10, 25}, []Segment{
		{Path: "tail", Interval: Interval{18, 40}},
		{Path: "head", Interval: Interval{0, 12}},
	})
	require.Len(t, pieces, 2)
	assert.Equal(t, "head", pieces[0].Path)
	assert.Equal(t, Interval{10, 12}, pieces[0].Abs)
	assert.Equal(t, int64(10), pieces[0].In)
	assert.Equal(t, "tail", pieces[1].Path)
	assert.Equal(t, Interval{18, 25}, pieces[1].Abs)
	assert.Equal(t, int64(0), pieces[1].In)
	assert.Equal(t, int64(7), pieces[1].Out)

	assert.Equal(t, []Interval{{12, 18}}, uncovered)
}

func TestFindIntersections_OverlappingSegmentsFirstWins(t *testing.T) {
	// The second segment only serves what the first left over.
	pieces, uncovered := FindIntersections(Interval{0, 20}, []Segment{
		{Path: "a", Interval: Interval{0, 15}},
		{Path: "b", Interval: Interval{10, 20}},
	})
	require.Len(t, pieces, 2)
	assert.Empty(t, uncovered)
	assert.Equal(t, Interval{0, 15}, pieces[0].Abs)
	assert.Equal(t, "b", pieces[1].Path)
	assert.Equal(t, Interval{15, 20}, pieces[1].Abs)
	assert.Equal(t, int64(5), pieces[1].In)
}

func TestFindIntersections_NoSegments(t *testing.T) {
	pieces, uncovered := FindIntersections(Interval{5, 10}, nil)
	assert.Empty(t, pieces)
	assert.Equal(t, []Interval{{5, 10}}, uncovered)
}

func TestFindIntersections_CoverageInvariant(t *testing.T) {
	// Pieces plus gaps always tile the target exactly.
	target := Interval{7, 64}
	segs := []Segment{
		{Path: "a", Interval: Interval{0, 20}},
		{Path: "b", Interval: Interval{15, 30}},
		{Path: "c", Interval: Interval{42, 55}},
		{Path: "d", Interval: Interval{50, 90}},
	}
	pieces, uncovered := FindIntersections(target, segs)

	type span struct{ iv Interval }
	var spans []span
	for _, p := range pieces {
		spans = append(spans, span{p.Abs})
	}
	for _, g := range uncovered {
		spans = append(spans, span{g})
	}
	var total int64
	for _, s := range spans {
		assert.GreaterOrEqual(t, s.iv.Lo, target.Lo)
		assert.LessOrEqual(t, s.iv.Hi, target.Hi)
		total += s.iv.Width()
	}
	assert.Equal(t, target.Width(), total)
}
