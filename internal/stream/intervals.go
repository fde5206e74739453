// Package stream holds the Stream entity: the per-broadcast state that ties
// live captures, past-range downloads, and the cutter together, plus the
// registry that keeps one instance alive per broadcast.
package stream

import "sort"

// Interval is a half-open-ish [Lo, Hi] range in whole seconds relative to
// the broadcast start.
type Interval struct {
	Lo, Hi int64
}

// Width is the interval's length in seconds.
func (iv Interval) Width() int64 { return iv.Hi - iv.Lo }

// Segment is a downloaded file covering an interval of the broadcast.
type Segment struct {
	Path string
	Interval
}

// Piece is a covered slice of a clip target: the file serving it, the
// absolute range it serves, and the in/out offsets into the file.
type Piece struct {
	Path    string
	Abs     Interval
	In, Out int64
}

func intersect(a, b Interval) (Interval, bool) {
	iv := Interval{Lo: max(a.Lo, b.Lo), Hi: min(a.Hi, b.Hi)}
	if iv.Hi < iv.Lo {
		return Interval{}, false
	}
	return iv, true
}

// subtract returns a minus b, which is zero, one, or two intervals.
func subtract(a, b Interval) []Interval {
	iv, ok := intersect(a, b)
	if !ok {
		return []Interval{a}
	}
	switch {
	case a.Lo < iv.Lo && iv.Hi < a.Hi:
		return []Interval{{a.Lo, iv.Lo}, {iv.Hi, a.Hi}}
	case iv.Lo == a.Lo && iv.Hi == a.Hi:
		return nil
	case iv.Lo == a.Lo:
		return []Interval{{iv.Hi, a.Hi}}
	default:
		return []Interval{{a.Lo, iv.Lo}}
	}
}

// FindIntersections splits target into the pieces the segments can serve,
// ordered by position, and the gaps nothing covers. Later segments only
// serve what earlier ones left uncovered.
func FindIntersections(target Interval, segs []Segment) (pieces []Piece, uncovered []Interval) {
	remaining := []Interval{target}
	for _, seg := range segs {
		var rest []Interval
		for _, r := range remaining {
			iv, ok := intersect(r, seg.Interval)
			if !ok {
				rest = append(rest, r)
				continue
			}
			rest = append(rest, subtract(r, iv)...)
			if iv.Width() > 0 {
				pieces = append(pieces, Piece{
					Path: seg.Path,
					Abs:  iv,
					In:   iv.Lo - seg.Lo,
					Out:  iv.Hi - seg.Lo,
				})
			}
		}
		remaining = rest
	}
	sort.Slice(pieces, func(i, j int) bool { return pieces[i].Abs.Lo < pieces[j].Abs.Lo })
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].Lo < remaining[j].Lo })
	return pieces, remaining
}
