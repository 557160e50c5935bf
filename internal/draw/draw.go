// Package draw implements weighted random selection: single picks from
// value tables and sampling without replacement from tiered trait pools.
//
// # Determinism
//
// Every function takes its randomness from a Source. Given the same Source
// state and the same inputs (including order), results are identical. A
// math/rand/v2 *rand.Rand satisfies Source.
//
// # Complexity
//
// Sample is O(count × len(items)): each pick is a linear cumulative-weight
// scan followed by removal. Pools hold tens of items. A pool in the
// thousands should move to a Fenwick tree over the weights, which makes both
// the lookup and the removal O(log n).
package draw

import (
	"math"
	"slices"
	"strconv"

	apperrors "github.com/tatianab/life-restart/internal/errors"
)

// Source yields uniform floats in [0, 1).
type Source interface {
	Float64() float64
}

// Weighted pairs an item with its selection weight.
type Weighted[T any] struct {
	Item   T
	Weight float64
}

// Sample draws count distinct items without replacement. Each pick takes a
// uniform value in [0, remaining weight) and walks the cumulative weights to
// the owning item, which is then removed. Once only zero-weight items are
// left they are picked uniformly.
func Sample[T any](src Source, items []Weighted[T], count int) ([]T, error) {
	if count < 0 {
		return nil, apperrors.WithMetadata(apperrors.CodeInsufficientPool, "draw count must be non-negative",
			map[string]string{"requested": strconv.Itoa(count)})
	}
	if count > len(items) {
		return nil, apperrors.WithMetadata(apperrors.CodeInsufficientPool, "draw count exceeds pool size",
			map[string]string{"requested": strconv.Itoa(count), "available": strconv.Itoa(len(items))})
	}
	for i, it := range items {
		if !ValidWeight(it.Weight) {
			return nil, apperrors.WithMetadata(apperrors.CodeConfigInvalid, "weight must be finite and non-negative",
				map[string]string{"index": strconv.Itoa(i), "weight": strconv.FormatFloat(it.Weight, 'g', -1, 64)})
		}
	}

	left := slices.Clone(items)
	picked := make([]T, 0, count)
	for len(picked) < count {
		total := 0.0
		for _, it := range left {
			total += it.Weight
		}

		var idx int
		if total > 0 {
			idx = locate(left, src.Float64()*total)
		} else {
			idx = int(src.Float64() * float64(len(left)))
			if idx >= len(left) {
				idx = len(left) - 1
			}
		}

		picked = append(picked, left[idx].Item)
		left = slices.Delete(left, idx, idx+1)
	}
	return picked, nil
}

// locate returns the index owning point u of the cumulative weight line.
func locate[T any](items []Weighted[T], u float64) int {
	last := -1
	for i, it := range items {
		if it.Weight <= 0 {
			continue
		}
		last = i
		u -= it.Weight
		if u < 0 {
			return i
		}
	}
	// u landed on the upper edge through rounding
	return last
}

// Choose returns the index picked from weights, or -1 if none is positive.
func Choose(src Source, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}
	u := src.Float64() * total
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		last = i
		u -= w
		if u < 0 {
			return i
		}
	}
	return last
}

// ValidWeight reports whether w is usable as a draw weight.
func ValidWeight(w float64) bool {
	return w >= 0 && !math.IsInf(w, 0) && !math.IsNaN(w)
}
