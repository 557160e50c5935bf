// Package allocation checks and generates stat allocations against a point
// budget and per-stat bounds.
package allocation

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/tatianab/life-restart/internal/draw"
	apperrors "github.com/tatianab/life-restart/internal/errors"
	"github.com/tatianab/life-restart/internal/models"
)

// Bounds is an inclusive value range.
type Bounds struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Contains reports whether v lies within the bounds.
func (b Bounds) Contains(v int) bool { return v >= b.Min && v <= b.Max }

// Limits holds the bounds for every stat.
type Limits map[models.Stat]Bounds

// Uniform applies the same bounds to every stat.
func Uniform(b Bounds) Limits {
	l := make(Limits, len(models.Stats))
	for _, s := range models.Stats {
		l[s] = b
	}
	return l
}

// Rule names the check an allocation failed.
type Rule string

const (
	RuleMissingStat    Rule = "missing_stat"
	RuleUnknownStat    Rule = "unknown_stat"
	RuleOutOfBounds    Rule = "out_of_bounds"
	RuleBudgetMismatch Rule = "budget_mismatch"
)

// ValidationError reports which rule an allocation broke and where.
type ValidationError struct {
	Rule     Rule
	Stats    []models.Stat
	Min      int // set for RuleOutOfBounds
	Max      int // set for RuleOutOfBounds
	Expected int // budget, set for RuleBudgetMismatch
	Actual   int // allocated sum, set for RuleBudgetMismatch
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	names := make([]string, len(e.Stats))
	for i, s := range e.Stats {
		names[i] = string(s)
	}
	switch e.Rule {
	case RuleBudgetMismatch:
		return fmt.Sprintf("allocation must total %d points, got %d", e.Expected, e.Actual)
	case RuleOutOfBounds:
		return fmt.Sprintf("%s must be within [%d, %d]", strings.Join(names, ", "), e.Min, e.Max)
	case RuleMissingStat:
		return fmt.Sprintf("allocation is missing %s", strings.Join(names, ", "))
	default:
		return fmt.Sprintf("allocation has unknown stat %s", strings.Join(names, ", "))
	}
}

// Unwrap lets errors.Is match the allocation error code.
func (e *ValidationError) Unwrap() error { return apperrors.ErrAllocationInvalid }

// Validate checks that every stat is present and known, each value lies
// within its bounds, and the values sum to budget exactly.
func Validate(a models.Allocation, budget int, limits Limits) error {
	var missing []models.Stat
	for _, s := range models.Stats {
		if _, ok := a[s]; !ok {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Rule: RuleMissingStat, Stats: missing}
	}

	var unknown []models.Stat
	for s := range a {
		if !s.Valid() {
			unknown = append(unknown, s)
		}
	}
	if len(unknown) > 0 {
		sortStats(unknown)
		return &ValidationError{Rule: RuleUnknownStat, Stats: unknown}
	}

	for _, s := range models.Stats {
		b := limits[s]
		if !b.Contains(a[s]) {
			bad := []models.Stat{s}
			for _, other := range models.Stats {
				if other != s && limits[other] == b && !b.Contains(a[other]) {
					bad = append(bad, other)
				}
			}
			sortStats(bad)
			return &ValidationError{Rule: RuleOutOfBounds, Stats: bad, Min: b.Min, Max: b.Max}
		}
	}

	if sum := a.Sum(); sum != budget {
		return &ValidationError{Rule: RuleBudgetMismatch, Expected: budget, Actual: sum}
	}
	return nil
}

// AutoAllocate builds a random valid allocation. Fixed stats are set first,
// the rest start at their minimum and grow by random steps of 1..3, capped
// by the remaining budget and the stat's headroom, until the budget is spent.
// A budget the free stats cannot absorb is a configuration fault.
func AutoAllocate(src draw.Source, budget int, limits Limits, fixed models.Allocation) (models.Allocation, error) {
	a := make(models.Allocation, len(models.Stats))
	remaining := budget
	var free []models.Stat
	headroom := 0

	for _, s := range models.Stats {
		b, ok := limits[s]
		if !ok || b.Min > b.Max {
			return nil, unallocatable("stat has no usable bounds", budget, map[string]string{"stat": string(s)})
		}
		if v, ok := fixed[s]; ok {
			if !b.Contains(v) {
				return nil, unallocatable("fixed stat outside bounds", budget, map[string]string{
					"stat": string(s), "value": strconv.Itoa(v),
				})
			}
			a[s] = v
			remaining -= v
			continue
		}
		a[s] = b.Min
		remaining -= b.Min
		headroom += b.Max - b.Min
		free = append(free, s)
	}

	if remaining < 0 || remaining > headroom {
		return nil, unallocatable("budget cannot be spent within bounds", budget, map[string]string{
			"remaining": strconv.Itoa(remaining), "headroom": strconv.Itoa(headroom),
		})
	}

	for remaining > 0 {
		open := make([]models.Stat, 0, len(free))
		for _, s := range free {
			if a[s] < limits[s].Max {
				open = append(open, s)
			}
		}
		s := open[pickIndex(src, len(open))]
		step := min(1+pickIndex(src, 3), remaining, limits[s].Max-a[s])
		a[s] += step
		remaining -= step
	}
	return a, nil
}

func pickIndex(src draw.Source, n int) int {
	i := int(src.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

func unallocatable(msg string, budget int, meta map[string]string) error {
	meta["budget"] = strconv.Itoa(budget)
	return apperrors.WithMetadata(apperrors.CodeUnallocatableBudget, msg, meta)
}

func sortStats(stats []models.Stat) {
	slices.SortFunc(stats, func(a, b models.Stat) int {
		ia, ib := slices.Index(models.Stats, a), slices.Index(models.Stats, b)
		if ia < 0 && ib < 0 {
			return strings.Compare(string(a), string(b))
		}
		if ia < 0 {
			return 1
		}
		if ib < 0 {
			return -1
		}
		return ia - ib
	})
}

// Parse reads one value per stat, in display order, from fields such as
// the arguments "4 4 4 4 4".
func Parse(fields []string) (models.Allocation, error) {
	if len(fields) != len(models.Stats) {
		return nil, apperrors.WithMetadata(apperrors.CodeAllocationInvalid, "expected one value per stat",
			map[string]string{"expected": strconv.Itoa(len(models.Stats)), "actual": strconv.Itoa(len(fields))})
	}
	a := make(models.Allocation, len(models.Stats))
	for i, s := range models.Stats {
		v, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil {
			return nil, apperrors.WithMetadata(apperrors.CodeAllocationInvalid, "stat value is not a number",
				map[string]string{"stat": string(s), "value": fields[i]})
		}
		a[s] = v
	}
	return a, nil
}
