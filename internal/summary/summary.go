// Package summary grades a finished life into its reported metrics.
package summary

import (
	"math"
	"strings"

	apperrors "github.com/tatianab/life-restart/internal/errors"
	"github.com/tatianab/life-restart/internal/grading"
	"github.com/tatianab/life-restart/internal/models"
	"github.com/tatianab/life-restart/internal/session"
)

// Metric keys resolved from terminal session state.
const (
	MetricAge   = "HAGE"
	MetricTotal = "SUM"
)

// Builder resolves configured metrics and grades them.
type Builder struct {
	tables  grading.Set
	metrics []string
}

// NewBuilder checks that every metric is resolvable and has a table.
func NewBuilder(tables grading.Set, metrics []string) (*Builder, error) {
	if len(metrics) == 0 {
		return nil, apperrors.New(apperrors.CodeConfigInvalid, "no summary metrics configured")
	}
	for _, m := range metrics {
		if !resolvable(m) {
			return nil, apperrors.WithMetadata(apperrors.CodeConfigInvalid, "unknown summary metric",
				map[string]string{"metric": m})
		}
		if _, ok := tables.Lookup(m); !ok {
			return nil, apperrors.WithMetadata(apperrors.CodeConfigInvalid, "summary metric has no grading table",
				map[string]string{"metric": m})
		}
	}
	return &Builder{tables: tables, metrics: append([]string(nil), metrics...)}, nil
}

// Build grades a terminated session. It does not modify the snapshot.
func (b *Builder) Build(snap session.Snapshot) (models.Summary, error) {
	if snap.Phase != session.PhaseTerminated {
		return models.Summary{}, apperrors.WithMetadata(apperrors.CodeInvalidState,
			"summary requires a terminated session",
			map[string]string{"session": snap.ID, "phase": snap.Phase.String()})
	}

	out := models.Summary{Grades: make([]models.Grade, 0, len(b.metrics))}
	for _, m := range b.metrics {
		v := Value(snap, m)
		table, _ := b.tables.Lookup(m)
		r := table.Grade(v)
		out.Grades = append(out.Grades, models.Grade{Metric: m, Value: v, Grade: r.Grade, Label: r.Label})
	}
	return out, nil
}

// Value resolves a metric key against session state:
// H<STAT> is the stat's highest value, <STAT> its final value, HAGE the final
// age and SUM the weighted total of the highs and age.
func Value(snap session.Snapshot, metric string) float64 {
	switch metric {
	case MetricAge:
		return float64(max(snap.Age(), 0))
	case MetricTotal:
		sum := 0
		for _, s := range models.Stats {
			sum += snap.Highs[s]
		}
		return math.Floor(float64(sum)*2 + Value(snap, MetricAge)/2)
	}
	if s, ok := highStat(metric); ok {
		return float64(snap.Highs[s])
	}
	if s := models.Stat(metric); s.Valid() {
		return float64(snap.Stats[s])
	}
	return 0
}

func highStat(metric string) (models.Stat, bool) {
	rest, ok := strings.CutPrefix(metric, "H")
	if !ok {
		return "", false
	}
	s := models.Stat(rest)
	return s, s.Valid()
}

func resolvable(metric string) bool {
	if metric == MetricAge || metric == MetricTotal {
		return true
	}
	if _, ok := highStat(metric); ok {
		return true
	}
	return models.Stat(metric).Valid()
}
