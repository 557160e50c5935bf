// Package narrator provides year generators: a rule-based local one driven by
// the content event table and one backed by the Gemini API.
package narrator

import (
	"context"
	"errors"

	"github.com/tatianab/life-restart/internal/content"
	"github.com/tatianab/life-restart/internal/draw"
	"github.com/tatianab/life-restart/internal/models"
)

// Local generates years from the event table. All randomness comes from the
// session source in the life context.
type Local struct {
	events  []content.Event
	life    content.LifeRules
	strings *content.Strings
}

// NewLocal creates a local generator.
func NewLocal(events []content.Event, life content.LifeRules, strs *content.Strings) *Local {
	return &Local{events: events, life: life, strings: strs}
}

// Next produces the year after lc.Age.
func (g *Local) Next(ctx context.Context, lc models.LifeContext) (models.YearRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.YearRecord{}, err
	}
	if lc.Rand == nil {
		return models.YearRecord{}, errors.New("life context has no random source")
	}

	age := lc.Age + 1
	stats := lc.Stats.Clone()
	if stats == nil {
		stats = models.Allocation{}
	}
	rec := models.YearRecord{Age: age}

	owned := make(map[string]bool, len(lc.Traits))
	for _, t := range lc.Traits {
		owned[t.ID] = true
		if age == 0 && len(t.Effects) > 0 {
			apply(stats, t.Effects)
			rec.Content = append(rec.Content, models.TraitTrigger(t))
		}
	}

	var eligible []content.Event
	var weights []float64
	for _, e := range g.events {
		if e.Eligible(age, stats, owned) {
			eligible = append(eligible, e)
			weights = append(weights, e.Weight)
		}
	}
	if i := draw.Choose(lc.Rand, weights); i >= 0 {
		e := eligible[i]
		apply(stats, e.Effects)
		rec.Content = append(rec.Content, e.Item())
		rec.Terminal = e.Terminal
	}

	if !rec.Terminal {
		switch {
		case stats[models.StatStrength] < 0:
			rec.Terminal = true
			rec.Content = append(rec.Content, models.Plain(g.strings.Format(content.MsgDied, rec)))
		case age >= g.life.MaxAge:
			rec.Terminal = true
			rec.Content = append(rec.Content, models.Plain(g.strings.Format(content.MsgDiedOfAge, rec)))
		case lc.Rand.Float64() < g.deathChance(age, stats):
			rec.Terminal = true
			rec.Content = append(rec.Content, models.Plain(g.strings.Format(content.MsgDied, rec)))
		}
	}

	rec.Stats = stats
	return rec, nil
}

// deathChance scales the configured mortality by strength: each point up to
// 10 lowers it by 5%.
func (g *Local) deathChance(age int, stats models.Allocation) float64 {
	str := min(max(stats[models.StatStrength], 0), 10)
	return g.life.DeathChance(age) * (1 - 0.05*float64(str))
}

func apply(stats, delta models.Allocation) {
	for s, v := range delta {
		stats[s] += v
	}
}
