package draw

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	apperrors "github.com/tatianab/life-restart/internal/errors"
	"github.com/tatianab/life-restart/internal/models"
	"gopkg.in/yaml.v3"
)

// Rates holds base tier weights and the shared normalizer. When Total is
// positive and tier 0 has no explicit weight, tier 0 receives whatever the
// other tiers leave of Total.
type Rates struct {
	Tiers map[int]float64
	Total float64
}

// UnmarshalYAML decodes the flat form {1: 100, 2: 10, 3: 1, total: 1000}.
func (r *Rates) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]float64
	if err := node.Decode(&raw); err != nil {
		return err
	}
	r.Tiers = make(map[int]float64, len(raw))
	r.Total = 0
	for k, v := range raw {
		if k == "total" {
			r.Total = v
			continue
		}
		tier, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("line %d: rate key %q is not a tier", node.Line, k)
		}
		r.Tiers[tier] = v
	}
	return nil
}

// Addition raises tier weights once a bonus metric reaches Threshold.
// Written [threshold, {tier: bonus}].
type Addition struct {
	Threshold float64
	Bonus     map[int]float64
}

// UnmarshalYAML decodes a [threshold, {tier: bonus}] row.
func (a *Addition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode || len(node.Content) != 2 {
		return fmt.Errorf("line %d: addition must be [threshold, {tier: bonus}]", node.Line)
	}
	if err := node.Content[0].Decode(&a.Threshold); err != nil {
		return fmt.Errorf("line %d: threshold: %w", node.Line, err)
	}
	if err := node.Content[1].Decode(&a.Bonus); err != nil {
		return fmt.Errorf("line %d: bonus: %w", node.Line, err)
	}
	return nil
}

// Additions maps a bonus metric (e.g. TMS, CACHV) to its unlock steps.
type Additions map[string][]Addition

// BonusContext carries the accumulated metrics additions are checked against.
type BonusContext map[string]float64

// Pool is an immutable set of traits with their rarity configuration.
type Pool struct {
	traits    []models.Trait
	rates     Rates
	additions Additions
}

// NewPool validates the traits and rates and builds a pool.
func NewPool(traits []models.Trait, rates Rates, additions Additions) (*Pool, error) {
	if !ValidWeight(rates.Total) {
		return nil, configError("rate total must be finite and non-negative", "total", rates.Total)
	}
	for tier, w := range rates.Tiers {
		if !ValidWeight(w) {
			return nil, configError("tier weight must be finite and non-negative", "tier", float64(tier))
		}
	}
	for metric, steps := range additions {
		for _, step := range steps {
			if math.IsNaN(step.Threshold) {
				return nil, apperrors.WithMetadata(apperrors.CodeConfigInvalid, "addition threshold is NaN",
					map[string]string{"metric": metric})
			}
			for tier, b := range step.Bonus {
				if math.IsNaN(b) || math.IsInf(b, 0) {
					return nil, apperrors.WithMetadata(apperrors.CodeConfigInvalid, "addition bonus must be finite",
						map[string]string{"metric": metric, "tier": strconv.Itoa(tier)})
				}
			}
		}
	}

	seen := make(map[string]bool, len(traits))
	for _, t := range traits {
		if t.ID == "" {
			return nil, apperrors.WithMetadata(apperrors.CodeConfigInvalid, "trait id is empty",
				map[string]string{"name": t.Name})
		}
		if seen[t.ID] {
			return nil, apperrors.WithMetadata(apperrors.CodeConfigInvalid, "duplicate trait id",
				map[string]string{"id": t.ID})
		}
		seen[t.ID] = true
		if _, ok := rates.Tiers[t.Tier]; !ok && !(t.Tier == 0 && rates.Total > 0) {
			return nil, apperrors.WithMetadata(apperrors.CodeConfigInvalid, "trait tier has no rate",
				map[string]string{"id": t.ID, "tier": strconv.Itoa(t.Tier)})
		}
		if !ValidWeight(t.Weight) {
			return nil, apperrors.WithMetadata(apperrors.CodeConfigInvalid, "trait weight must be finite and non-negative",
				map[string]string{"id": t.ID})
		}
	}

	p := &Pool{
		traits:    append([]models.Trait(nil), traits...),
		rates:     Rates{Tiers: make(map[int]float64, len(rates.Tiers)), Total: rates.Total},
		additions: make(Additions, len(additions)),
	}
	for k, v := range rates.Tiers {
		p.rates.Tiers[k] = v
	}
	for k, v := range additions {
		p.additions[k] = append([]Addition(nil), v...)
	}
	return p, nil
}

// Size returns the number of traits in the pool.
func (p *Pool) Size() int { return len(p.traits) }

// TierWeights returns the effective weight of every tier under bonus: the
// base rate plus every addition whose threshold is at or below the bonus
// metric, with the implicit tier 0 filling up to Total.
func (p *Pool) TierWeights(bonus BonusContext) map[int]float64 {
	weights := make(map[int]float64, len(p.rates.Tiers)+1)
	for tier, w := range p.rates.Tiers {
		weights[tier] = w
	}

	metrics := make([]string, 0, len(p.additions))
	for m := range p.additions {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)
	for _, m := range metrics {
		v := bonus[m]
		for _, step := range p.additions[m] {
			if step.Threshold > v {
				continue
			}
			for _, tier := range sortedTiers(step.Bonus) {
				weights[tier] += step.Bonus[tier]
			}
		}
	}

	if _, explicit := p.rates.Tiers[0]; !explicit && p.rates.Total > 0 {
		used := 0.0
		for _, tier := range sortedTiers(weights) {
			if tier != 0 {
				used += weights[tier]
			}
		}
		weights[0] = p.rates.Total - used
	}

	for tier, w := range weights {
		if w < 0 {
			weights[tier] = 0
		}
	}
	return weights
}

// Weighted spreads each tier's weight evenly over its members. Items with a
// weight override keep it instead.
func (p *Pool) Weighted(bonus BonusContext) []Weighted[models.Trait] {
	tiers := p.TierWeights(bonus)
	members := make(map[int]int)
	for _, t := range p.traits {
		if t.Weight == 0 {
			members[t.Tier]++
		}
	}

	out := make([]Weighted[models.Trait], len(p.traits))
	for i, t := range p.traits {
		w := t.Weight
		if w == 0 {
			w = tiers[t.Tier] / float64(members[t.Tier])
		}
		out[i] = Weighted[models.Trait]{Item: t, Weight: w}
	}
	return out
}

// Draw samples count distinct traits. Tiers without members never produce
// a trait regardless of their weight.
func (p *Pool) Draw(src Source, count int, bonus BonusContext) ([]models.Trait, error) {
	return Sample(src, p.Weighted(bonus), count)
}

func sortedTiers[V any](m map[int]V) []int {
	tiers := make([]int, 0, len(m))
	for t := range m {
		tiers = append(tiers, t)
	}
	sort.Ints(tiers)
	return tiers
}

func configError(msg, field string, value float64) error {
	return apperrors.WithMetadata(apperrors.CodeConfigInvalid, msg,
		map[string]string{field: strconv.FormatFloat(value, 'g', -1, 64)})
}
