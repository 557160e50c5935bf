package engine

import (
	"context"

	"github.com/tatianab/life-restart/internal/models"
)

// Character is a randomly generated starting point.
type Character struct {
	Stats  models.Allocation
	Traits []models.Trait
}

// RandomCharacters generates the configured number of characters: each stat
// and the trait count come from weighted value tables, traits from the pool.
func (e *Engine) RandomCharacters(ctx context.Context) ([]Character, error) {
	rng := e.newRand("characters")
	bonus := e.bonusContext(ctx)
	cfg := e.rules.Character

	out := make([]Character, 0, cfg.Pull)
	for range cfg.Pull {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := Character{Stats: make(models.Allocation, len(models.Stats))}
		for _, s := range models.Stats {
			v, err := cfg.PropertyWeight.Pick(rng)
			if err != nil {
				return nil, err
			}
			c.Stats[s] = v
		}
		n, err := cfg.TraitWeight.Pick(rng)
		if err != nil {
			return nil, err
		}
		n = min(max(n, 0), e.pool.Size())
		if c.Traits, err = e.pool.Draw(rng, n, bonus); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
