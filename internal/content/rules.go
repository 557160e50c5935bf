package content

import (
	"fmt"
	"math"
	"strconv"

	"github.com/tatianab/life-restart/internal/allocation"
	"github.com/tatianab/life-restart/internal/draw"
	apperrors "github.com/tatianab/life-restart/internal/errors"
	"github.com/tatianab/life-restart/internal/grading"
	"github.com/tatianab/life-restart/internal/models"
	"gopkg.in/yaml.v3"
)

// Rules are the tunable parameters of a game.
type Rules struct {
	Budget      int                        `yaml:"budget"`
	Bounds      allocation.Bounds          `yaml:"bounds"`
	Fixed       models.Allocation          `yaml:"fixed"`
	MaxYears    int                        `yaml:"max_years"`
	RecentYears int                        `yaml:"recent_years"`
	Traits      TraitRules                 `yaml:"traits"`
	Character   CharacterRules             `yaml:"character"`
	Life        LifeRules                  `yaml:"life"`
	Summary     []string                   `yaml:"summary"`
	Judge       map[string][]grading.Entry `yaml:"judge"`
}

// TraitRules configure the trait draw at the start of a game.
type TraitRules struct {
	Pull      int            `yaml:"pull"`
	Select    int            `yaml:"select"`
	Rates     draw.Rates     `yaml:"rates"`
	Additions draw.Additions `yaml:"additions"`
}

// CharacterRules configure random character generation.
type CharacterRules struct {
	Pull           int             `yaml:"pull"`
	PropertyWeight draw.ValueTable `yaml:"property_weight"`
	TraitWeight    draw.ValueTable `yaml:"trait_weight"`
}

// LifeRules drive the local year generator.
type LifeRules struct {
	MaxAge    int         `yaml:"max_age"`
	Mortality []Mortality `yaml:"mortality"`
}

// Mortality is the yearly chance of death from Age onwards.
type Mortality struct {
	Age    int
	Chance float64
}

// UnmarshalYAML decodes an [age, chance] row.
func (m *Mortality) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode || len(node.Content) != 2 {
		return fmt.Errorf("line %d: mortality must be [age, chance]", node.Line)
	}
	if err := node.Content[0].Decode(&m.Age); err != nil {
		return fmt.Errorf("line %d: age: %w", node.Line, err)
	}
	if err := node.Content[1].Decode(&m.Chance); err != nil {
		return fmt.Errorf("line %d: chance: %w", node.Line, err)
	}
	return nil
}

// DeathChance returns the yearly chance of death at age.
func (l LifeRules) DeathChance(age int) float64 {
	chance := 0.0
	for _, m := range l.Mortality {
		if m.Age > age {
			break
		}
		chance = m.Chance
	}
	return chance
}

// Limits returns the per-stat allocation bounds.
func (r Rules) Limits() allocation.Limits {
	return allocation.Uniform(r.Bounds)
}

// Grading builds the judge tables.
func (r Rules) Grading() (grading.Set, error) {
	return grading.NewSet(r.Judge)
}

// Defaults returns the starting allocation shown before the player assigns
// points: every stat at its minimum, fixed stats at their value.
func (r Rules) Defaults() models.Allocation {
	out := make(models.Allocation, len(models.Stats))
	for _, s := range models.Stats {
		out[s] = r.Bounds.Min
	}
	for s, v := range r.Fixed {
		out[s] = v
	}
	return out
}

// Validate checks the rules for consistency.
func (r Rules) Validate() error {
	switch {
	case r.Budget < 0:
		return invalid("budget must not be negative", "budget", r.Budget)
	case r.Bounds.Min > r.Bounds.Max:
		return invalid("bounds min exceeds max", "bounds", r.Bounds.Min)
	case r.MaxYears <= 0:
		return invalid("max_years must be positive", "max_years", r.MaxYears)
	case r.RecentYears < 0:
		return invalid("recent_years must not be negative", "recent_years", r.RecentYears)
	case r.Traits.Select <= 0:
		return invalid("traits.select must be positive", "traits.select", r.Traits.Select)
	case r.Traits.Pull < r.Traits.Select:
		return invalid("traits.pull must be at least traits.select", "traits.pull", r.Traits.Pull)
	case r.Character.Pull <= 0:
		return invalid("character.pull must be positive", "character.pull", r.Character.Pull)
	case r.Life.MaxAge <= 0 || r.Life.MaxAge >= r.MaxYears:
		return invalid("life.max_age must be positive and below max_years", "life.max_age", r.Life.MaxAge)
	}

	for s, v := range r.Fixed {
		if !s.Valid() {
			return apperrors.WithMetadata(apperrors.CodeConfigInvalid, "fixed value for unknown stat",
				map[string]string{"field": "fixed", "stat": string(s)})
		}
		if !r.Bounds.Contains(v) {
			return invalid("fixed value out of bounds", "fixed."+string(s), v)
		}
	}
	if err := r.Character.PropertyWeight.Validate("character.property_weight"); err != nil {
		return err
	}
	if err := r.Character.TraitWeight.Validate("character.trait_weight"); err != nil {
		return err
	}

	prev := -1
	for _, m := range r.Life.Mortality {
		if m.Age <= prev {
			return invalid("mortality ages must be strictly increasing", "life.mortality", m.Age)
		}
		if math.IsNaN(m.Chance) || m.Chance < 0 || m.Chance > 1 {
			return apperrors.WithMetadata(apperrors.CodeConfigInvalid, "mortality chance must lie in [0, 1]",
				map[string]string{"field": "life.mortality", "age": itoa(m.Age)})
		}
		prev = m.Age
	}

	if _, err := r.Grading(); err != nil {
		return err
	}
	return nil
}

func invalid(msg, field string, actual int) error {
	return apperrors.WithMetadata(apperrors.CodeConfigInvalid, msg,
		map[string]string{"field": field, "actual": itoa(actual)})
}

func itoa(n int) string { return strconv.Itoa(n) }
