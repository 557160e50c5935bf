package content

import (
	"github.com/tatianab/life-restart/internal/draw"
	apperrors "github.com/tatianab/life-restart/internal/errors"
	"github.com/tatianab/life-restart/internal/models"
)

// Event is a possible occurrence in a simulated year.
type Event struct {
	ID          string            `yaml:"id"`
	Description string            `yaml:"description"`
	PostEvent   string            `yaml:"post_event"`
	Weight      float64           `yaml:"weight"`
	MinAge      int               `yaml:"min_age"`
	MaxAge      int               `yaml:"max_age"`
	MinStats    models.Allocation `yaml:"min_stats"`
	MaxStats    models.Allocation `yaml:"max_stats"`
	Traits      []string          `yaml:"traits"`
	Effects     models.Allocation `yaml:"effects"`
	Terminal    bool              `yaml:"is_end"`
}

// Eligible reports whether the event can happen at age given the current
// stats and the set of drawn trait IDs.
func (e Event) Eligible(age int, stats models.Allocation, traits map[string]bool) bool {
	if age < e.MinAge || age > e.MaxAge {
		return false
	}
	for s, v := range e.MinStats {
		if stats[s] < v {
			return false
		}
	}
	for s, v := range e.MaxStats {
		if stats[s] > v {
			return false
		}
	}
	for _, id := range e.Traits {
		if !traits[id] {
			return false
		}
	}
	return true
}

// Item returns the event as a narrative item.
func (e Event) Item() models.ContentItem {
	return models.Event(e.Description, e.PostEvent)
}

func validateEvents(events []Event) error {
	if len(events) == 0 {
		return apperrors.New(apperrors.CodeConfigInvalid, "no events defined")
	}
	seen := make(map[string]bool, len(events))
	for _, e := range events {
		meta := map[string]string{"event": e.ID}
		switch {
		case e.ID == "":
			return apperrors.New(apperrors.CodeConfigInvalid, "event id is empty")
		case seen[e.ID]:
			return apperrors.WithMetadata(apperrors.CodeConfigInvalid, "duplicate event id", meta)
		case e.MinAge < 0 || e.MinAge > e.MaxAge:
			return apperrors.WithMetadata(apperrors.CodeConfigInvalid, "event age range is empty", meta)
		}
		if !draw.ValidWeight(e.Weight) {
			return apperrors.WithMetadata(apperrors.CodeConfigInvalid, "event weight must be finite and non-negative", meta)
		}
		for _, m := range []models.Allocation{e.MinStats, e.MaxStats, e.Effects} {
			for s := range m {
				if !s.Valid() {
					meta["stat"] = string(s)
					return apperrors.WithMetadata(apperrors.CodeConfigInvalid, "event refers to unknown stat", meta)
				}
			}
		}
		seen[e.ID] = true
	}
	return nil
}
