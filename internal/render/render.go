// Package render formats game state as localized plain text.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tatianab/life-restart/internal/content"
	"github.com/tatianab/life-restart/internal/models"
)

// Item formats one narrative line according to its kind.
func Item(strs *content.Strings, item models.ContentItem) string {
	switch item.Kind {
	case models.KindTrait:
		return strs.Format(content.MsgTraitTrigger, item)
	case models.KindEvent:
		if item.PostEvent != "" {
			return item.Description + " " + item.PostEvent
		}
		return item.Description
	default:
		return item.Description
	}
}

// Record formats a year as a header line followed by its items.
func Record(strs *content.Strings, rec models.YearRecord) string {
	var b strings.Builder
	b.WriteString(strs.Format(content.MsgYear, rec))
	for _, item := range rec.Content {
		line := Item(strs, item)
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString("\n  ")
		b.WriteString(line)
	}
	return b.String()
}

// Trait formats a trait as "Name - Description".
func Trait(t models.Trait) string {
	if t.Description == "" {
		return t.Name
	}
	return t.Name + " - " + t.Description
}

// Allocation lists the stats in display order with the budget used.
func Allocation(strs *content.Strings, a models.Allocation, budget int) string {
	var b strings.Builder
	for _, s := range models.Stats {
		fmt.Fprintf(&b, "%s (%s): %d\n", strs.Stat(s), s, a[s])
	}
	b.WriteString(strs.Format(content.MsgAllocationTotal, struct{ Used, Budget int }{a.Sum(), budget}))
	return b.String()
}

// Summary lists each graded metric as "Name: value label".
func Summary(strs *content.Strings, sum models.Summary) string {
	lines := make([]string, 0, len(sum.Grades))
	for _, g := range sum.Grades {
		lines = append(lines, fmt.Sprintf("%s: %s %s", strs.Metric(g.Metric),
			strconv.FormatFloat(g.Value, 'f', -1, 64), strs.Label(g.Label)))
	}
	return strings.Join(lines, "\n")
}

// Guide renders the usage text for the given rules.
func Guide(strs *content.Strings, rules content.Rules) string {
	return strs.Format(content.MsgGuide, struct{ Min, Max, Budget int }{rules.Bounds.Min, rules.Bounds.Max, rules.Budget})
}
