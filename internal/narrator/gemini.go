package narrator

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/generative-ai-go/genai"
	"github.com/tatianab/life-restart/internal/models"
	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/next_year.txt
var nextYearPrompt string

var nextYearTmpl = template.Must(template.New("next_year").Parse(nextYearPrompt))

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// Gemini narrates years with a Gemini model.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	maxAge int
}

// NewGemini connects to the Gemini API. Years past maxAge end the life
// regardless of the model's reply.
func NewGemini(ctx context.Context, apiKey, modelName string, maxAge int) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.9)
	return &Gemini{
		client: client,
		model:  model,
		maxAge: maxAge,
	}, nil
}

// Close releases the client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// Next asks the model for the year after lc.Age.
func (g *Gemini) Next(ctx context.Context, lc models.LifeContext) (models.YearRecord, error) {
	prompt, err := buildPrompt(lc, g.maxAge)
	if err != nil {
		return models.YearRecord{}, err
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return models.YearRecord{}, fmt.Errorf("generate year: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return models.YearRecord{}, fmt.Errorf("no content returned from Gemini")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return models.YearRecord{}, fmt.Errorf("unexpected response type from Gemini")
	}

	return parseYear(string(text), lc, g.maxAge)
}

func buildPrompt(lc models.LifeContext, maxAge int) (string, error) {
	stats := make(map[string]int, len(lc.Stats))
	for s, v := range lc.Stats {
		stats[string(s)] = v
	}
	data := struct {
		Age    int
		MaxAge int
		Stats  map[string]int
		Traits []models.Trait
		Recent []models.YearRecord
	}{
		Age:    lc.Age + 1,
		MaxAge: maxAge,
		Stats:  stats,
		Traits: lc.Traits,
		Recent: lc.Recent,
	}

	var buf bytes.Buffer
	if err := nextYearTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

type yearReply struct {
	Events []struct {
		Description string `yaml:"description"`
		PostEvent   string `yaml:"post_event"`
	} `yaml:"events"`
	Stats map[string]int `yaml:"stats"`
	IsEnd bool           `yaml:"is_end"`
}

// parseYear turns a model reply into a record. Unknown stats are dropped and
// missing ones keep their previous value. Trait effects are applied at birth
// as in the local generator.
func parseYear(text string, lc models.LifeContext, maxAge int) (models.YearRecord, error) {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```yaml")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")

	var reply yearReply
	if err := yaml.Unmarshal([]byte(clean), &reply); err != nil {
		return models.YearRecord{}, fmt.Errorf("failed to parse year YAML: %w\nOutput was: %s", err, clean)
	}

	age := lc.Age + 1
	rec := models.YearRecord{Age: age, Terminal: reply.IsEnd || age >= maxAge}

	stats := lc.Stats.Clone()
	if stats == nil {
		stats = models.Allocation{}
	}
	for k, v := range reply.Stats {
		if s, err := models.ParseStat(k); err == nil {
			stats[s] = v
		}
	}
	if age == 0 {
		for _, t := range lc.Traits {
			if len(t.Effects) > 0 {
				apply(stats, t.Effects)
				rec.Content = append(rec.Content, models.TraitTrigger(t))
			}
		}
	}
	rec.Stats = stats

	for _, e := range reply.Events {
		if strings.TrimSpace(e.Description) == "" {
			continue
		}
		rec.Content = append(rec.Content, models.Event(e.Description, e.PostEvent))
	}
	return rec, nil
}
