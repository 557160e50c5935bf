package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tatianab/life-restart/internal/config"
	"github.com/tatianab/life-restart/internal/content"
	"github.com/tatianab/life-restart/internal/engine"
	"github.com/tatianab/life-restart/internal/events"
	"github.com/tatianab/life-restart/internal/logging"
	"github.com/tatianab/life-restart/internal/narrator"
	"github.com/tatianab/life-restart/internal/summary"
)

const (
	numLives = 200
	workers  = 8
)

func main() {
	ctx := context.Background()
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	bundle, err := content.Load(content.NewLoader(cfg.ContentDir), cfg.Locale)
	if err != nil {
		log.Fatalf("Failed to load content: %v", err)
	}

	var gen engine.YearGenerator = narrator.NewLocal(bundle.Events, bundle.Rules.Life, bundle.Strings)
	if cfg.Narrator == config.NarratorGemini {
		g, err := narrator.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, bundle.Rules.Life.MaxAge)
		if err != nil {
			log.Fatalf("Failed to create Gemini narrator: %v", err)
		}
		defer g.Close()
		gen = g
	}

	var years atomic.Int64
	bus := events.NewBus()
	bus.Subscribe(events.YearAdvanced, func(events.Event) { years.Add(1) })

	eng, err := engine.New(engine.Options{
		Rules:     bundle.Rules,
		Traits:    bundle.Traits,
		Generator: gen,
		Bus:       bus,
		Logger:    logging.NewLogger(cfg.LogLevel, os.Stderr),
		Seed:      cfg.Seed,
	})
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	// Run every life concurrently, a few at a time.
	type result struct {
		age   int
		total float64
		label string
		err   error
	}
	results := make([]result, numLives)
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range numLives {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			id := fmt.Sprintf("sim-%03d", i)
			if _, err := eng.NewGame(ctx, id); err != nil {
				results[i].err = err
				return
			}
			if _, err := eng.AutoAllocate(ctx, id); err != nil {
				results[i].err = err
				return
			}
			sum, err := eng.RunToCompletion(ctx, id)
			if err != nil {
				results[i].err = err
				return
			}
			age, _ := sum.Get(summary.MetricAge)
			total, _ := sum.Get(summary.MetricTotal)
			results[i] = result{age: int(age.Value), total: total.Value, label: total.Label}
		}()
	}
	wg.Wait()

	// Report the grade distribution of the overall score.
	counts := map[string]int{}
	failed, ages := 0, 0
	for i, r := range results {
		if r.err != nil {
			fmt.Printf("sim-%03d failed: %v\n", i, r.err)
			failed++
			continue
		}
		counts[r.label]++
		ages += r.age
	}

	fmt.Printf("Lives: %d (failed %d), years simulated: %d\n", numLives, failed, years.Load())
	if ok := numLives - failed; ok > 0 {
		fmt.Printf("Average lifespan: %.1f\n", float64(ages)/float64(ok))
	}
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	slices.Sort(labels)
	for _, l := range labels {
		fmt.Printf("  %-16s %d\n", bundle.Strings.Label(l), counts[l])
	}
}
