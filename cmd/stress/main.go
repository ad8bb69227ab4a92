package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/delaneyj/proxyparty/petite"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

// Sustained-throughput stress run: layered computed graphs over reactive
// sources, mutated and flushed in a tight loop. Reports recompute rates per
// configuration.
func main() {
	log.Print("Starting stress run, please wait...")
	defer log.Print("Finished stress run")

	cfgs := []stressConfig{
		{name: "simple component", width: 10, totalLayers: 5, iterations: 10_000},
		{name: "dynamic component", width: 10, totalLayers: 10, iterations: 5_000},
		{name: "large web app", width: 100, totalLayers: 12, iterations: 1_000},
		{name: "wide dense", width: 1_000, totalLayers: 5, iterations: 200},
		{name: "deep", width: 5, totalLayers: 500, iterations: 200},
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{
		"size", "nTimes", "test", "time", "recomputeRate",
	})

	testRepeats := 5
	for _, cfg := range cfgs {
		log.Printf("Running '%s' config", cfg.name)

		counter := new(int64)
		g := makeGraph(cfg, counter)

		// warm up
		runOnce(g, cfg)

		best := time.Hour
		var bestCount int64
		for i := 0; i < testRepeats; i++ {
			log.Printf("Running '%s' config, iteration %d/%d", cfg.name, i+1, testRepeats)
			*counter = 0
			start := time.Now()
			runOnce(g, cfg)
			duration := time.Since(start)
			if duration < best {
				best = duration
				bestCount = *counter
			}
		}

		recomputeRate := float64(bestCount) / (float64(best) / float64(time.Millisecond))
		table.Append([]string{
			fmt.Sprintf("%dx%d", cfg.width, cfg.totalLayers),
			humanize.Comma(int64(cfg.iterations)),
			cfg.name,
			fmt.Sprint(best),
			humanize.Comma(int64(recomputeRate)) + "/ms",
		})
	}
	table.Render()
}

type stressConfig struct {
	name        string
	width       int
	totalLayers int
	iterations  int
}

type stressGraph struct {
	rs      *petite.ReactiveSystem
	sources *petite.Reactive
	last    []*petite.ReadonlySignal[int]
}

func sourceKey(i int) string { return fmt.Sprintf("s%d", i) }

// makeGraph builds totalLayers layers of width computeds. Layer zero reads
// the source map, every later node reads two neighbors from the layer below,
// and counter counts recomputes across the whole graph.
func makeGraph(cfg stressConfig, counter *int64) *stressGraph {
	rs := petite.CreateReactiveSystem(func(from *petite.Effect, err error) {
		log.Panic(err)
	})

	raw := map[string]any{}
	for i := 0; i < cfg.width; i++ {
		raw[sourceKey(i)] = 1
	}
	sources := rs.Reactive(raw).(*petite.Reactive)

	prev := make([]*petite.ReadonlySignal[int], cfg.width)
	for i := 0; i < cfg.width; i++ {
		key := sourceKey(i)
		prev[i] = petite.Computed(rs, func(oldValue int) int {
			*counter++
			return sources.GetInt(key) + 1
		})
	}

	for l := 1; l < cfg.totalLayers; l++ {
		layer := make([]*petite.ReadonlySignal[int], cfg.width)
		for i := 0; i < cfg.width; i++ {
			a := prev[i]
			b := prev[(i+1)%cfg.width]
			layer[i] = petite.Computed(rs, func(oldValue int) int {
				*counter++
				return a.Value() + b.Value()
			})
		}
		prev = layer
	}

	g := &stressGraph{rs: rs, sources: sources, last: prev}
	for _, c := range g.last {
		c := c
		rs.Effect(func() error {
			c.Value()
			return nil
		})
	}
	return g
}

func runOnce(g *stressGraph, cfg stressConfig) int {
	sum := 0
	for i := 0; i < cfg.iterations; i++ {
		key := sourceKey(i % cfg.width)
		g.rs.Batch(func() {
			g.sources.Set(key, g.sources.Peek(key).(int)+1)
		})
		sum = g.last[i%cfg.width].Peek()
	}
	return sum
}
