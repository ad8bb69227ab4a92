package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/delaneyj/proxyparty/petite"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

const (
	itersKey   = "iters"
	profileKey = "profile"
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Latency benchmarks for reactive graphs",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  itersKey,
				Usage: "Samples per benchmark cell",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  profileKey,
				Usage: "CPU profile output path, empty to disable",
				Value: "default.pgo",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

var (
	ww = []int{1, 10, 100, 1_000}
	hh = []int{1, 10, 100, 1_000}
)

func run(ctx context.Context, cmd *cli.Command) error {
	iters := int(cmd.Uint(itersKey))

	if path := cmd.String(profileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	log.Printf("warming up")
	benchmarkPropagate(iters, true)
	benchmarkListChurn(iters, true)
	return nil
}

// benchmarkPropagate drives w chains of h stacked computeds off a single
// reactive key and times one write plus the flush that settles it.
func benchmarkPropagate(iters int, shouldRender bool) {
	tbl := table.NewWriter()
	tbl.SetTitle("Propagate")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})

	for _, w := range ww {
		for _, h := range hh {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			rs := petite.CreateReactiveSystem(func(from *petite.Effect, err error) {
				log.Panic(err)
			})
			src := rs.Reactive(map[string]any{"n": 1}).(*petite.Reactive)
			for i := 0; i < w; i++ {
				last := petite.Computed(rs, func(oldValue int) int {
					return src.GetInt("n") + 1
				})
				for j := 1; j < h; j++ {
					prev := last
					last = petite.Computed(rs, func(oldValue int) int {
						return prev.Value() + 1
					})
				}
				rs.Effect(func() error {
					last.Value()
					return nil
				})
			}

			for i := 0; i < iters; i++ {
				start := time.Now()
				src.Set("n", src.Peek("n").(int)+1)
				rs.FlushEffects()
				tach.AddTime(time.Since(start))
			}

			calc := tach.Calc()
			tbl.AppendRows([]table.Row{
				{
					fmt.Sprintf("propagate: %d * %d", w, h),
					calc.Time.Avg,
					calc.Time.Min,
					calc.Time.P75,
					calc.Time.P99,
					calc.Time.Max,
				},
			})
		}
	}

	if shouldRender {
		tbl.Render()
	}
}

// benchmarkListChurn times structural list mutations observed by a summing
// effect, across list sizes.
func benchmarkListChurn(iters int, shouldRender bool) {
	tbl := table.NewWriter()
	tbl.SetTitle("List Churn")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})

	for _, n := range ww {
		tach := tachymeter.New(&tachymeter.Config{Size: iters})

		rs := petite.CreateReactiveSystem(func(from *petite.Effect, err error) {
			log.Panic(err)
		})
		raw := make([]any, n)
		for i := range raw {
			raw[i] = i
		}
		items := rs.Reactive(raw).(*petite.List)

		sum := 0
		rs.Effect(func() error {
			sum = 0
			for _, v := range items.Values() {
				sum += v.(int)
			}
			return nil
		})

		for i := 0; i < iters; i++ {
			start := time.Now()
			items.Push(i)
			items.Shift()
			rs.FlushEffects()
			tach.AddTime(time.Since(start))
		}

		calc := tach.Calc()
		tbl.AppendRows([]table.Row{
			{
				fmt.Sprintf("churn: len %d (sum %d)", n, sum),
				calc.Time.Avg,
				calc.Time.Min,
				calc.Time.P75,
				calc.Time.P99,
				calc.Time.Max,
			},
		})
	}

	if shouldRender {
		tbl.Render()
	}
}
