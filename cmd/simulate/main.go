// Command simulate plays games headlessly against the simulated camera and
// offline content, and reports how long the player kept a straight face.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/samber/lo"

	"laughgame/internal/app"
	"laughgame/internal/config"
	"laughgame/internal/content"
	"laughgame/internal/game"
	"laughgame/internal/sensor"
)

type result struct {
	game   int
	state  game.GameState
	rounds int
	score  float64
	took   time.Duration
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "simulate:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("simulate", flag.ContinueOnError)
	games := flags.Int("games", 3, "number of games to play")
	seed := flags.Int64("seed", 1, "seed for picks and simulated smiles, 0 for a random one")
	smile := flags.Float64("smile", 0.1, "probability that a simulated frame shows a smile")
	fps := flags.Float64("fps", 60, "simulated camera frame rate")
	round := flags.Duration("round", 500*time.Millisecond, "round duration")
	items := flags.Int("items", 8, "number of offline items")
	limit := flags.Duration("timeout", 30*time.Second, "give up on a game after this long")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *seed == 0 {
		*seed = game.NewSeed()
	}

	cfg := config.Default()
	cfg.Content.Source = config.SourceStatic
	cfg.Game.Seed = *seed
	cfg.Game.RoundDuration = *round
	cfg.Sensor.FPS = *fps
	cfg.Sensor.SmileProbability = *smile
	cfg.Log.Level = "warn"
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := cfg.Log.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog := lo.Times(*items, func(i int) content.Item {
		id := "sim-" + strconv.Itoa(i+1)
		return content.Item{ID: id, MediaURL: "sim://" + id}
	})
	a, err := app.New(ctx, cfg, log, app.Options{
		Camera: sensor.NewSimulated(sensor.SimulatedConfig{
			FPS:              cfg.Sensor.FPS,
			SmileProbability: cfg.Sensor.SmileProbability,
			Seed:             *seed,
			Logger:           log,
		}),
		Fetcher: &content.Static{Items: catalog, Delay: 20 * time.Millisecond},
		Loader:  content.Nop{Delay: 10 * time.Millisecond},
	})
	if err != nil {
		return err
	}
	defer a.Close()

	store := a.Store()
	updates := store.Broadcaster().Subscribe(256)
	defer store.Broadcaster().Unsubscribe(updates)

	var results []result
	for i := 1; i <= *games; i++ {
		if i > 1 {
			if err := store.Reset(); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
		}
		for len(updates) > 0 {
			<-updates
		}
		began := time.Now()
		if err := store.Start(); err != nil {
			return fmt.Errorf("start: %w", err)
		}
		last := waitForEnd(ctx, updates, *limit)
		results = append(results, result{
			game:   i,
			state:  last.State,
			rounds: last.Round,
			score:  last.Score,
			took:   time.Since(began).Round(time.Millisecond),
		})
		if ctx.Err() != nil {
			break
		}
	}

	fmt.Fprintf(out, "seed %d\n", a.Seed())
	for _, r := range results {
		fmt.Fprintf(out, "game %d: %-8s after %d round(s), last score %.2f, %v\n", r.game, r.state, r.rounds, r.score, r.took)
	}
	lost := lo.CountBy(results, func(r result) bool { return r.state == game.Finished })
	fmt.Fprintf(out, "laughed in %d of %d games\n", lost, len(results))
	return nil
}

// waitForEnd returns the first Finished or Ended snapshot, or the latest one
// seen when the limit passes.
func waitForEnd(ctx context.Context, updates chan game.Snapshot, limit time.Duration) game.Snapshot {
	timer := time.NewTimer(limit)
	defer timer.Stop()
	var last game.Snapshot
	for {
		select {
		case <-ctx.Done():
			return last
		case <-timer.C:
			return last
		case snap := <-updates:
			last = snap
			if snap.State == game.Finished || snap.State == game.Ended {
				return snap
			}
		}
	}
}
