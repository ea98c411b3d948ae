// Command pricecheck fetches the current prices once and prints the analytics
// for every home on the account. Useful for checking a token and config file
// without starting the service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/angas/pricewatch-go/config"
	"github.com/angas/pricewatch-go/optimize"
	"github.com/angas/pricewatch-go/tibber"
)

func main() {
	w := os.Stdout
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelWarn,
			TimeFormat: time.RFC3339,
		}),
	))

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}

	window, err := cnfg.Analysis.GetWindow()
	if err != nil {
		fail(err)
	}
	settings := optimize.Settings{
		Efficiency: cnfg.Analysis.GetEfficiency(),
		Duration:   cnfg.Analysis.GetDuration(),
		Window:     window,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := tibber.New(cnfg.Tibber.ApiToken)
	homes, err := client.GetHomes(ctx)
	if err != nil {
		fail(err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	for _, home := range homes {
		series, err := client.GetPriceSeries(ctx, home.ID)
		if err != nil {
			fail(fmt.Errorf("fetching prices for %s: %w", home.Name, err))
		}

		fmt.Fprintf(w, "%s (%s)\n", home.Name, home.ID)
		if err := enc.Encode(optimize.NewReport(series, settings, time.Now())); err != nil {
			fail(err)
		}
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
