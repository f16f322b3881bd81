// Command feedcheck parses a saved feed payload and prints the extracted
// alert records, for inspecting parser and extractor behavior against real
// captures without running the service.
//
// Usage:
//
//	go run ./cmd/feedcheck -feed cfa-pager -file capture.html
//	go run ./cmd/feedcheck -feed vic-incidents -file incidents.rss -json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jonboulle/clockwork"

	"github.com/emberwatch/alert-feed-service/internal/domain"
	"github.com/emberwatch/alert-feed-service/internal/feed"
	"github.com/emberwatch/alert-feed-service/internal/observability"
)

func main() {
	feedKey := flag.String("feed", feed.KeyPager, "feed dialect to parse: cfa-pager, vic-incidents, nsw-incidents")
	file := flag.String("file", "", "path to a saved feed payload")
	asJSON := flag.Bool("json", false, "print records as JSON instead of a table")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*feedKey, *file, *asJSON); code != 0 {
		os.Exit(code)
	}
}

func run(feedKey, file string, asJSON bool) int {
	payload, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read payload: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewRealClock()

	var parser feed.Parser
	switch feedKey {
	case feed.KeyPager:
		parser = feed.NewPagerParser(clock, metrics, logger)
	case feed.KeyVic:
		parser = feed.NewVicParser(clock, metrics, logger)
	case feed.KeyNsw:
		parser = feed.NewNswParser(clock, metrics, logger)
	default:
		fmt.Fprintf(os.Stderr, "FATAL: unknown feed %q\n", feedKey)
		return 1
	}

	records, err := parser.Parse(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse: %v\n", err)
		return 1
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: encode: %v\n", err)
			return 1
		}
		return 0
	}

	located := 0
	for i, rec := range records {
		loc := rec.Location
		if loc == "" {
			loc = "-"
		} else {
			located++
		}
		geo := "-"
		if rec.Geo != nil {
			geo = fmt.Sprintf("%.4f,%.4f", rec.Geo.Lat, rec.Geo.Lon)
		}
		fmt.Printf("[%3d] %-12s %-20s %-30s %s\n", i, rec.IncidentID, geo, loc, rec.Message)
	}

	fmt.Printf("\n%d records, %d with a location, %d with coordinates\n",
		len(records), located, countGeo(records))
	return 0
}

func countGeo(records []domain.AlertRecord) int {
	n := 0
	for _, rec := range records {
		if rec.Geo != nil {
			n++
		}
	}
	return n
}
