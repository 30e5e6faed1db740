package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oppnet/driftroute/pkg/sim"
	"github.com/oppnet/driftroute/pkg/trace"
)

func main() {
	configPath := flag.String("config", "", "Path to a yaml options file (defaults are used when empty)")
	tracePath := flag.String("trace", "", "Path to a contact trace; replaces the synthetic contact model")
	duration := flag.Float64("duration", 0, "Override simulated duration in seconds")
	seed := flag.Int64("seed", 0, "Override the RNG seed")
	eventLog := flag.String("event-log", "", "Write routing events as JSONL to this path")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")

	flag.Parse()

	opts := sim.DefaultOptions()
	if *configPath != "" {
		loaded, err := sim.LoadOptions(*configPath)
		if err != nil {
			log.Fatalf("loading options: %v", err)
		}
		opts = loaded
	}
	if *duration > 0 {
		opts.Duration = *duration
	}
	if *seed != 0 {
		opts.Seed = *seed
	}
	if *eventLog != "" {
		opts.EventLogPath = *eventLog
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Fatal(http.ListenAndServe(*metricsAddr, mux))
		}()
	}

	s, err := sim.New(opts)
	if err != nil {
		log.Fatalf("building simulator: %v", err)
	}
	if *tracePath != "" {
		events, err := trace.Load(*tracePath)
		if err != nil {
			log.Fatalf("loading trace: %v", err)
		}
		if err := s.UseTrace(events); err != nil {
			log.Fatalf("applying trace: %v", err)
		}
	}

	report, err := s.Run()
	if err != nil {
		log.Fatalf("simulation failed: %v", err)
	}
	fmt.Print(report.String())
}
