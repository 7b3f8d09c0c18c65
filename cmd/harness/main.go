package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"collection-agent-go/internal/aggregator"
	"collection-agent-go/internal/config"
	"collection-agent-go/internal/harness"
	"collection-agent-go/internal/llm"
	"collection-agent-go/internal/logger"
	"collection-agent-go/internal/report"
	"collection-agent-go/internal/types"
)

func main() {
	_ = godotenv.Load() // loads .env

	var (
		configPath  = flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "path to the YAML configuration")
		clientID    = flag.String("client", "", "run a single client (default: all)")
		iterations  = flag.Int("iterations", 1, "runs per scenario per client")
		concurrency = flag.Int("concurrency", 1, "parallel scenario runs")
		verbose     = flag.Bool("verbose", false, "debug logging")
		output      = flag.String("output", "test_report.md", "markdown report path")
	)
	flag.Parse()

	if *verbose {
		os.Setenv("LOG_LEVEL", "debug")
	}
	log := logger.New()
	log.WithField("service", "collection-agent-go").Info("starting harness")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	clients := cfg.ClientIDs()
	if *clientID != "" {
		if _, err := cfg.Profile(*clientID); err != nil {
			log.WithError(err).Fatal("unknown client")
		}
		clients = []string{*clientID}
	}

	catalog := cfg.Scenarios
	if len(catalog) == 0 {
		catalog = harness.DefaultCatalog()
	}

	h := harness.New(cfg, generatorFactory(log))
	if err := h.Preflight(catalog); err != nil {
		log.WithError(err).Fatal("preflight failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	results, err := h.Run(ctx, catalog, clients, harness.Options{
		Iterations:  *iterations,
		Concurrency: *concurrency,
	})
	if err != nil {
		log.WithError(err).Fatal("test run failed")
	}
	log.WithField("duration_ms", time.Since(start).Milliseconds()).
		WithField("results", len(results)).
		Info("test run finished")

	rep := aggregator.Aggregate(results)
	printSummary(rep)

	if err := report.WriteMarkdown(*output, rep, results); err != nil {
		log.WithError(err).Error("failed to write markdown report")
	}
	workbookPath := strings.TrimSuffix(*output, ".md") + ".xlsx"
	if err := report.WriteWorkbook(workbookPath, rep, results); err != nil {
		log.WithError(err).Error("failed to write workbook")
	}

	if rep.Total == 0 || rep.Passed < rep.Total {
		os.Exit(1)
	}
}

// generatorFactory picks the backend: the deterministic mock when
// USE_MOCK_LLM=true, otherwise the configured gateway shared by all
// clients.
func generatorFactory(log *logger.Logger) harness.GeneratorFactory {
	if os.Getenv("USE_MOCK_LLM") == "true" {
		log.Info("mock LLM mode ON - responses are deterministic")
		return func(p types.ClientProfile) llm.Generator {
			return &llm.Mock{Profile: p}
		}
	}
	gw, err := llm.NewGatewayFromEnv()
	if err != nil {
		log.WithError(err).Fatal("llm gateway not configured (set LLM_GATEWAY_URL and LLM_API_KEY, or USE_MOCK_LLM=true)")
	}
	return func(types.ClientProfile) llm.Generator { return gw }
}

func printSummary(rep types.AggregateReport) {
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("TEST RESULTS")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Total Tests: %d\n", rep.Total)
	fmt.Printf("Passed: %d\n", rep.Passed)
	fmt.Printf("Success Rate: %.1f%%\n", rep.SuccessRate*100)
	fmt.Printf("Hand-off Rate: %.1f%%\n", rep.HandoffRate*100)
	fmt.Printf("Avg Response Time: %.2fs\n", rep.AvgResponseTime.Seconds())
	fmt.Printf("P95 Response Time: %.2fs\n", rep.P95ResponseTime.Seconds())
	fmt.Println(strings.Repeat("=", 70))
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
