package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rohmanhakim/crawlkit/internal/artifact"
	"github.com/rohmanhakim/crawlkit/internal/build"
	"github.com/rohmanhakim/crawlkit/internal/config"
	"github.com/rohmanhakim/crawlkit/internal/metadata"
	"github.com/rohmanhakim/crawlkit/internal/metrics"
	"github.com/rohmanhakim/crawlkit/internal/scheduler"
	"github.com/rohmanhakim/crawlkit/internal/storage"
	"github.com/rohmanhakim/crawlkit/pkg/hashutil"
)

// Exit codes: 0 normal, 1 configuration error, 2 cancelled, 3 budget
// exceeded with no pages fetched.
const (
	exitOK            = 0
	exitConfigError   = 1
	exitCancelled     = 2
	exitBudgetNoFetch = 3
)

var (
	cfgFile          string
	startURL         string
	maxDepth         int
	workers          int
	sameHostOnly     bool
	samePathOnly     bool
	respectRobots    bool
	seedFromSitemaps bool
	maxQueueSize     int
	outputDir        string
	userAgent        string
	maxRetries       int
	timeout          time.Duration
	verifyTls        bool
	proxyURL         string
	maxResponseBytes int64
	randomSeed       int64
	baseDelay        time.Duration
	adaptive         bool
	maxPages         int64
	maxBytes         int64
	maxWallClock     time.Duration
	strategyName     string
	incrementalDb    string
	incrementalAge   time.Duration
	forceRecrawl     bool
	hashStoreDb      string
	convertMarkdown  bool
	metricsAddr      string
	verbose          bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "crawlkit",
	Short: "A polite, concurrent web-crawling engine.",
	Long: `crawlkit crawls a site from a seed URL with per-host pacing,
robots.txt compliance, conditional re-crawling, and cross-run content
deduplication, emitting one JSON artifact per fetched page.

The crawl respects server policy by default: robots.txt rules and
Crawl-Delay declarations are honored, and per-host delays grow under
429/5xx pressure and decay on sustained success.`,
	Version: build.FullVersion(),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runCrawl())
	},
}

func runCrawl() int {
	// .env values are loaded into the process environment; absence is not
	// an error. Flags and config are not read from the environment.
	_ = godotenv.Load()

	cfg, err := buildConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitConfigError
	}

	logger, logErr := buildLogger()
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", logErr)
		return exitConfigError
	}
	defer logger.Sync()

	recorder := metadata.NewRecorder(logger, "sink")
	sink, sinkErr := storage.NewJSONLSink(&recorder, cfg.OutputDir(), hashutil.HashAlgoSHA256)
	if sinkErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", sinkErr)
		return exitConfigError
	}
	defer sink.Close()

	engine, engineErr := scheduler.NewScheduler(cfg, logger, sink)
	if engineErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", engineErr)
		return exitConfigError
	}

	if metricsAddr != "" {
		stopMetrics, metricsErr := serveMetrics(engine, metricsAddr)
		if metricsErr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", metricsErr)
			return exitConfigError
		}
		defer stopMetrics()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	execution, runErr := engine.ExecuteCrawling(ctx)
	printSummary(execution.Summary)

	if runErr != nil {
		var schedErr *scheduler.SchedulerError
		if errors.As(runErr, &schedErr) {
			switch schedErr.Cause {
			case scheduler.ErrCauseCancelled:
				return exitCancelled
			case scheduler.ErrCauseBudgetExhausted:
				if execution.Summary.PagesCrawled == 0 {
					return exitBudgetNoFetch
				}
				return exitOK
			}
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return exitConfigError
	}
	return exitOK
}

func buildConfig() (config.Config, error) {
	if cfgFile != "" {
		cfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return config.Config{}, err
		}
		return cfg, nil
	}

	if startURL == "" {
		return config.Config{}, fmt.Errorf("--start-url is required when no config file is given")
	}
	seed, err := url.Parse(startURL)
	if err != nil {
		return config.Config{}, fmt.Errorf("parse --start-url: %w", err)
	}

	cfg := config.Default(*seed).
		WithMaxDepth(maxDepth).
		WithScope(sameHostOnly, samePathOnly).
		WithRespectRobots(respectRobots).
		WithSeedFromSitemaps(seedFromSitemaps).
		WithMaxQueueSize(maxQueueSize).
		WithWorkers(workers).
		WithMaxRetries(maxRetries).
		WithVerifyTls(verifyTls).
		WithMaxResponseBytes(maxResponseBytes).
		WithRandomSeed(randomSeed).
		WithBaseDelay(baseDelay).
		WithAdaptive(adaptive).
		WithBudget(maxPages, maxBytes, maxWallClock).
		WithStrategy(strategyName, nil).
		WithIncrementalStore(incrementalDb, incrementalAge, forceRecrawl).
		WithHashStore(hashStoreDb).
		WithOutputDir(outputDir).
		WithConvertMarkdown(convertMarkdown)

	if userAgent != "" {
		cfg = cfg.WithUserAgent(userAgent)
	}
	if timeout > 0 {
		cfg = cfg.WithTimeout(timeout)
	}
	if proxyURL != "" {
		proxy, proxyErr := url.Parse(proxyURL)
		if proxyErr != nil {
			return config.Config{}, fmt.Errorf("parse --proxy: %w", proxyErr)
		}
		cfg = cfg.WithProxy(proxy)
	}

	if validationErr := cfg.Validate(); validationErr != nil {
		return config.Config{}, validationErr
	}
	return cfg, nil
}

// serveMetrics registers the engine's counters on a fresh registry and
// exposes them on addr under /metrics. The returned function shuts the
// listener down.
func serveMetrics(engine *scheduler.Scheduler, addr string) (func(), error) {
	registry := prometheus.NewRegistry()
	engine.WithMetrics(metrics.New(registry))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	listenErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()
	// Give a bad address a moment to fail before the crawl starts.
	select {
	case err := <-listenErr:
		return nil, fmt.Errorf("metrics listener on %s: %w", addr, err)
	case <-time.After(100 * time.Millisecond):
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}, nil
}

func buildLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func printSummary(summary artifact.Summary) {
	fmt.Printf("Pages crawled:   %d\n", summary.PagesCrawled)
	fmt.Printf("Bytes fetched:   %d\n", summary.BytesFetched)
	fmt.Printf("Robots skips:    %d\n", summary.SkippedByRobots)
	fmt.Printf("Scope skips:     %d\n", summary.SkippedByScope)
	if summary.SkippedQueueFull > 0 {
		fmt.Printf("Queue-full skips: %d\n", summary.SkippedQueueFull)
	}
	for kind, count := range summary.ErrorsByKind {
		fmt.Printf("Errors (%s): %d\n", kind, count)
	}
	if summary.BudgetExceeded {
		fmt.Println("Budget exceeded: crawl stopped early")
	}
	fmt.Printf("Duration:        %.2fs\n", summary.DurationSeconds)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitConfigError)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config-file", "", "config file path (.json or .yaml)")
	flags.StringVar(&startURL, "start-url", "", "seed URL to crawl from")
	flags.IntVar(&maxDepth, "max-depth", 3, "maximum link depth from the seed URL")
	flags.IntVar(&workers, "workers", 1, "number of concurrent crawl workers")
	flags.BoolVar(&sameHostOnly, "same-host-only", true, "restrict crawling to the seed host")
	flags.BoolVar(&samePathOnly, "same-path-only", false, "restrict crawling to the seed path prefix")
	flags.BoolVar(&respectRobots, "respect-robots", true, "honor robots.txt rules")
	flags.BoolVar(&seedFromSitemaps, "seed-from-sitemaps", false, "seed the frontier from robots.txt sitemaps")
	flags.IntVar(&maxQueueSize, "max-queue-size", 0, "bound on queued URLs (0 for unbounded)")
	flags.StringVar(&outputDir, "output-dir", "./crawl-output", "root output directory for artifacts")
	flags.StringVar(&userAgent, "user-agent", "", "user agent string for HTTP requests")
	flags.IntVar(&maxRetries, "max-retries", 3, "retries after a failed fetch attempt")
	flags.DurationVar(&timeout, "timeout", 0, "timeout for a single HTTP attempt")
	flags.BoolVar(&verifyTls, "verify-tls", true, "verify TLS certificates")
	flags.StringVar(&proxyURL, "proxy", "", "proxy URL for outbound requests")
	flags.Int64Var(&maxResponseBytes, "max-response-bytes", 0, "reject bodies larger than this (0 for unlimited)")
	flags.Int64Var(&randomSeed, "random-seed", 0, "seed for retry jitter (0 for current time)")
	flags.DurationVar(&baseDelay, "base-delay", 100*time.Millisecond, "minimum delay between requests to one host")
	flags.BoolVar(&adaptive, "adaptive", true, "grow per-host delay under 429/5xx pressure")
	flags.Int64Var(&maxPages, "max-pages", 0, "page budget (0 for unlimited)")
	flags.Int64Var(&maxBytes, "max-bytes", 0, "byte budget (0 for unlimited)")
	flags.DurationVar(&maxWallClock, "max-wall-clock", 0, "wall-clock budget (0 for unlimited)")
	flags.StringVar(&strategyName, "strategy", "bfs", "frontier strategy: bfs, dfs, sitemap, pattern, composite")
	flags.StringVar(&incrementalDb, "incremental-db", "", "SQLite path for incremental crawl state")
	flags.DurationVar(&incrementalAge, "incremental-max-age", 0, "re-crawl pages older than this")
	flags.BoolVar(&forceRecrawl, "force", false, "ignore incremental state and re-crawl everything")
	flags.StringVar(&hashStoreDb, "hash-store-db", "", "SQLite path for the cross-run content hash ledger")
	flags.BoolVar(&convertMarkdown, "markdown", false, "convert HTML artifacts to markdown files")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address (e.g. :9090)")
	flags.BoolVar(&verbose, "verbose", false, "verbose, development-style logging")
}
