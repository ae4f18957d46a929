package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rohmanhakim/crawlkit/internal/budget"
	"github.com/rohmanhakim/crawlkit/internal/config"
	"github.com/rohmanhakim/crawlkit/internal/distributed"
	"github.com/rohmanhakim/crawlkit/internal/fetcher"
	"github.com/rohmanhakim/crawlkit/internal/metadata"
	"github.com/rohmanhakim/crawlkit/internal/robots"
	"github.com/rohmanhakim/crawlkit/internal/robots/cache"
	"github.com/rohmanhakim/crawlkit/internal/storage"
	"github.com/rohmanhakim/crawlkit/pkg/hashutil"
	"github.com/rohmanhakim/crawlkit/pkg/limiter"
	"github.com/rohmanhakim/crawlkit/pkg/retry"
)

var redisAddr string

// coordinatorCmd runs the single control-plane process of a distributed
// crawl: it owns the global visited set and budget and feeds the tasks
// topic.
var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Run the distributed-crawl coordinator.",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runCoordinator())
	},
}

// workerCmd runs one stateless fetch worker consuming the tasks topic.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a distributed-crawl worker.",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runWorker())
	},
}

func distributedConfig() (config.Config, error) {
	cfg, err := buildConfig()
	if err != nil {
		return config.Config{}, err
	}
	cfg = cfg.WithDistributed(redisAddr)
	if validationErr := cfg.Validate(); validationErr != nil {
		return config.Config{}, validationErr
	}
	return cfg, nil
}

func runCoordinator() int {
	cfg, err := distributedConfig()
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
	recorder := metadata.NewRecorder(logger, "coordinator")

	broker := distributed.NewRedisBroker(cfg.RedisAddr(), cfg.TasksTopic(), cfg.ResultsTopic(), cfg.VisibilityTimeout())
	defer broker.Close()
	visited := distributed.NewRedisVisitedSet(
		redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()}),
		cfg.TasksTopic()+":visited",
	)

	tracker := budget.NewTracker(budget.Caps{
		MaxPages:     cfg.MaxPages(),
		MaxBytes:     cfg.MaxBytes(),
		MaxWallClock: cfg.MaxWallClock(),
	})

	coordinator := distributed.NewCoordinator(cfg, broker, visited, tracker, &recorder)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := coordinator.Run(ctx)
	printSummary(summary)
	if runErr != nil {
		if ctx.Err() != nil {
			return exitCancelled
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return exitConfigError
	}
	if summary.BudgetExceeded && summary.PagesCrawled == 0 {
		return exitBudgetNoFetch
	}
	return exitOK
}

func runWorker() int {
	cfg, err := distributedConfig()
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
	recorder := metadata.NewRecorder(logger, "worker")

	broker := distributed.NewRedisBroker(cfg.RedisAddr(), cfg.TasksTopic(), cfg.ResultsTopic(), cfg.VisibilityTimeout())
	defer broker.Close()

	rateLimiter := limiter.NewConcurrentRateLimiter()
	rateLimiter.SetBaseDelay(cfg.BaseDelay())

	var reporter fetcher.OutcomeReporter
	if cfg.Adaptive() {
		reporter = rateLimiter
	}
	httpFetcher := fetcher.NewHttpFetcher(&recorder, reporter, fetcher.Options{
		Timeout:          cfg.Timeout(),
		VerifyTLS:        cfg.VerifyTls(),
		Proxy:            cfg.Proxy(),
		MaxResponseBytes: cfg.MaxResponseBytes(),
		AllowRedirects:   true,
		MaxRedirects:     10,
	})

	sink, sinkErr := storage.NewJSONLSink(&recorder, cfg.OutputDir(), hashutil.HashAlgoSHA256)
	if sinkErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", sinkErr)
		return exitConfigError
	}
	defer sink.Close()

	seed := cfg.RandomSeed()
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	robot := robots.NewCachedRegistry(&recorder, cache.NewMemoryCache(), cfg.Timeout())
	robot.Init(cfg.UserAgent())

	worker := distributed.NewWorker(distributed.WorkerDeps{
		Broker:        broker,
		Robot:         robot,
		RateLimiter:   rateLimiter,
		Fetcher:       &httpFetcher,
		MetadataSink:  &recorder,
		Emitter:       sink,
		RetryParam:    retry.NewRetryParam(1+cfg.MaxRetries(), 32, 120*time.Second, seed),
		UserAgent:     cfg.UserAgent(),
		RespectRobots: cfg.RespectRobots(),
		Concurrency:   cfg.MaxConcurrentRequests(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker.Run(ctx)
	if ctx.Err() != nil {
		return exitCancelled
	}
	return exitOK
}

func init() {
	for _, cmd := range []*cobra.Command{coordinatorCmd, workerCmd} {
		cmd.Flags().StringVar(&redisAddr, "redis-addr", "localhost:6379", "redis address for the task broker")
		rootCmd.AddCommand(cmd)
	}
}
