package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/switchboard-dev/switchboard"
	"github.com/switchboard-dev/switchboard/collab"
	"github.com/switchboard-dev/switchboard/internal/observability"
	"github.com/switchboard-dev/switchboard/invoker"
	"github.com/switchboard-dev/switchboard/pkg/history"
	obsmetrics "github.com/switchboard-dev/switchboard/pkg/observability"
)

var (
	// Version is set via ldflags.
	Version = "dev"

	configFile = flag.String("config", getEnv("CONFIG_FILE", "config/switchboard.yaml"), "Configuration file")
	httpPort   = flag.Int("http-port", getEnvInt("PORT", 8080), "Metrics/health server port")
	mode       = flag.String("mode", "select", "Operation mode: select or collab")
	query      = flag.String("query", "", "Query to dispatch (select mode) or prompt (collab mode)")
	agentsCSV  = flag.String("agents", "", "Comma-separated agent names for collab mode (default: all)")
	strategy   = flag.String("strategy", "voting", "Aggregation strategy: voting, ensemble, first-success, best-of-n")
	serve      = flag.Bool("serve", false, "Keep the metrics server running after the action completes")
)

func main() {
	flag.Parse()

	log.Printf("starting switchboard v%s (config=%s)", Version, *configFile)

	if err := run(); err != nil {
		log.Fatalf("switchboard: %v", err)
	}
}

func run() error {
	if err := observability.InitFromEnv(); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(ctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()
	obsmetrics.InitMetrics()

	loader := switchboard.NewConfigLoader(&switchboard.OSFileReader{})
	cfg, err := loader.LoadConfig(*configFile)
	if err != nil {
		return err
	}

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	inv, err := buildInvoker(cfg)
	if err != nil {
		return err
	}

	var opts []switchboard.DispatcherOption
	if store != nil {
		opts = append(opts, switchboard.WithHistory(store))
	}
	dispatcher, err := switchboard.NewDispatcher(cfg, inv, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checker := obsmetrics.NewHealthChecker()
	if rs, ok := store.(*history.RedisStore); ok {
		checker.Register("redis", true, rs.Ping)
	}
	server := obsmetrics.NewServer(serverPort(cfg), checker)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("metrics server listening on :%d", serverPort(cfg))
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		defer func() {
			if !*serve {
				stop()
			}
		}()
		return runAction(gctx, dispatcher)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runAction(ctx context.Context, d *switchboard.Dispatcher) error {
	if *query == "" {
		return fmt.Errorf("-query is required")
	}

	switch *mode {
	case "select":
		result, err := d.Dispatch(ctx, *query)
		if err != nil {
			return err
		}
		log.Printf("routed to %s (confidence=%.2f, fallback=%v)",
			result.AgentName, result.Confidence, result.UsedFallback)
		fmt.Println(result.Output)
		return nil

	case "collab":
		strat, err := strategyByName(*strategy)
		if err != nil {
			return err
		}
		names := d.Agents()
		if *agentsCSV != "" {
			names = splitCSV(*agentsCSV)
		}
		result, err := d.Collaborate(ctx, *query, names, strat, d.DefaultOptions())
		if err != nil {
			return err
		}
		log.Printf("strategy %s aggregated %d results (confidence=%.2f)",
			result.StrategyName, result.ResultCount, result.Confidence)
		fmt.Println(result.Output)
		return nil

	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}
}

func strategyByName(name string) (collab.Strategy, error) {
	switch name {
	case "voting":
		return collab.NewVoting(collab.WithFuzzyMatching(collab.DefaultFuzzyThreshold)), nil
	case "ensemble":
		return collab.NewEnsemble(nil), nil
	case "first-success":
		return collab.NewFirstSuccess(), nil
	case "best-of-n":
		// Without an external judge, prefer the longest answer.
		return collab.NewBestOfN(func(output string) float64 {
			return float64(len(output))
		}), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

func buildInvoker(cfg *switchboard.Config) (collab.AgentInvoker, error) {
	client, err := invoker.NewOpenAI(invoker.OpenAIConfig{
		DefaultModel: cfg.DefaultModel,
		Agents:       cfg.Profiles(),
	})
	if err != nil {
		return nil, err
	}
	limiter := invoker.NewRateLimiter(5, 10)
	return invoker.RateLimited(client.Invoker(), limiter), nil
}

func openHistory(cfg *switchboard.Config) (history.Store, error) {
	switch cfg.History.Backend {
	case "":
		return nil, nil
	case "memory":
		return history.NewMemoryStore(), nil
	case "redis":
		ttl, err := parseTTL(cfg.History.Redis.RecordTTL)
		if err != nil {
			return nil, err
		}
		return history.NewRedisStore(history.RedisConfig{
			Addr:      cfg.History.Redis.Addr,
			Password:  cfg.History.Redis.Password,
			DB:        cfg.History.Redis.DB,
			Prefix:    cfg.History.Redis.Prefix,
			RecordTTL: ttl,
		})
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.History.Backend)
	}
}

func parseTTL(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("history record_ttl: %w", err)
	}
	return d, nil
}

func serverPort(cfg *switchboard.Config) int {
	if cfg.Metrics.Port > 0 {
		return cfg.Metrics.Port
	}
	return *httpPort
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
