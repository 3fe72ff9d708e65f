package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/arbor"
	httpAdapter "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/adapters/sqlite"
	"github.com/aretw0/arbor/pkg/observability"
)

// ServeOptions configures the HTTP server.
type ServeOptions struct {
	Options
	Addr string
	// RedisAddr moves the model store and edit locks to Redis.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Results is a SQLite DSN for PSA iterations.
	Results string
}

// shutdownTimeout bounds how long in-flight requests may take on exit.
const shutdownTimeout = 5 * time.Second

// Serve runs the HTTP API until ctx is done.
func Serve(ctx context.Context, opts ServeOptions) error {
	logger, err := createLogger(opts.LogLevel)
	if err != nil {
		return err
	}

	// 1. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		return err
	}

	extra := []arbor.Option{
		arbor.WithLifecycleHooks(metrics.Hooks()),
		arbor.WithWritableLibrary(),
	}
	httpOpts := []httpAdapter.Option{
		httpAdapter.WithLogger(logger),
		httpAdapter.WithVersion(arbor.Version),
		httpAdapter.WithGatherer(reg),
	}

	// 2. Storage
	if opts.RedisAddr != "" {
		store := redis.New(opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		defer store.Close()
		extra = append(extra,
			arbor.WithStore(store),
			arbor.WithLocker(redis.NewLocker(store.Client(), "arbor:")),
		)
		logger.Info("Using Redis model store", "address", opts.RedisAddr)
	}
	if opts.Results != "" {
		results, err := sqlite.Open(opts.Results)
		if err != nil {
			return err
		}
		defer results.Close()
		httpOpts = append(httpOpts, httpAdapter.WithResults(results))
	}

	eng, err := createEngine(opts.Options, logger, extra...)
	if err != nil {
		return err
	}
	if lib := eng.Library(); lib != nil {
		httpOpts = append(httpOpts, httpAdapter.WithLibrary(lib))
	}

	// 3. Serve
	api := httpAdapter.NewServer(eng, eng.Workspace(), httpOpts...)
	defer api.Close()

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting Arbor Server", "address", srv.Addr, "dir", opts.Dir)
		printSystemMessage(opts.out(), "Serving %s on %s", opts.Dir, srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownTimeout, err)
		}
		printSystemMessage(opts.out(), "Arbor Server stopped gracefully")
		return nil
	})
	return g.Wait()
}
