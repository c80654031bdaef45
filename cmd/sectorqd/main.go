// sectorqd is the gateway buffering daemon: it accepts sensor records
// into the tiered engine and drains them upstream.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/sectorq/internal/engine"
	"github.com/xtxerr/sectorq/internal/engine/types"
	sqerrors "github.com/xtxerr/sectorq/internal/errors"
	"github.com/xtxerr/sectorq/internal/loader"
	"github.com/xtxerr/sectorq/internal/logging"
	"github.com/xtxerr/sectorq/internal/metrics"
	"github.com/xtxerr/sectorq/internal/uploader"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfgPath := flag.String("config", "config.yaml", "config file path")
	spoolDir := flag.String("spool-dir", "", "spool directory (overrides config)")
	metricsListen := flag.String("metrics-listen", "", "metrics listen address (overrides config)")
	stepInterval := flag.Duration("step-interval", 0, "orchestrator tick (overrides config)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "log in JSON format")
	simulate := flag.Bool("simulate", false, "generate synthetic sensor load")
	flag.Parse()

	// Load config
	cfg, err := loader.Load(*cfgPath)
	if err != nil {
		if os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
			cfg = loader.DefaultConfig()
		} else {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI overrides
	if *spoolDir != "" {
		cfg.Engine.SpoolDir = *spoolDir
	}
	if *metricsListen != "" {
		cfg.Metrics.Listen = *metricsListen
	}
	if *stepInterval > 0 {
		cfg.StepInterval = *stepInterval
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logJSON {
		cfg.Log.JSON = true
	}

	logging.Init(parseLevel(cfg.Log.Level), cfg.Log.JSON)
	log := logging.Component("sectorqd")
	log.Info("starting", "version", Version, "spool_dir", cfg.Engine.SpoolDir)

	// =========================================================================
	// Metrics
	// =========================================================================

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// =========================================================================
	// Engine
	// =========================================================================

	eng, err := engine.New(cfg.Engine, engine.Options{Metrics: m})
	if err != nil {
		log.Error("create engine", "error", err)
		os.Exit(1)
	}

	if *simulate && len(cfg.Sensors) == 0 {
		cfg.Sensors = simulatedSensors()
	}
	if err := loader.Apply(cfg, eng); err != nil {
		log.Error("apply config", "error", err)
		os.Exit(1)
	}
	log.Info("sensors registered", "count", eng.Registry().Sensors())

	// =========================================================================
	// Run
	// =========================================================================

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Host loop: one orchestrator step per tick.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.StepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := eng.Step(); err != nil && !sqerrors.IsRetriable(err) {
					log.Warn("orchestrator step", "error", err)
				}
			}
		}
	})

	// Metrics endpoint.
	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(eng.Stats())
		})
		srv := &http.Server{
			Addr:    cfg.Metrics.Listen,
			Handler: mux,
		}
		g.Go(func() error {
			log.Info("metrics listening", "addr", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// Upstream drain.
	if cfg.Uploader.Enabled {
		sink := uploader.NewHTTPSink(cfg.Uploader.Endpoint, cfg.Uploader.Timeout)
		up := uploader.New(eng, sink, uploader.Options{
			Interval: cfg.Uploader.Interval,
			Batch:    cfg.Uploader.Batch,
		})
		g.Go(func() error {
			log.Info("uploader running", "endpoint", cfg.Uploader.Endpoint)
			if err := up.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	// Synthetic load for soak testing without real sensors.
	if *simulate {
		g.Go(func() error {
			runSimulation(ctx, eng, log)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("runtime error", "error", err)
	}

	eng.Close()
	st := eng.Stats()
	log.Info("stopped",
		"steps", st.Steps,
		"pool_in_use", st.Pool.InUse,
		"corruption_events", st.CorruptionEvents,
		"rejected_writes", st.RejectedWrites,
		"step_p99_ms", st.StepP99Ms)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// simulatedSensors is the inventory used under -simulate when the
// config declares none.
func simulatedSensors() []loader.SensorConfig {
	var sensors []loader.SensorConfig
	for _, src := range []string{"gateway", "hosted", "can"} {
		for i := 0; i < 4; i++ {
			sensors = append(sensors, loader.SensorConfig{
				Source: src,
				ID:     fmt.Sprintf("sim-%s-%02d", src, i),
				Kind:   "tsd",
			})
		}
		sensors = append(sensors, loader.SensorConfig{
			Source: src,
			ID:     fmt.Sprintf("sim-%s-evt", src),
			Kind:   "evt",
		})
	}
	return sensors
}

// runSimulation writes synthetic records into every registered sensor
// until the context is cancelled. Pool exhaustion is expected under
// load and simply slows the generator down.
func runSimulation(ctx context.Context, eng *engine.Engine, log *slog.Logger) {
	log.Info("simulation running")
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		eng.Registry().Each(func(cb *engine.ControlBlock) {
			var rec types.Record
			if cb.Kind() == types.KindEVT {
				rec = types.Event(0, uint32(rng.Intn(100)))
			} else {
				rec = types.Sample(0, rng.NormFloat64()*10+20)
			}
			if err := eng.Write(cb.Source(), cb.ID(), rec); err != nil {
				if !sqerrors.IsRetriable(err) {
					log.Warn("simulated write", "sensor", cb.ID(), "error", err)
				}
				return
			}
		})
	}
}
