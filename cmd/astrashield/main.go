package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/astra/astrashield/internal/alerts"
	"github.com/astra/astrashield/internal/collision"
	"github.com/astra/astrashield/internal/conjunction"
	"github.com/astra/astrashield/internal/elements"
	"github.com/astra/astrashield/internal/health"
	"github.com/astra/astrashield/internal/reentry"
	"github.com/astra/astrashield/internal/risk"
	"github.com/astra/astrashield/internal/store"
)

func main() {
	// Optional .env for local development; the environment wins.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("ASTRA_HTTP_ADDR")
	if addr == "" {
		addr = ":9090"
	}

	st, err := openStore(logger)
	if err != nil {
		logger.Error("store initialization failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	elemCfg := loadElementsConfig(logger)
	cache := elements.NewCache(elemCfg.CacheDir, elemCfg.MaxFiles)
	fetcher := elements.NewFetcher(elemCfg.SourceURL, logger, elemCfg.ExtraURLs...)

	// Seed the catalog from the freshest cache file before touching the
	// network.
	if data, ts, err := cache.LoadLatest(); err != nil {
		logger.Info("no element-set cache found", "error", err)
	} else if objs, err := elements.Parse(bytes.NewReader(data), logger); err != nil {
		logger.Warn("cached element sets unreadable", "error", err)
	} else if len(objs) > 0 {
		if err := st.BulkUpsertObjects(context.Background(), objs); err != nil {
			logger.Warn("seeding catalog from cache failed", "error", err)
		} else {
			logger.Info("catalog seeded from cache", "objects", len(objs), "cached_at", ts.Format(time.RFC3339))
		}
	}

	publisher, embedded := startAlerts(logger)
	if publisher != nil {
		defer publisher.Close()
	}
	if embedded != nil {
		defer embedded.Shutdown()
	}

	detCfg := loadDetectionConfig(logger)
	engine := conjunction.NewEngine(st, detCfg.Config, logger)
	scorer := risk.NewScorer(st, detCfg.Config.MaxObjects, logger)
	predictor := reentry.NewPredictor(st, loadReentryConfig(logger), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catalog refresh loop.
	if elemCfg.EnableFetch {
		go func() {
			refresh := func() {
				fetchCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
				defer cancel()
				data, err := fetcher.Fetch(fetchCtx)
				if err != nil {
					logger.Warn("element-set fetch failed", "error", err)
					return
				}
				if err := cache.Write(data, time.Now().UTC()); err != nil {
					logger.Warn("element-set cache write failed", "error", err)
				}
				objs, err := elements.Parse(bytes.NewReader(data), logger)
				if err != nil || len(objs) == 0 {
					logger.Warn("fetched element sets unreadable", "error", err)
					return
				}
				if err := st.BulkUpsertObjects(ctx, objs); err != nil {
					logger.Error("catalog refresh failed", "error", err)
					return
				}
				logger.Info("catalog refreshed", "objects", len(objs), "source", fetcher.SourceURL())
			}

			refresh()
			ticker := time.NewTicker(elemCfg.RefreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					refresh()
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Detection pipeline loop: detect, score, predict, alert.
	go func() {
		pass := func() {
			now := time.Now().UTC()

			recs, err := engine.Run(ctx, now)
			if err != nil && !errors.Is(err, conjunction.ErrRunInProgress) {
				logger.Error("detection run failed", "error", err)
			}
			if publisher != nil && len(recs) > 0 {
				publisher.PublishConjunctions(recs, now)
			}

			if _, err := scorer.Score(ctx, now); err != nil {
				logger.Error("risk scoring failed", "error", err)
			}

			preds, err := predictor.Scan(ctx, now)
			if err != nil {
				logger.Error("reentry scan failed", "error", err)
			}
			if publisher != nil && len(preds) > 0 {
				publisher.PublishReentries(preds, now)
			}
		}

		pass()
		ticker := time.NewTicker(detCfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				pass()
			case <-ctx.Done():
				return
			}
		}
	}()

	srv := &http.Server{
		Addr:              addr,
		Handler:           health.Handler(st),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting ops server", "addr", addr, "fetch_enabled", elemCfg.EnableFetch)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", "error", err)
	}
	logger.Info("stopped")
}

func openStore(logger *slog.Logger) (store.Store, error) {
	backend := os.Getenv("ASTRA_STORE")
	if backend == "memory" {
		logger.Info("using in-memory store")
		return store.NewMemory(), nil
	}

	path := os.Getenv("ASTRA_DB_PATH")
	if path == "" {
		path = "./data/astrashield.db"
	}
	logger.Info("using sqlite store", "path", path)
	return store.OpenSQLite(path)
}

type elementsConfig struct {
	SourceURL       string
	ExtraURLs       []string
	CacheDir        string
	MaxFiles        int
	EnableFetch     bool
	RefreshInterval time.Duration
}

func loadElementsConfig(logger *slog.Logger) elementsConfig {
	cfg := elementsConfig{
		SourceURL:       os.Getenv("ASTRA_ELEMENTS_URL"),
		CacheDir:        "/tmp/astrashield/elements",
		MaxFiles:        5,
		EnableFetch:     true,
		RefreshInterval: 6 * time.Hour,
	}

	if v := os.Getenv("ASTRA_ELEMENTS_EXTRA_URLS"); v != "" {
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.ExtraURLs = append(cfg.ExtraURLs, u)
			}
		}
	}

	if v := os.Getenv("ASTRA_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("ASTRA_CACHE_MAX_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ASTRA_CACHE_MAX_FILES value, using default", "value", v, "default", cfg.MaxFiles)
		} else {
			cfg.MaxFiles = n
		}
	}
	if v := os.Getenv("ASTRA_FETCH_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid ASTRA_FETCH_ENABLED value, using default", "value", v, "default", cfg.EnableFetch)
		} else {
			cfg.EnableFetch = b
		}
	}
	if v := os.Getenv("ASTRA_REFRESH_INTERVAL_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ASTRA_REFRESH_INTERVAL_MIN value, using default", "value", v, "default", 360)
		} else {
			cfg.RefreshInterval = time.Duration(n) * time.Minute
		}
	}

	logger.Info("elements config",
		"extra_sources", len(cfg.ExtraURLs),
		"cache_dir", cfg.CacheDir,
		"max_files", cfg.MaxFiles,
		"fetch_enabled", cfg.EnableFetch,
		"refresh_interval_min", cfg.RefreshInterval.Minutes(),
	)
	return cfg
}

type detectionConfig struct {
	Config   conjunction.Config
	Interval time.Duration
}

func loadDetectionConfig(logger *slog.Logger) detectionConfig {
	cfg := detectionConfig{
		Config: conjunction.Config{
			Workers: runtime.NumCPU(),
			Pc:      collision.Options{},
		},
		Interval: time.Hour,
	}

	if v := os.Getenv("ASTRA_MAX_OBJECTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 2 {
			logger.Warn("invalid ASTRA_MAX_OBJECTS value, using default", "value", v, "default", conjunction.DefaultMaxObjects)
		} else {
			cfg.Config.MaxObjects = n
		}
	}
	if v := os.Getenv("ASTRA_FORECAST_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ASTRA_FORECAST_HOURS value, using default", "value", v, "default", conjunction.DefaultForecastHours)
		} else {
			cfg.Config.ForecastHours = n
		}
	}
	if v := os.Getenv("ASTRA_SAMPLE_INTERVAL_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ASTRA_SAMPLE_INTERVAL_MIN value, using default", "value", v, "default", conjunction.DefaultSampleIntervalMin)
		} else {
			cfg.Config.SampleIntervalMin = n
		}
	}
	if v := os.Getenv("ASTRA_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ASTRA_WORKERS value, using default", "value", v, "default", cfg.Config.Workers)
		} else {
			cfg.Config.Workers = n
		}
	}
	if v := os.Getenv("ASTRA_DETECTION_INTERVAL_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ASTRA_DETECTION_INTERVAL_MIN value, using default", "value", v, "default", 60)
		} else {
			cfg.Interval = time.Duration(n) * time.Minute
		}
	}

	logger.Info("detection config",
		"workers", cfg.Config.Workers,
		"interval_min", cfg.Interval.Minutes(),
	)
	return cfg
}

func loadReentryConfig(logger *slog.Logger) reentry.Config {
	cfg := reentry.Config{}

	if v := os.Getenv("ASTRA_REENTRY_HORIZON_DAYS"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n <= 0 {
			logger.Warn("invalid ASTRA_REENTRY_HORIZON_DAYS value, using default", "value", v, "default", reentry.DefaultHorizonDays)
		} else {
			cfg.HorizonDays = n
		}
	}
	if v := os.Getenv("ASTRA_SOLAR_ACTIVITY"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n < 0 || n > 1 {
			logger.Warn("invalid ASTRA_SOLAR_ACTIVITY value, using default", "value", v)
		} else {
			cfg.SolarActivity = n
		}
	}
	return cfg
}

// startAlerts wires the NATS publisher, optionally booting an embedded
// broker first. Alerting failures never prevent startup.
func startAlerts(logger *slog.Logger) (*alerts.Publisher, *alerts.EmbeddedServer) {
	if v := os.Getenv("ASTRA_ALERTS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && !b {
			logger.Info("alerts disabled")
			return nil, nil
		}
	}

	url := os.Getenv("ASTRA_NATS_URL")
	var embedded *alerts.EmbeddedServer
	if url == "" {
		srvCfg := alerts.DefaultServerConfig()
		if v := os.Getenv("ASTRA_NATS_PORT"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				srvCfg.Port = n
			}
		}
		if v := os.Getenv("ASTRA_NATS_DATA_DIR"); v != "" {
			srvCfg.DataDir = v
		}

		var err error
		embedded, err = alerts.StartEmbeddedServer(srvCfg, logger)
		if err != nil {
			logger.Warn("embedded nats unavailable, alerts disabled", "error", err)
			return nil, nil
		}
		url = embedded.ClientURL()
	}

	publisher, err := alerts.Connect(url, logger)
	if err != nil {
		logger.Warn("nats unavailable, alerts disabled", "url", url, "error", err)
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, nil
	}
	logger.Info("alert publisher connected", "url", url)
	return publisher, embedded
}
