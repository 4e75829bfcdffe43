package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tturner/brushrig/internal/bridge"
	"github.com/tturner/brushrig/internal/config"
	"github.com/tturner/brushrig/internal/logging"
	"github.com/tturner/brushrig/internal/metrics"
	"github.com/tturner/brushrig/internal/presets"
	"github.com/tturner/brushrig/internal/rigconn"
	"github.com/tturner/brushrig/internal/telemetry"
)

// RuntimeOptions selects the config file and per-command overrides.
type RuntimeOptions struct {
	ConfigPath     string
	ConfigRequired bool
	URL            string
	StorePath      string
	LogLevel       string
	LogFile        string
	// Console sends log output to the terminal. The TUI turns it off.
	Console bool
}

// Runtime is everything a command needs to talk to the rig.
type Runtime struct {
	Config  *config.Config
	Logger  *logging.Logger
	Manager *rigconn.Manager
	Store   *presets.Store
	Sink    *metrics.Sink

	writer     *metrics.Writer
	metricsSrv *http.Server
	bridge     *bridge.Bridge
}

// NewRuntime loads the config and builds the logger, store, connection
// manager and the optional metrics endpoint, message log and MQTT mirror.
// The manager is not connected yet.
func NewRuntime(opts RuntimeOptions) (*Runtime, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLoggerWithOptions(logging.Options{
		Level:   level,
		File:    cfg.Logging.File,
		Format:  cfg.Logging.Format,
		Console: opts.Console,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	rt := &Runtime{
		Config: cfg,
		Logger: logger,
		Store:  presets.NewStore(cfg.Store.Path, logger),
		Sink:   metrics.NewSink(),
	}

	if cfg.Metrics.MessageLog != "" || cfg.Metrics.MessageJSON != "" {
		w, err := metrics.NewWriter(cfg.Metrics.MessageLog, cfg.Metrics.MessageJSON)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open message log: %w", err)
		}
		rt.writer = w
		rt.Sink.AttachWriter(w)
	}

	collector := telemetry.Noop()
	if cfg.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		pc, err := telemetry.NewPrometheusCollector(reg)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		if err := rt.serveMetrics(cfg.Metrics.Listen, reg); err != nil {
			rt.Close()
			return nil, err
		}
		collector = pc
	}

	rt.Manager = rigconn.New(rigconn.Options{
		URL:                  cfg.Device.URL,
		ReconnectDelay:       cfg.ReconnectDelay(),
		MaxReconnectAttempts: cfg.Reconnect.MaxAttempts,
		DialTimeout:          cfg.DialTimeout(),
		WriteTimeout:         cfg.WriteTimeout(),
		Telemetry:            collector,
		Metrics:              rt.Sink,
	}, logger)

	if cfg.MQTT.Enabled {
		b, err := bridge.Connect(cfg.MQTT, cfg.Device.URL, logger)
		if err != nil {
			// The mirror is optional; the panel works without it.
			logger.Error("MQTT mirror disabled: %v", err)
		} else {
			rt.bridge = b
			b.Attach(rt.Manager)
		}
	}

	logger.LogStartup(cfg.Device.URL, cfg.Panel.Rows, cfg.Store.Path, opts.ConfigPath)
	return rt, nil
}

// LoadConfig reads the config file and applies command-line overrides.
func LoadConfig(opts RuntimeOptions) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path, opts.ConfigRequired)
	if err != nil {
		return nil, err
	}
	if opts.URL != "" {
		cfg.Device.URL = opts.URL
	}
	if opts.StorePath != "" {
		cfg.Store.Path = opts.StorePath
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.LogFile != "" {
		cfg.Logging.File = opts.LogFile
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, nil
}

func (rt *Runtime) serveMetrics(addr string, reg *prometheus.Registry) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(reg))
	rt.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := rt.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.Logger.Error("metrics server: %v", err)
		}
	}()
	rt.Logger.Info("metrics listening on http://%s/metrics", ln.Addr())
	return nil
}

// Close releases everything NewRuntime opened. It is safe to call twice.
func (rt *Runtime) Close() {
	if rt.Manager != nil {
		rt.Manager.Close()
	}
	if rt.bridge != nil {
		rt.bridge.Close()
		rt.bridge = nil
	}
	if rt.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = rt.metricsSrv.Shutdown(ctx)
		cancel()
		rt.metricsSrv = nil
	}
	if rt.writer != nil {
		if err := rt.writer.Close(); err != nil {
			rt.Logger.Error("close message log: %v", err)
		}
		rt.writer = nil
	}
	if err := rt.Sink.WriteErr(); err != nil {
		rt.Logger.Error("message log: %v", err)
	}
	_ = rt.Logger.Close()
}
