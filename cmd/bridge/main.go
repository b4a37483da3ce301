// cmd/bridge/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-bridge/internal/api"
	"github.com/tamzrod/modbus-bridge/internal/bridge"
	"github.com/tamzrod/modbus-bridge/internal/config"
	"github.com/tamzrod/modbus-bridge/internal/link"
	"github.com/tamzrod/modbus-bridge/internal/logging"
	"github.com/tamzrod/modbus-bridge/internal/metrics"
	"github.com/tamzrod/modbus-bridge/internal/poller"
	"github.com/tamzrod/modbus-bridge/internal/registry"
	"github.com/tamzrod/modbus-bridge/internal/status"
	"github.com/tamzrod/modbus-bridge/internal/transport"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfgPath := flag.String("config", "", "path to bridge.yaml (optional)")
	flag.Parse()

	settings, err := config.LoadSettings(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("modbus-bridge", version, logging.Config{
		Level:  settings.Logging.Level,
		Format: settings.Logging.Format,
		Output: settings.Logging.Output,
	})

	if err := run(settings, logger); err != nil {
		logger.Fatal().Err(err).Msg("bridge stopped")
	}
}

func run(s *config.Settings, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Register table
	// --------------------

	rf := config.DefaultRegisters()
	if s.RegistersPath != "" {
		var err error
		if rf, err = config.LoadRegisters(s.RegistersPath); err != nil {
			return err
		}
	}

	table, sizes, err := config.BuildTable(rf)
	if err != nil {
		return err
	}
	reg, err := registry.New(table, sizes)
	if err != nil {
		return fmt.Errorf("registry build failed: %w", err)
	}
	logger.Info().Int("characteristics", reg.Len()).Str("source", registersSource(s)).Msg("register table loaded")

	m := metrics.NewRegistry()

	// --------------------
	// Field bus
	// --------------------

	sess, err := transport.Open(transportConfig(s.Modbus), logger, m)
	if err != nil {
		return err
	}
	shared := transport.NewShared(sess)

	// The API lease is taken first and held until shutdown, so polling
	// cycles releasing theirs never close the bus.
	pcfg := poller.ConfigFrom(s.Polling)
	apiEngine, err := poller.Build(pcfg, reg, shared, logger, m)
	if err != nil {
		_ = sess.Close()
		return err
	}
	defer apiEngine.Close()

	// --------------------
	// Polling worker
	// --------------------

	store := status.NewStore()
	var wg sync.WaitGroup

	if s.Polling.Enabled {
		runner := &poller.Runner{
			Config:   pcfg,
			Registry: reg,
			Shared:   shared,
			Store:    store,
			Logger:   logger,
			Metrics:  m,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runner.Run(ctx); err != nil {
				logger.Error().Err(err).Uint16("code", status.ErrorCode(err)).Msg("polling stopped")
			}
		}()
	} else {
		store.Disable()
		logger.Info().Msg("polling disabled")
	}

	// --------------------
	// Link events (log only)
	// --------------------

	if s.Link.Interface != "" {
		events := make(chan link.Event)
		mon := link.NewMonitor(s.Link.Interface, s.Link.PollInterval)
		wg.Add(2)
		go func() { defer wg.Done(); mon.Run(ctx, events) }()
		go func() { defer wg.Done(); link.Watch(events, logger) }()
	}

	// --------------------
	// HTTP
	// --------------------

	b := bridge.New(reg, apiEngine, logger, m)
	srv := api.New(api.Config{
		Version:     version,
		ScratchSize: s.HTTP.ScratchSize,
		RateRPS:     s.HTTP.RateLimit.RPS,
		RateBurst:   s.HTTP.RateLimit.Burst,
	}, b, store, m, logger)

	httpSrv := &http.Server{
		Addr:         s.HTTP.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  s.HTTP.ReadTimeout,
		WriteTimeout: s.HTTP.WriteTimeout,
		IdleTimeout:  s.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", s.HTTP.Addr).Msg("http server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown incomplete")
	}

	wg.Wait()
	return serveErr
}

func transportConfig(c config.ModbusConfig) transport.Config {
	return transport.Config{
		Mode:        c.Mode,
		Port:        c.Port,
		Address:     c.Address,
		BaudRate:    c.BaudRate,
		DataBits:    c.DataBits,
		Parity:      c.Parity,
		StopBits:    c.StopBits,
		RS485:       c.RS485,
		Timeout:     c.Timeout,
		IdleTimeout: c.IdleTimeout,
		Breaker: transport.BreakerConfig{
			MaxRequests:      c.Breaker.MaxRequests,
			Interval:         c.Breaker.Interval,
			Timeout:          c.Breaker.Timeout,
			FailureThreshold: c.Breaker.FailureThreshold,
		},
	}
}

func registersSource(s *config.Settings) string {
	if s.RegistersPath == "" {
		return "built-in"
	}
	return s.RegistersPath
}
