// Command flexmon connects to a controller and records one monitored signal to
// a file for a configured duration.
//
//	flexmon <config.yaml>
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arloliu/go-flexgui/config"
	"github.com/arloliu/go-flexgui/controller"
	"github.com/arloliu/go-flexgui/flexmsg"
	"github.com/arloliu/go-flexgui/logger"
	"github.com/arloliu/go-flexgui/metric"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: flexmon <config.yaml>")
		os.Exit(2)
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("flexmon failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	var logOut io.Writer = os.Stderr
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}

	log := logger.NewSlogWithWriter(logOut, logger.ParseLevel(cfg.Log.Level), false)
	logger.SetLogger(log)

	opts := append(cfg.ConnOptions(),
		controller.WithLogger(log),
		controller.WithNotificationHandler(func(note *flexmsg.Notification) {
			fmt.Fprintf(os.Stderr, "controller notification %d: %s\n", note.Code, note.Message)
		}),
	)
	connCfg, err := controller.NewConnectionConfig(cfg.Controller.Host, cfg.Controller.Port, opts...)
	if err != nil {
		return fmt.Errorf("connection config: %w", err)
	}

	session, err := controller.Dial(ctx, connCfg)
	if err != nil {
		return fmt.Errorf("connect %s: %w", connCfg.Address(), err)
	}
	defer session.Close()

	if cfg.Metrics.Listen != "" {
		registry := metric.NewRegistry()
		if err := registry.RegisterConnection(cfg.Metrics.Name, session.GetMetrics()); err != nil {
			return err
		}

		server := metric.NewServer(cfg.Metrics.Listen, "", registry)
		if err := server.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer server.Stop()

		log.Info("metrics server started", "addr", server.Addr().String())
	}

	return record(ctx, session, cfg, log)
}

// record writes every value of the monitored signal to the output file until
// the configured duration elapses or ctx is done.
func record(ctx context.Context, session *controller.Session, cfg *config.Config, log logger.Logger) error {
	params, err := cfg.MonitorParams()
	if err != nil {
		return err
	}

	f, err := os.Create(cfg.Monitor.Output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	out := bufio.NewWriter(f)
	defer out.Flush()

	var count int
	var writeErr error

	// never satisfied, so Notify streams until its timeout
	_, err = session.NotifySignal(ctx, cfg.Monitor.Signal, func(v flexmsg.Value) bool {
		if writeErr == nil {
			_, writeErr = fmt.Fprintf(out, "%s\t%s\n", time.Now().Format(time.RFC3339Nano), v)
			count++
		}

		return false
	}, params)

	switch {
	case writeErr != nil:
		return fmt.Errorf("write output: %w", writeErr)
	case err == nil, errors.Is(err, controller.ErrNotifyTimeout), errors.Is(err, context.Canceled):
		log.Info("recording finished", "signal", cfg.Monitor.Signal, "values", count, "output", cfg.Monitor.Output)
		return nil
	default:
		return err
	}
}
