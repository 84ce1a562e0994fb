package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"brobbot/internal/adapter"
	"brobbot/internal/bus"
	"brobbot/internal/config"
	"brobbot/internal/domain"
	"brobbot/internal/httpclient"
	"brobbot/internal/metrics"
	"brobbot/internal/robot"
	"brobbot/internal/scripts"
	"brobbot/internal/transcript"
)

const pruneInterval = 24 * time.Hour

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the configured adapter and start listening",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRobot()
		},
	}
}

func runRobot() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(100, logger)
	events := bus.NewEventBus(logger)

	transport, err := adapter.New(cfg.Robot.Adapter, cfg, logger)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if cfg.Transcript.Enabled {
		store, err := transcript.Open(cfg.Transcript.DBPath, logger)
		if err != nil {
			return fmt.Errorf("open transcript: %w", err)
		}
		defer store.Close()

		unsubscribe := store.Subscribe(events)
		defer unsubscribe()
		transport = transcript.NewRecorder(transport, store, logger)

		maxAge := time.Duration(cfg.Transcript.RetentionDays) * 24 * time.Hour
		wg.Add(1)
		go func() {
			defer wg.Done()
			pruneLoop(ctx, store, maxAge)
		}()
	}

	r, err := buildRobot(cfg, transport, events)
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		r.Router().Handle("GET "+cfg.Metrics.Endpoint, metrics.Collector.Handler())
	}

	if cfg.HTTP.Enabled {
		addr := net.JoinHostPort(cfg.HTTP.Host, strconv.Itoa(cfg.HTTP.Port))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Serve(ctx, addr); err != nil {
				logger.Error("http router failed", "addr", addr, "err", err)
			}
		}()
	}

	logger.Info("brobbot running", "name", r.Name(), "adapter", cfg.Robot.Adapter)

	runErr := dispatch(ctx, transport, r, messageBus)
	stop()
	if runErr != nil {
		logger.Error("adapter stopped", "err", runErr)
	}

	logger.Info("shutting down...")
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out")
	}
	logger.Info("goodbye")
	return runErr
}

// dispatch runs the adapter and the robot loop. When the adapter returns on
// its own (shell EOF or exit) the bus is closed and the robot answers every
// queued message before dispatch returns. A cancelled ctx stops both at once.
func dispatch(ctx context.Context, transport domain.Transport, r *robot.Robot, mb *bus.InMemoryBus) error {
	robotDone := make(chan struct{})
	go func() {
		defer close(robotDone)
		r.Run(ctx, mb)
	}()

	// The shell adapter may stay blocked on stdin after a signal.
	errc := make(chan error, 1)
	go func() { errc <- transport.Run(ctx, mb) }()

	var runErr error
	select {
	case runErr = <-errc:
	case <-ctx.Done():
	}
	signalled := ctx.Err() != nil
	mb.Close()
	<-robotDone

	if signalled {
		return nil
	}
	return runErr
}

// buildRobot assembles a robot and loads the configured built-in and YAML scripts.
func buildRobot(cfg *config.Config, transport domain.Transport, events *bus.EventBus) (*robot.Robot, error) {
	r := robot.New(robot.Config{
		Name:      cfg.Robot.Name,
		Alias:     cfg.Robot.Alias,
		Transport: transport,
		Events:    events,
		HTTP: httpclient.Options{
			Client:     httpclient.Shared(time.Duration(cfg.HTTPClient.TimeoutSeconds) * time.Second),
			MaxRetries: cfg.HTTPClient.MaxRetries,
			UserAgent:  cfg.HTTPClient.UserAgent,
			Logger:     logger,
		},
		Logger: logger,
	})

	selected, err := scripts.Select(cfg.Robot.Scripts)
	if err != nil {
		return nil, err
	}
	custom, err := scripts.LoadDirectory(cfg.Robot.ScriptsDir, logger)
	if err != nil {
		return nil, fmt.Errorf("load scripts dir: %w", err)
	}
	if err := r.Load(append(selected, custom...)...); err != nil {
		return nil, err
	}
	return r, nil
}

func pruneLoop(ctx context.Context, store *transcript.Store, maxAge time.Duration) {
	prune := func() {
		n, err := store.Prune(ctx, maxAge)
		if err != nil {
			logger.Warn("transcript prune failed", "err", err)
			return
		}
		if n > 0 {
			logger.Info("transcript pruned", "rows", n)
		}
	}

	prune()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

