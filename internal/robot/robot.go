// Package robot ties a transport, the listener table and the help registry
// together and dispatches inbound messages to scripts.
package robot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"brobbot/internal/bus"
	"brobbot/internal/domain"
	"brobbot/internal/help"
	"brobbot/internal/httpclient"
	"brobbot/internal/metrics"
)

// Script is a unit of behaviour loaded into a robot at startup.
type Script interface {
	Name() string
	Load(r *Robot) error
}

// Config holds the robot's identity and dependencies.
type Config struct {
	Name      string
	Alias     string // optional; falls back to Name in help output
	Transport domain.Transport
	Events    *bus.EventBus // optional
	HTTP      httpclient.Options
	Logger    *slog.Logger
}

// Robot dispatches inbound messages to listeners in registration order.
type Robot struct {
	name      string
	alias     string
	transport domain.Transport
	events    *bus.EventBus
	httpOpts  httpclient.Options
	commands  *help.Registry
	router    *http.ServeMux
	logger    *slog.Logger

	mu        sync.RWMutex
	listeners []*listener
	addressed *addressMatcher
}

func New(cfg Config) *Robot {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = help.GenericName
	}
	if cfg.HTTP.Client == nil {
		cfg.HTTP.Client = httpclient.Shared(0)
	}
	if cfg.HTTP.Logger == nil {
		cfg.HTTP.Logger = cfg.Logger
	}
	var transport domain.Transport
	if cfg.Transport != nil {
		transport = instrument(cfg.Transport)
	}
	return &Robot{
		name:      cfg.Name,
		alias:     cfg.Alias,
		transport: transport,
		events:    cfg.Events,
		httpOpts:  cfg.HTTP,
		commands:  help.NewRegistry(),
		router:    http.NewServeMux(),
		logger:    cfg.Logger,
		addressed: newAddressMatcher(cfg.Name, cfg.Alias),
	}
}

func (r *Robot) Name() string { return r.name }
func (r *Robot) Alias() string { return r.alias }

// Transport returns the outbound side of the adapter, counted per verb.
func (r *Robot) Transport() domain.Transport { return r.transport }

// Commands returns the help registry scripts add their usage lines to.
func (r *Robot) Commands() *help.Registry { return r.commands }

// Router returns the mux served by Serve. Scripts mount routes on it.
func (r *Robot) Router() *http.ServeMux { return r.router }

func (r *Robot) Logger() *slog.Logger { return r.logger }

// Events returns the robot's event bus, or nil when none was configured.
func (r *Robot) Events() *bus.EventBus { return r.events }

// HTTP returns a request builder for url sharing the robot's pooled client.
func (r *Robot) HTTP(url string) *httpclient.ScopedClient {
	return httpclient.New(url, r.httpOpts)
}

// HelpCommand registers "usage - description" in the help registry.
func (r *Robot) HelpCommand(usage, description string) {
	r.commands.Register(usage + " - " + description)
	metrics.HelpEntries.Set(int64(r.commands.Len()))
}

// Load loads scripts in order and stops at the first failure.
func (r *Robot) Load(scripts ...Script) error {
	for _, s := range scripts {
		if err := s.Load(r); err != nil {
			return fmt.Errorf("load script %s: %w", s.Name(), err)
		}
		metrics.ScriptsLoaded.Inc()
		r.emit(bus.Event{Type: bus.EventScriptLoaded, Source: s.Name()})
		r.logger.Info("script loaded", "script", s.Name())
	}
	return nil
}

// Run feeds messages from the inbound channel to Receive, one at a time,
// until ctx is cancelled or the bus is closed.
func (r *Robot) Run(ctx context.Context, mb domain.MessageBus) {
	r.logger.Info("robot started", "name", r.name, "listeners", r.listenerCount())

	inbound := mb.Subscribe()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("robot stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				r.logger.Info("inbound channel closed, robot stopping")
				return
			}
			r.Receive(ctx, msg)
		}
	}
}

func (r *Robot) emit(ev bus.Event) {
	if r.events == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	r.events.Emit(ev)
}
