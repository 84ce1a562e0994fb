package adapter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"brobbot/internal/domain"
)

const shellRoom = "Shell"

// Shell implements domain.Transport for interactive terminal chat.
type Shell struct {
	user      string
	robotName string
	logger    *slog.Logger
	in        io.Reader

	mu  sync.Mutex // guards out
	out io.Writer
}

type ShellConfig struct {
	User      string // name of the local user, default "Shell"
	RobotName string
	Logger    *slog.Logger
	In        io.Reader
	Out       io.Writer
}

func NewShell(cfg ShellConfig) *Shell {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.User == "" {
		cfg.User = "Shell"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Shell{
		user:      cfg.User,
		robotName: cfg.RobotName,
		logger:    cfg.Logger,
		in:        cfg.In,
		out:       cfg.Out,
	}
}

func (s *Shell) Name() string { return "shell" }

// Run reads lines from the terminal and publishes them until EOF, "exit" or
// ctx cancellation.
func (s *Shell) Run(ctx context.Context, bus domain.MessageBus) error {
	s.println(fmt.Sprintf("%s shell. Address the bot as %q. Type exit to quit.", s.robotName, s.robotName))
	s.prompt()

	scanner := bufio.NewScanner(s.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("shell read: %w", err)
			}
			return nil // EOF
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			s.prompt()
			continue
		}
		if line == "exit" || line == "quit" {
			s.logger.Info("user requested quit")
			return nil
		}

		bus.Publish(&domain.InboundMessage{
			ID:        uuid.NewString(),
			Adapter:   s.Name(),
			Room:      shellRoom,
			User:      domain.User{ID: "1", Name: s.user, Room: shellRoom},
			Text:      line,
			Timestamp: time.Now(),
		})
	}
}

func (s *Shell) Send(_ context.Context, _ domain.Envelope, texts []string) error {
	return s.print(texts)
}

func (s *Shell) Emote(_ context.Context, _ domain.Envelope, texts []string) error {
	return s.print(prefixEach("* ", texts))
}

func (s *Shell) Reply(_ context.Context, env domain.Envelope, texts []string) error {
	return s.print(prefixEach(env.User.Name+": ", texts))
}

func (s *Shell) Topic(_ context.Context, _ domain.Envelope, texts []string) error {
	return s.print(prefixEach("topic: ", texts))
}

func (s *Shell) Play(_ context.Context, _ domain.Envelope, texts []string) error {
	return s.print(prefixEach("♪ ", texts))
}

// Locked prints like Send; the terminal keeps no history to leave it out of.
func (s *Shell) Locked(_ context.Context, _ domain.Envelope, texts []string) error {
	return s.print(texts)
}

func (s *Shell) print(lines []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range lines {
		if _, err := fmt.Fprintln(s.out, line); err != nil {
			return fmt.Errorf("shell write: %w", err)
		}
	}
	_, _ = fmt.Fprint(s.out, s.user+"> ")
	return nil
}

func (s *Shell) println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.out, line)
}

func (s *Shell) prompt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprint(s.out, s.user+"> ")
}
