package scripts

import (
	"context"
	"regexp"
	"time"

	"brobbot/internal/response"
	"brobbot/internal/robot"
)

// Ping holds the liveness checks.
type Ping struct{}

func (Ping) Name() string { return "ping" }

func (Ping) Load(r *robot.Robot) error {
	r.HelpCommand("brobbot ping", "Reply with pong")
	r.HelpCommand("brobbot adapter", "Reply with the adapter")
	r.HelpCommand("brobbot echo <text>", "Reply back with <text>")
	r.HelpCommand("brobbot time", "Reply with current time")

	r.Respond(regexp.MustCompile(`(?i)^ping$`), func(ctx context.Context, res *response.Response) error {
		return res.Send(ctx, "PONG")
	})
	r.Respond(regexp.MustCompile(`(?i)^adapter$`), func(ctx context.Context, res *response.Response) error {
		return res.Send(ctx, r.Transport().Name())
	})
	r.Respond(regexp.MustCompile(`(?is)^echo (.*)$`), func(ctx context.Context, res *response.Response) error {
		return res.Send(ctx, res.Group(1))
	})
	r.Respond(regexp.MustCompile(`(?i)^time$`), func(ctx context.Context, res *response.Response) error {
		return res.Send(ctx, "Server time is: "+time.Now().Format(time.RFC1123))
	})
	return nil
}
