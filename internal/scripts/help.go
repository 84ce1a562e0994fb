package scripts

import (
	"context"
	"net/http"
	"regexp"

	"brobbot/internal/help"
	"brobbot/internal/metrics"
	"brobbot/internal/response"
	"brobbot/internal/robot"
)

var helpPattern = regexp.MustCompile(`(?i)^help\s*(.*)$`)

// Help answers "help [filter]" in chat and serves the command list as HTML
// at GET /<name>/help.
type Help struct{}

func (Help) Name() string { return "help" }

func (Help) Load(r *robot.Robot) error {
	r.HelpCommand(help.GenericName+" help", "Displays all of the help commands that Brobbot knows about.")
	r.HelpCommand(help.GenericName+" help `query`", "Displays all help commands that match `query`.")

	r.Respond(helpPattern, func(ctx context.Context, res *response.Response) error {
		reply := help.ChatReply(r.Commands().List(), res.Group(1), r.Name(), r.Alias())
		return res.Send(ctx, reply)
	})

	page := help.Handler(r.Commands(), r.Name(), r.Logger())
	r.Router().HandleFunc("GET /"+r.Name()+"/help", func(w http.ResponseWriter, req *http.Request) {
		metrics.HelpPagesServed.Inc()
		page(w, req)
	})
	return nil
}
