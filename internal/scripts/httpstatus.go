package scripts

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"brobbot/internal/response"
	"brobbot/internal/robot"
)

// HTTPStatus reports the status of a URL fetched through the robot's HTTP
// client.
type HTTPStatus struct{}

func (HTTPStatus) Name() string { return "httpstatus" }

func (HTTPStatus) Load(r *robot.Robot) error {
	r.HelpCommand("brobbot status <url>", "Reply with the HTTP status of <url>")

	r.Respond(regexp.MustCompile(`(?i)^status\s+(https?://\S+)$`), func(ctx context.Context, res *response.Response) error {
		url := res.Group(1)
		result, err := res.HTTP(url).Get(ctx)
		if err != nil {
			r.Logger().Debug("status check failed", "url", url, "err", err)
			return res.Reply(ctx, fmt.Sprintf("%s is unreachable: %v", url, err))
		}
		return res.Reply(ctx, statusLine(url, result.StatusCode))
	})
	return nil
}

func statusLine(url string, code int) string {
	return fmt.Sprintf("%s responded %d %s", url, code, http.StatusText(code))
}
