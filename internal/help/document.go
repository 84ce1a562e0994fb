package help

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/lo"
)

// EscapeHTML escapes &, < and > in that order so no entity is escaped twice.
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}

// Commands renders entries as consecutive paragraphs with every generic bot
// name shown as a bold name.
func Commands(entries []string, name string) string {
	escaped := lo.Map(entries, func(entry string, _ int) string {
		return EscapeHTML(entry)
	})
	emit := "<p>" + strings.Join(escaped, "</p><p>") + "</p>"
	return genericNamePattern.ReplaceAllLiteralString(emit, "<b>"+name+"</b>")
}

// Document returns the full help page for entries.
func Document(entries []string, name string) string {
	page := strings.ReplaceAll(documentTemplate, "{{NAME}}", name)
	return strings.Replace(page, "{{COMMANDS}}", Commands(entries, name), 1)
}

// Handler serves the help page for the registry's current entries.
func Handler(reg *Registry, name string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := reg.List()
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(Document(entries, name))); err != nil {
			logger.Debug("help page write failed", "err", err)
			return
		}
		logger.Debug("help page served", "remote", r.RemoteAddr, "entries", len(entries))
	}
}

const documentTemplate = `<!DOCTYPE html>
<html>
  <head>
  <meta charset="utf-8">
  <title>{{NAME}} Help</title>
  <style type="text/css">
    body {
      background: #d3d6d9;
      color: #636c75;
      text-shadow: 0 1px 1px rgba(255, 255, 255, .5);
      font-family: Helvetica, Arial, sans-serif;
    }
    h1 {
      margin: 8px 0;
      padding: 0;
    }
    .commands {
      font-size: 13px;
    }
    p {
      border-bottom: 1px solid #eee;
      margin: 6px 0 0 0;
      padding-bottom: 5px;
    }
    p:last-child {
      border: 0;
    }
  </style>
  </head>
  <body>
    <h1>{{NAME}} Help</h1>
    <div class="commands">
      {{COMMANDS}}
    </div>
  </body>
</html>`
