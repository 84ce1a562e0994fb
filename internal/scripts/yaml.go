package scripts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"brobbot/internal/response"
	"brobbot/internal/robot"
)

// Definition is the YAML form of a reply script.
type Definition struct {
	Name      string               `yaml:"name"`
	Help      []string             `yaml:"help"`
	Listeners []ListenerDefinition `yaml:"listeners"`
}

// ListenerDefinition answers one pattern with a randomly chosen reply.
// Exactly one of Respond and Hear must be set.
type ListenerDefinition struct {
	Respond string   `yaml:"respond,omitempty"`
	Hear    string   `yaml:"hear,omitempty"`
	Method  string   `yaml:"method,omitempty"` // send (default) | emote | reply | topic | play | locked
	Replies []string `yaml:"replies"`
	Finish  bool     `yaml:"finish,omitempty"`
}

type verb func(*response.Response, context.Context, ...string) error

var verbs = map[string]verb{
	"send":   (*response.Response).Send,
	"emote":  (*response.Response).Emote,
	"reply":  (*response.Response).Reply,
	"topic":  (*response.Response).Topic,
	"play":   (*response.Response).Play,
	"locked": (*response.Response).Locked,
}

// YAMLScript is a compiled Definition.
type YAMLScript struct {
	def       Definition
	listeners []compiledListener
}

type compiledListener struct {
	pattern *regexp.Regexp
	respond bool
	send    verb
	replies []string
	finish  bool
}

// Compile validates def and compiles its patterns.
func Compile(def Definition) (*YAMLScript, error) {
	if def.Name == "" {
		return nil, errors.New("script has no name")
	}
	s := &YAMLScript{def: def}
	for i, l := range def.Listeners {
		if (l.Respond == "") == (l.Hear == "") {
			return nil, fmt.Errorf("listener %d: exactly one of respond and hear is required", i)
		}
		expr := l.Respond + l.Hear
		pattern, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("listener %d: pattern %q: %w", i, expr, err)
		}
		method := strings.ToLower(lo.CoalesceOrEmpty(l.Method, "send"))
		send, ok := verbs[method]
		if !ok {
			return nil, fmt.Errorf("listener %d: unknown method %q", i, l.Method)
		}
		replies := lo.Compact(l.Replies)
		if len(replies) == 0 {
			return nil, fmt.Errorf("listener %d: no replies", i)
		}
		s.listeners = append(s.listeners, compiledListener{
			pattern: pattern,
			respond: l.Respond != "",
			send:    send,
			replies: replies,
			finish:  l.Finish,
		})
	}
	return s, nil
}

func (s *YAMLScript) Name() string { return s.def.Name }

func (s *YAMLScript) Load(r *robot.Robot) error {
	for _, line := range s.def.Help {
		r.Commands().Register(line)
	}
	for _, l := range s.listeners {
		handler := l.handle
		if l.respond {
			r.Respond(l.pattern, handler)
		} else {
			r.Hear(l.pattern, handler)
		}
	}
	return nil
}

func (l compiledListener) handle(ctx context.Context, res *response.Response) error {
	reply, err := res.Random(l.replies)
	if err != nil {
		return err
	}
	if l.finish {
		res.Finish()
	}
	return l.send(res, ctx, reply)
}

// LoadDirectory compiles every .yaml/.yml file in dir. Files that cannot be
// read, parsed or compiled are logged and skipped. A missing dir is not an
// error.
func LoadDirectory(dir string, logger *slog.Logger) ([]robot.Script, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("scripts directory does not exist, skipping", "dir", dir)
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scripts dir: %w", err)
	}

	var scripts []robot.Script
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("cannot read script file", "path", path, "err", err)
			continue
		}

		var def Definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			logger.Warn("cannot parse script file", "path", path, "err", err)
			continue
		}
		if def.Name == "" {
			def.Name = strings.TrimSuffix(name, filepath.Ext(name))
		}

		script, err := Compile(def)
		if err != nil {
			logger.Warn("invalid script file", "path", path, "err", err)
			continue
		}

		logger.Info("loaded yaml script", "name", def.Name, "path", path)
		scripts = append(scripts, script)
	}

	return scripts, nil
}
