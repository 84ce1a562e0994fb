// Package scripts holds the behaviour brobbot ships with and the loader for
// YAML-defined reply scripts.
package scripts

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"brobbot/internal/robot"
)

// ErrUnknownScript is returned by Select for a name no built-in carries.
var ErrUnknownScript = errors.New("unknown script")

// Builtins returns the bundled scripts in load order.
func Builtins() []robot.Script {
	return []robot.Script{Help{}, Ping{}, HTTPStatus{}}
}

// Names lists the names of scripts.
func Names(scripts []robot.Script) []string {
	return lo.Map(scripts, func(s robot.Script, _ int) string { return s.Name() })
}

// Select returns the built-ins named in names, in that order. An empty list
// selects every built-in.
func Select(names []string) ([]robot.Script, error) {
	all := Builtins()
	if len(names) == 0 {
		return all, nil
	}
	selected := make([]robot.Script, 0, len(names))
	for _, name := range lo.Uniq(names) {
		s, ok := lo.Find(all, func(s robot.Script) bool { return s.Name() == name })
		if !ok {
			return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownScript, name, Names(all))
		}
		selected = append(selected, s)
	}
	return selected, nil
}
