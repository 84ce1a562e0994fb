package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrUnknownPath is returned for a dot path that names no config field.
var ErrUnknownPath = errors.New("unknown config path")

// Setting is one leaf of the config tree and the dot path that addresses it.
type Setting struct {
	Path  string
	Value any
}

// tree renders cfg as the generic JSON document dot paths walk.
func tree(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return root, nil
}

func splitPath(path string) ([]string, error) {
	keys := strings.Split(path, ".")
	if slices.Contains(keys, "") {
		return nil, fmt.Errorf("malformed path %q", path)
	}
	return keys, nil
}

// GetByPath returns the value at a dot path such as "robot.name" or
// "robot.scripts.0".
func GetByPath(cfg *Config, path string) (any, error) {
	keys, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	root, err := tree(cfg)
	if err != nil {
		return nil, err
	}

	var node any = root
	for _, key := range keys {
		switch v := node.(type) {
		case map[string]any:
			next, ok := v[key]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownPath, path)
			}
			node = next
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("invalid index %q in %s", key, path)
			}
			node = v[idx]
		default:
			return nil, fmt.Errorf("%s: %q is not a section", path, key)
		}
	}
	return node, nil
}

// SetByPath stores value at a dot path. A string value is read as a JSON
// literal when it parses as one ("8080", "true", `["ping","help"]`) and
// the field accepts it; otherwise it is stored as a plain string. cfg is
// left unchanged on error.
func SetByPath(cfg *Config, path string, value any) error {
	keys, err := splitPath(path)
	if err != nil {
		return err
	}

	candidates := []any{value}
	if s, ok := value.(string); ok {
		var literal any
		if json.Unmarshal([]byte(s), &literal) == nil {
			candidates = []any{literal, s}
		}
	}

	var lastErr error
	for _, v := range candidates {
		next, err := withValue(cfg, keys, v)
		if err != nil {
			lastErr = err
			continue
		}
		if _, err := GetByPath(next, path); err != nil && !isEmpty(v) {
			return fmt.Errorf("%w: %s", ErrUnknownPath, path)
		}
		*cfg = *next
		return nil
	}
	return fmt.Errorf("set %s: %w", path, lastErr)
}

// withValue returns a copy of cfg with v stored under keys.
func withValue(cfg *Config, keys []string, v any) (*Config, error) {
	root, err := tree(cfg)
	if err != nil {
		return nil, err
	}

	section := root
	for _, key := range keys[:len(keys)-1] {
		child, exists := section[key]
		if !exists {
			child = map[string]any{}
			section[key] = child
		}
		m, ok := child.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%q is not a section", key)
		}
		section = m
	}
	section[keys[len(keys)-1]] = v

	data, err := json.Marshal(root)
	if err != nil {
		return nil, err
	}
	next := &Config{}
	if err := json.Unmarshal(data, next); err != nil {
		return nil, err
	}
	return next, nil
}

// isEmpty reports values that omitempty fields drop from the tree.
func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	}
	return false
}

// ListPaths returns every leaf of cfg sorted by path. Lists are leaves.
// Each path can be passed back to GetByPath and SetByPath.
func ListPaths(cfg *Config) ([]Setting, error) {
	root, err := tree(cfg)
	if err != nil {
		return nil, err
	}
	var settings []Setting
	collect("", root, &settings)
	slices.SortFunc(settings, func(a, b Setting) int { return strings.Compare(a.Path, b.Path) })
	return settings, nil
}

func collect(prefix string, section map[string]any, out *[]Setting) {
	for key, v := range section {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if child, ok := v.(map[string]any); ok {
			collect(path, child, out)
			continue
		}
		*out = append(*out, Setting{Path: path, Value: v})
	}
}

// Sanitize returns a copy of the config with adapter secrets masked.
func Sanitize(cfg *Config) *Config {
	data, err := json.Marshal(cfg)
	if err != nil {
		return cfg
	}
	var masked Config
	if err := json.Unmarshal(data, &masked); err != nil {
		return cfg
	}

	for _, secret := range []*string{
		&masked.Adapters.Telegram.Token,
		&masked.Adapters.Discord.Token,
		&masked.Adapters.Slack.BotToken,
		&masked.Adapters.Slack.AppToken,
	} {
		if *secret != "" {
			*secret = maskString(*secret)
		}
	}
	return &masked
}

// maskString keeps the first and last 4 chars. ${VAR} references are
// shown as written.
func maskString(s string) string {
	if strings.HasPrefix(s, "${") {
		return s
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
