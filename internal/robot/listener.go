package robot

import (
	"context"
	"fmt"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"brobbot/internal/bus"
	"brobbot/internal/domain"
	"brobbot/internal/metrics"
	"brobbot/internal/response"
)

// Handler runs when a listener's pattern matches.
type Handler func(ctx context.Context, res *response.Response) error

type listener struct {
	pattern *regexp.Regexp
	respond bool
	handler Handler
}

// Hear registers handler for any message whose text matches pattern.
func (r *Robot) Hear(pattern *regexp.Regexp, handler Handler) {
	r.addListener(&listener{pattern: pattern, handler: handler})
}

// Respond registers handler for messages addressed to the robot by name or
// alias. pattern is matched against the text after the address.
func (r *Robot) Respond(pattern *regexp.Regexp, handler Handler) {
	r.addListener(&listener{pattern: pattern, respond: true, handler: handler})
}

func (r *Robot) addListener(l *listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *Robot) listenerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

// Receive offers msg to every listener in registration order. A listener
// that finishes the message hides it from the rest.
func (r *Robot) Receive(ctx context.Context, msg *domain.InboundMessage) {
	metrics.MessagesReceived.Inc()
	r.emit(bus.Event{Type: bus.EventMessageReceived, Source: msg.Adapter, Message: msg})
	r.logger.Debug("message received", "adapter", msg.Adapter, "room", msg.Room, "user", msg.User.Name)

	r.mu.RLock()
	listeners := make([]*listener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for i, l := range listeners {
		if msg.Finished() {
			return
		}
		match := l.match(r.addressed, msg.Text)
		if match == nil {
			continue
		}
		metrics.ListenersMatched.Inc()
		r.emit(bus.Event{
			Type:    bus.EventListenerMatched,
			Source:  msg.Adapter,
			Message: msg,
			Payload: map[string]any{"listener": i, "pattern": l.pattern.String()},
		})
		if err := r.invoke(ctx, l, response.New(r, msg, match)); err != nil {
			metrics.HandlerErrors.Inc()
			r.logger.Error("listener failed", "pattern", l.pattern.String(), "room", msg.Room, "err", err)
			r.emit(bus.Event{
				Type:    bus.EventHandlerError,
				Source:  msg.Adapter,
				Message: msg,
				Payload: map[string]any{"listener": i, "error": err.Error()},
			})
		}
	}
}

func (r *Robot) invoke(ctx context.Context, l *listener, res *response.Response) (err error) {
	start := time.Now()
	defer func() {
		metrics.HandlerLatency.Observe(time.Since(start).Seconds())
		if p := recover(); p != nil {
			r.logger.Error("listener panicked", "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return l.handler(ctx, res)
}

func (l *listener) match(addr *addressMatcher, text string) []string {
	if !l.respond {
		return l.pattern.FindStringSubmatch(text)
	}
	rest, ok := addr.strip(text)
	if !ok {
		return nil
	}
	return l.pattern.FindStringSubmatch(rest)
}

// addressMatcher recognises "@name: ", "name, ", "alias " and similar
// prefixes that direct a message at the robot.
type addressMatcher struct {
	prefix *regexp.Regexp
}

func newAddressMatcher(name, alias string) *addressMatcher {
	// The name must be followed by whitespace or end of text; an alias such
	// as "!" may be glued to the command.
	expr := `(?i)^\s*@?(?:` + regexp.QuoteMeta(name) + `[:,]?(?:\s+|$)`
	if alias != "" && !strings.EqualFold(alias, name) {
		expr += `|` + regexp.QuoteMeta(alias) + `[:,]?\s*`
	}
	return &addressMatcher{prefix: regexp.MustCompile(expr + `)`)}
}

func (a *addressMatcher) strip(text string) (string, bool) {
	loc := a.prefix.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	return text[loc[1]:], true
}
