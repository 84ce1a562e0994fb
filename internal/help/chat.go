package help

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// GenericName is the placeholder scripts use for the bot in their help lines.
const GenericName = "brobbot"

var genericNamePattern = regexp.MustCompile(`(?i)` + GenericName)

// Filter keeps the entries matching term, tested as a case-insensitive
// regular expression against the entry text. A term that does not compile is
// matched literally instead.
func Filter(entries []string, term string) []string {
	re, err := regexp.Compile(`(?i)` + term)
	if err != nil {
		re = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(term))
	}
	return lo.Filter(entries, func(entry string, _ int) bool {
		return re.MatchString(entry)
	})
}

// RewriteForChat replaces the generic bot name with name everywhere, then
// swaps a leading name for alias. Only the prefix gets the alias.
func RewriteForChat(entry, name, alias string) string {
	prefix := alias
	if prefix == "" {
		prefix = name
	}
	entry = genericNamePattern.ReplaceAllLiteralString(entry, name)
	if name != "" && strings.HasPrefix(entry, name) {
		entry = prefix + entry[len(name):]
	}
	return entry
}

// ChatReply renders entries as the text of a chat reply. A non-empty filter
// that matches nothing yields the "no commands match" message.
func ChatReply(entries []string, filter, name, alias string) string {
	if filter != "" {
		entries = Filter(entries, filter)
		if len(entries) == 0 {
			return "No available commands match " + filter
		}
	}

	lines := lo.Map(entries, func(entry string, _ int) string {
		return RewriteForChat(entry, name, alias)
	})
	return strings.Join(lines, "\n")
}
