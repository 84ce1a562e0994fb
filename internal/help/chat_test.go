package help

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var sampleEntries = []string{
	"brobbot ping - pings",
	"brobbot pong - pongs",
}

func TestChatReply_Filter(t *testing.T) {
	got := ChatReply(sampleEntries, "ping", "brobbot", "!b")
	assert.Equal(t, "!b ping - pings", got)
}

func TestChatReply_NoMatch(t *testing.T) {
	got := ChatReply(sampleEntries, "zzz", "brobbot", "!b")
	assert.Equal(t, "No available commands match zzz", got)
}

func TestChatReply_NoFilterListsAll(t *testing.T) {
	got := ChatReply(sampleEntries, "", "hal", "")
	assert.Equal(t, "hal ping - pings\nhal pong - pongs", got)
}

func TestChatReply_FilterIsCaseInsensitive(t *testing.T) {
	got := ChatReply(sampleEntries, "PONG", "brobbot", "")
	assert.Equal(t, "brobbot pong - pongs", got)
}

func TestChatReply_FilterUsesOriginalText(t *testing.T) {
	// The generic name is rewritten after filtering, so filtering on the
	// display name does not match entries that only carry the generic one.
	got := ChatReply(sampleEntries, "hal", "hal", "")
	assert.Equal(t, "No available commands match hal", got)
}

func TestChatReply_FilterRegexp(t *testing.T) {
	got := ChatReply(sampleEntries, "p[io]ng - pong", "brobbot", "")
	assert.Equal(t, "brobbot pong - pongs", got)
}

func TestChatReply_FilterAlternationIgnoresCaseInEveryBranch(t *testing.T) {
	entries := []string{
		"brobbot ping - pings",
		"brobbot echo <text> - Reply back with <text>",
		"brobbot time - Reply with current time",
	}
	got := ChatReply(entries, "PING|ECHO", "hal", "")
	assert.Equal(t, "hal ping - pings\nhal echo <text> - Reply back with <text>", got)

	got = ChatReply(entries, "nomatch|TIME", "hal", "")
	assert.Equal(t, "hal time - Reply with current time", got)
}

func TestChatReply_InvalidRegexpMatchesLiterally(t *testing.T) {
	entries := []string{"brobbot calc (1+2 - adds", "brobbot ping - pings"}
	got := ChatReply(entries, "(1+2", "brobbot", "")
	assert.Equal(t, "brobbot calc (1+2 - adds", got)
}

func TestChatReply_EmptyRegistry(t *testing.T) {
	assert.Equal(t, "", ChatReply(nil, "", "brobbot", ""))
	assert.Equal(t, "No available commands match x", ChatReply(nil, "x", "brobbot", ""))
}

func TestRewriteForChat(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		bot   string
		alias string
		want  string
	}{
		{"alias replaces prefix", "brobbot ping - pings", "brobbot", "!b", "!b ping - pings"},
		{"mid-string keeps name", "foo brobbot bar - desc", "brobbot", "!b", "foo brobbot bar - desc"},
		{"only leading occurrence gets alias", "brobbot foo brobbot - desc", "brobbot", "!b", "!b foo brobbot - desc"},
		{"generic name rewritten case-insensitively", "BrobBot help - shows help", "hal", "", "hal help - shows help"},
		{"display name everywhere, alias at prefix", "brobbot tell brobbot - x", "hal", "/", "/ tell hal - x"},
		{"no alias uses name", "brobbot echo - echoes", "hal", "", "hal echo - echoes"},
		{"entry without name untouched", "ping - pings", "hal", "!", "ping - pings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RewriteForChat(tt.entry, tt.bot, tt.alias))
		})
	}
}
