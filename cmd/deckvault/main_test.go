package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ramonehamilton/commander-vault/internal/deckmanager"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		in   string
		want deckmanager.Ref
	}{
		{"1.2.0", deckmanager.Ref{Version: "1.2.0"}},
		{"budget@1.0.1", deckmanager.Ref{Branch: "budget", Version: "1.0.1"}},
		{"budget@", deckmanager.Ref{Branch: "budget"}},
		{"26.03.14-rev.2", deckmanager.Ref{Version: "26.03.14-rev.2"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRef(tt.in))
		})
	}
}

func TestFormatTTL(t *testing.T) {
	assert.Equal(t, "7d", formatTTL(7*24*time.Hour))
	assert.Equal(t, "12h0m0s", formatTTL(12*time.Hour))
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"new"}, {"add"}, {"remove"}, {"status"}, {"commit"}, {"log"}, {"diff"}, {"scheme"},
		{"branch", "create"}, {"branch", "switch"}, {"branch", "delete"}, {"branch", "rename"},
		{"stash", "drop"}, {"maybe", "add"},
		{"decks", "open"}, {"decks", "delete"}, {"decks", "rename"}, {"decks", "watch"},
		{"export"}, {"import"}, {"card", "image"},
		{"cache", "stats"}, {"cache", "clear"}, {"bulk", "refresh"},
		{"backup", "list"}, {"backup", "restore"}, {"config", "init"},
	} {
		cmd, rest, err := rootCmd.Find(path)
		if assert.NoError(t, err, path) {
			assert.Empty(t, rest, path)
			assert.Equal(t, path[len(path)-1], cmd.Name(), path)
		}
	}
}
