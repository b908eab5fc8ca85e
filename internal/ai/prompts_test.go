package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	in := "**1. Pay rent** - due *today*\n\n\n\n2. Walk dog"
	assert.Equal(t, "1. Pay rent - due today\n\n2. Walk dog", Clean(in))
}

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "dash list", in: "- Send out invitations\n- Buy decorations\n\n- Order a cake\n", want: []string{"Send out invitations", "Buy decorations", "Order a cake"}},
		{name: "no dashes", in: "Plan menu\r\nBook venue", want: []string{"Plan menu", "Book venue"}},
		{name: "capped", in: "- a\n- b\n- c\n- d\n- e\n- f\n- g", want: []string{"a", "b", "c", "d", "e"}},
		{name: "empty", in: "\n\n", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSuggestions(tt.in))
		})
	}
}

func TestParseLines(t *testing.T) {
	assert.Equal(t, []string{"Buy milk", "Call mom"}, ParseLines("  Buy milk \r\n\n Call mom\n"))
	assert.Empty(t, ParseLines(""))
}

func TestExtractOrdered(t *testing.T) {
	text := "Here you go:\n1. Pay rent. It is due today!\n2. Call mom! She asked\n  3. Walk the dog\nNot an item."
	assert.Equal(t, []string{"Pay rent", "Call mom", "Walk the dog"}, ExtractOrdered(text))
	assert.Empty(t, ExtractOrdered("no numbered lines"))
}

func TestPrioritizePrompt(t *testing.T) {
	p := PrioritizePrompt([]string{"Pay rent", "Walk dog"})
	assert.Contains(t, p, "- Pay rent\n- Walk dog\n")
	assert.Contains(t, p, "Prioritized List:")
}

func TestSuggestPrompt(t *testing.T) {
	assert.Contains(t, SuggestPrompt("Plan a trip"), `"Plan a trip"`)
	assert.Contains(t, PepTalkPrompt("Run 5k"), `"Run 5k"`)
}
