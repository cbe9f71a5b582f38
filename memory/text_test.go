package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty text",
			input:    "",
			expected: []string{},
		},
		{
			name:     "stop words and punctuation removed",
			input:    "What's your favorite color?",
			expected: []string{"what", "favorite", "color"},
		},
		{
			name:     "duplicates keep first appearance",
			input:    "Pizza, pizza and more PIZZA pasta",
			expected: []string{"pizza", "pasta"},
		},
		{
			name:     "slang and single characters dropped",
			input:    "lol idk u r 2 x tbh hiking rn",
			expected: []string{"hiking"},
		},
		{
			name:     "digits and underscores kept",
			input:    "route_66 in 1999",
			expected: []string{"route_66", "1999"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractKeywords(tt.input))
		})
	}
}

func TestExtractTopics(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"no topic", "hello there", []string{}},
		{"single topic", "I took a flight", []string{"travel"}},
		{"table order", "my sister loves this restaurant", []string{"food", "family", "relationship"}},
		{"substring match", "I ate an apple", []string{"technology"}},
		{"case insensitive", "DOCTOR visit", []string{"travel", "health"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractTopics(tt.input))
		})
	}
}

func TestTopicNames(t *testing.T) {
	names := TopicNames()
	assert.Len(t, names, 10)
	assert.Equal(t, "travel", names[0])
	assert.Equal(t, "entertainment", names[9])
}

func TestExtractKeywords_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.String().Draw(rt, "text")

		first := ExtractKeywords(text)
		second := ExtractKeywords(text)
		if !assert.ObjectsAreEqual(first, second) {
			rt.Fatalf("non-deterministic extraction for %q", text)
		}

		seen := make(map[string]bool)
		for _, kw := range first {
			if seen[kw] {
				rt.Fatalf("duplicate keyword %q", kw)
			}
			seen[kw] = true
			if IsStopWord(kw) {
				rt.Fatalf("stop word %q returned", kw)
			}
			if kw != strings.ToLower(kw) {
				rt.Fatalf("keyword %q not lowercased", kw)
			}
			if len([]rune(kw)) <= 1 {
				rt.Fatalf("keyword %q too short", kw)
			}
		}
	})
}
