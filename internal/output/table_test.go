package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxLen   int
		expected string
	}{
		{name: "shorter than max", s: "qbo", maxLen: 10, expected: "qbo"},
		{name: "equal to max", s: "google", maxLen: 6, expected: "google"},
		{name: "longer than max", s: "qbo_client_secret", maxLen: 10, expected: "qbo_cli..."},
		{name: "max below ellipsis", s: "hello", maxLen: 2, expected: "he"},
		{name: "no limit", s: "hello", maxLen: 0, expected: "hello"},
		{name: "multibyte", s: "Bücherei GmbH", maxLen: 5, expected: "Bü..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TruncateString(tt.s, tt.maxLen))
		})
	}
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	cols := []Column{{Name: "Provider", Key: "p"}, {Name: "Subject", Key: "s", Width: 6}}
	RenderTable(&buf, cols, []map[string]string{
		{"p": "qbo", "s": "9130354"},
		{"p": "google", "s": "closer"},
	}, false)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Provider")
	assert.Contains(t, lines[1], "913...")
	assert.Contains(t, lines[2], "closer")
}

func TestRenderTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, []Column{{Name: "Name", Key: "n"}}, nil, true)
	assert.Empty(t, buf.String())
}
