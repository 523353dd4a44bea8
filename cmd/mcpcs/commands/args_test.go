package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"a=1 b=2", []string{"a=1", "b=2"}},
		{`who="Ada Lovelace" tone='very formal'`, []string{"who=Ada Lovelace", "tone=very formal"}},
		{"a=1\tb=2", []string{"a=1", "b=2"}},
		{`empty=""`, []string{"empty="}},
		{`say="it's fine"`, []string{"say=it's fine"}},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, tokenize(tc.in))
		})
	}
}

func TestParsePromptArgs(t *testing.T) {
	got, err := parsePromptArgs([]string{"who=Ada", `style="very strict"`, "expr=a=b", "who=Grace"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"who": "Grace", "style": "very strict", "expr": "a=b"}, got)

	got, err = parsePromptArgs(tokenize(`topic="error handling" depth=2`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"topic": "error handling", "depth": "2"}, got)

	_, err = parsePromptArgs([]string{"novalue"})
	require.Error(t, err)
	_, err = parsePromptArgs([]string{"=x"})
	require.Error(t, err)
}

func TestParseToolArgs(t *testing.T) {
	got, err := parseToolArgs("")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, got)

	got, err = parseToolArgs(`{"query": "go", "limit": 3}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"query": "go", "limit": float64(3)}, got)

	got, err = parseToolArgs("null")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, got)

	_, err = parseToolArgs(`["not", "an", "object"]`)
	require.Error(t, err)
}
