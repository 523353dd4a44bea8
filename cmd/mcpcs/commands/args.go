package commands

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// tokenize splits a line on unquoted whitespace. Single or double quotes
// group a run of characters and are dropped from the token.
func tokenize(line string) []string {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		started bool
	)
	flush := func() {
		if started {
			tokens = append(tokens, current.String())
			current.Reset()
			started = false
		}
	}
	for _, r := range line {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0:
			current.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			started = true
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			current.WriteRune(r)
			started = true
		}
	}
	flush()
	return tokens
}

// parsePromptArgs turns key=value tokens into a map. A value wrapped in
// matching quotes is unwrapped; later keys override earlier ones.
func parsePromptArgs(tokens []string) (map[string]string, error) {
	out := make(map[string]string, len(tokens))
	for _, tok := range tokens {
		key, value, ok := strings.Cut(tok, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.WithHint(errors.Newf("invalid prompt argument %q", tok), "use key=value")
		}
		out[key] = unquote(strings.TrimSpace(value))
	}
	return out, nil
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
