package meta

import (
	"os"
	"strings"
	"unicode"
)

const envPrefix = "${env."

// expandEnvExpr substitutes every ${env.KEY} with the value of KEY, or ""
// when unset. A prefix with an invalid key is kept as text; an unterminated
// one keeps the remainder as text.
func expandEnvExpr(value string) string {
	if !strings.Contains(value, envPrefix) {
		return value
	}
	var b strings.Builder
	for {
		head, tail, found := strings.Cut(value, envPrefix)
		b.WriteString(head)
		if !found {
			break
		}
		key, rest, closed := strings.Cut(tail, "}")
		if !closed {
			b.WriteString(envPrefix)
			b.WriteString(tail)
			break
		}
		if !isEnvKey(key) {
			b.WriteString(envPrefix)
			value = tail
			continue
		}
		b.WriteString(os.Getenv(key))
		value = rest
	}
	return b.String()
}

func isEnvKey(key string) bool {
	for _, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
