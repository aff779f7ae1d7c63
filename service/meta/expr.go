package meta

import (
	"os"
	"strings"
	"unicode"
)

const envPrefix = "${env."

// expandEnv replaces ${env.KEY} with the value lookup returns for KEY. An
// expression with an invalid key is kept literally; one without a closing
// brace ends the expansion.
func expandEnv(value string, lookup func(key string) string) string {
	if lookup == nil {
		lookup = os.Getenv
	}
	var b strings.Builder
	for {
		start := strings.Index(value, envPrefix)
		if start < 0 {
			b.WriteString(value)
			return b.String()
		}
		b.WriteString(value[:start])
		rest := value[start+len(envPrefix):]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(value[start:])
			return b.String()
		}
		if key := rest[:end]; isEnvKey(key) {
			b.WriteString(lookup(key))
			value = rest[end+1:]
			continue
		}
		b.WriteString(envPrefix)
		value = rest
	}
}

func isEnvKey(key string) bool {
	for _, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
