package featureflags

import (
	"os"
	"strings"
)

// Known flags. Anything else still works through Enabled but these are the
// ones the server actually consults.
const (
	// LLMStub makes the content pipeline return canned text instead of
	// calling the LLM API, for local development without an API key.
	LLMStub = "llm_stub"
)

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes (case-insensitive)
func Enabled(name string) bool {
	v := os.Getenv("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
