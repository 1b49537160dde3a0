package config

import (
	"strings"
)

// ConfigError collects every problem found while loading a config file so
// the operator sees the full list in one run instead of one failure at a
// time.
type ConfigError struct {
	Path    string   // file the problems came from
	Missing []string // ${ENV_VAR} references with no value set
	Errors  []string // validation failures, "field: reason" form
}

func (e *ConfigError) Error() string {
	if !e.HasErrors() {
		return ""
	}

	var b strings.Builder
	if len(e.Missing) > 0 {
		b.WriteString("missing environment variables: ")
		b.WriteString(strings.Join(e.Missing, ", "))
	}
	if len(e.Errors) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("validation failed:")
		for _, msg := range e.Errors {
			b.WriteString("\n  - ")
			b.WriteString(msg)
		}
	}
	return b.String()
}

// HasErrors reports whether the load found anything wrong.
func (e *ConfigError) HasErrors() bool {
	return len(e.Missing) > 0 || len(e.Errors) > 0
}
