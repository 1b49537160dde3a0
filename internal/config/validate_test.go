package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validInstance(name, typ string) InstanceConfig {
	return InstanceConfig{
		Name:   name,
		Type:   typ,
		URL:    "http://localhost:7878",
		APIKey: "secret",
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := &Config{
		Server:    ServerConfig{Port: 8787, LogLevel: "info"},
		Instances: []InstanceConfig{validInstance("radarr-main", "radarr")},
	}
	assert.Empty(t, cfg.Validate())
}

func TestValidate_BadPort(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 99999}}
	errs := cfg.Validate()
	assert.True(t, containsSubstring(errs, "server.port"))
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := &Config{Server: ServerConfig{LogLevel: "verbose"}}
	errs := cfg.Validate()
	assert.True(t, containsSubstring(errs, "server.log_level"))
}

func TestValidate_InstanceMissingFields(t *testing.T) {
	cfg := &Config{
		Instances: []InstanceConfig{{Type: "radarr"}},
	}
	errs := cfg.Validate()
	assert.True(t, containsSubstring(errs, "instances[0].name"))
	assert.True(t, containsSubstring(errs, "instances[0].url"))
	assert.True(t, containsSubstring(errs, "instances[0].api_key"))
}

func TestValidate_InstanceBadType(t *testing.T) {
	inst := validInstance("x", "lidarr")
	cfg := &Config{Instances: []InstanceConfig{inst}}
	errs := cfg.Validate()
	assert.True(t, containsSubstring(errs, "must be radarr or sonarr"))
}

func TestValidate_DuplicateInstanceName(t *testing.T) {
	cfg := &Config{
		Instances: []InstanceConfig{
			validInstance("main", "radarr"),
			validInstance("main", "sonarr"),
		},
	}
	errs := cfg.Validate()
	assert.True(t, containsSubstring(errs, "duplicate instance name"))
}

func TestValidate_TwoDefaultsSameType(t *testing.T) {
	a := validInstance("radarr-a", "radarr")
	a.Default = true
	b := validInstance("radarr-b", "radarr")
	b.Default = true
	cfg := &Config{Instances: []InstanceConfig{a, b}}

	errs := cfg.Validate()
	assert.True(t, containsSubstring(errs, "both default"))
}

func TestValidate_DefaultsPerType(t *testing.T) {
	a := validInstance("radarr-a", "radarr")
	a.Default = true
	b := validInstance("sonarr-a", "sonarr")
	b.Default = true
	cfg := &Config{Instances: []InstanceConfig{a, b}}

	assert.Empty(t, cfg.Validate(), "one default per type is fine")
}

func TestValidate_DisabledDefaultIgnored(t *testing.T) {
	a := validInstance("radarr-a", "radarr")
	a.Default = true
	b := validInstance("radarr-b", "radarr")
	b.Default = true
	b.Disabled = true
	cfg := &Config{Instances: []InstanceConfig{a, b}}

	assert.Empty(t, cfg.Validate(), "disabled default should not conflict")
}

func containsSubstring(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}
