package config

import (
	"fmt"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

var validInstanceTypes = map[string]bool{
	"radarr": true, "sonarr": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	// Server validation
	if c.Server.Port != 0 && (c.Server.Port < 1 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server.port: must be between 1 and 65535, got %d", c.Server.Port))
	}
	if !validLogLevels[c.Server.LogLevel] {
		errs = append(errs, fmt.Sprintf("server.log_level: must be one of debug, info, warn, error; got %q", c.Server.LogLevel))
	}

	// Instance validation
	seen := make(map[string]bool)
	defaults := make(map[string]string)
	for i, inst := range c.Instances {
		prefix := fmt.Sprintf("instances[%d]", i)
		if inst.Name == "" {
			errs = append(errs, prefix+".name: required")
		} else if seen[inst.Name] {
			errs = append(errs, fmt.Sprintf("%s.name: duplicate instance name %q", prefix, inst.Name))
		}
		seen[inst.Name] = true

		if !validInstanceTypes[inst.Type] {
			errs = append(errs, fmt.Sprintf("%s.type: must be radarr or sonarr; got %q", prefix, inst.Type))
		}
		if inst.URL == "" {
			errs = append(errs, prefix+".url: required")
		}
		if inst.APIKey == "" {
			errs = append(errs, prefix+".api_key: required")
		}
		if inst.Default && !inst.Disabled {
			if prev, ok := defaults[inst.Type]; ok {
				errs = append(errs, fmt.Sprintf("%s: %q and %q are both default %s instances", prefix, prev, inst.Name, inst.Type))
			}
			defaults[inst.Type] = inst.Name
		}
	}

	// Interval validation
	if c.Approvals.ExpireAfter < 0 {
		errs = append(errs, "approvals.expire_after: must not be negative")
	}
	if c.Approvals.SweepInterval < 0 {
		errs = append(errs, "approvals.sweep_interval: must not be negative")
	}
	if c.Quota.UsageRetention < 0 {
		errs = append(errs, "quota.usage_retention: must not be negative")
	}

	return errs
}
