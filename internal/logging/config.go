// Package logging applies environment-driven overrides to the global
// zerolog level once per process, split into a runtime profile and a test
// profile the way the teacher repo's ConfigureRuntime/ConfigureTests split
// worked, but driving zerolog directly instead of an intermediate logging
// facade.
package logging

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel   = "MOLDFEED_LOG_LEVEL"
	EnvLogNoColor = "MOLDFEED_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

var configureOnce sync.Once

// ConfigureRuntime applies the production logging profile, once per
// process.
func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

// ConfigureTests applies the debug-level test profile, once per process.
func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure applies profile defaults then environment overrides to the
// global zerolog level.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		level := defaultLevel(profile)
		if override, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
			level = override
		}
		zerolog.SetGlobalLevel(level)
	})
}

func defaultLevel(profile Profile) zerolog.Level {
	if profile == ProfileTest {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// NoColor resolves the MOLDFEED_LOG_NOCOLOR override for InitLogger
// callers.
func NoColor() bool {
	v, _ := parseBool(os.Getenv(EnvLogNoColor))
	return v
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
