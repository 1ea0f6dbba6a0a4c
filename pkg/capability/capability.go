// Package capability probes optional host facilities (external encoders, the
// system clipboard) and honours FRACTALCAP_* environment overrides so that
// doctor output and tests are reproducible.
package capability

import (
	"os"
	"os/exec"
	"strings"
)

// Status enumerates coarse availability results.
type Status string

const (
	// StatusUnknown indicates no explicit signal about the facility.
	StatusUnknown Status = "unknown"
	// StatusAvailable signals the facility can be used.
	StatusAvailable Status = "available"
	// StatusDisabled means an operator switched the facility off.
	StatusDisabled Status = "disabled"
	// StatusUnavailable reports the facility is missing on this host.
	StatusUnavailable Status = "unavailable"
)

// Environment variables consulted before probing the host.
const (
	EnvFFmpeg    = "FRACTALCAP_FFMPEG"
	EnvClipboard = "FRACTALCAP_CLIPBOARD"
)

// ProbeResult represents the coarse state for one facility.
type ProbeResult struct {
	Status   Status
	Message  string
	Guidance string
	// Path is set when the facility resolved to an executable.
	Path string
}

// LookupEnvFunc exposes environment probing for testability.
type LookupEnvFunc func(string) (string, bool)

// LookPathFunc resolves an executable name.
type LookPathFunc func(string) (string, error)

var lookupEnv = func(key string) (string, bool) {
	return os.LookupEnv(key)
}

// ProbeFFmpeg checks whether the ffmpeg binary can be executed.
func ProbeFFmpeg(binary string, lookup LookupEnvFunc, lookPath LookPathFunc) ProbeResult {
	if lookup == nil {
		lookup = lookupEnv
	}
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if value, ok := lookup(EnvFFmpeg); ok {
		res := interpretFlag("ffmpeg", value)
		if res.Status != StatusAvailable {
			return res
		}
	}
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	path, err := lookPath(binary)
	if err != nil {
		return ProbeResult{
			Status:   StatusUnavailable,
			Message:  "ffmpeg not found: " + err.Error(),
			Guidance: "install ffmpeg or set capture.ffmpeg_binary; recording falls back to motion JPEG",
		}
	}
	return ProbeResult{Status: StatusAvailable, Message: "ffmpeg found", Path: path}
}

// ProbeClipboard checks whether the system image clipboard can be initialised.
func ProbeClipboard(lookup LookupEnvFunc, initFn func() error) ProbeResult {
	if lookup == nil {
		lookup = lookupEnv
	}
	if value, ok := lookup(EnvClipboard); ok {
		res := interpretFlag("clipboard", value)
		if res.Status != StatusAvailable {
			return res
		}
	}
	if initFn == nil {
		return ProbeResult{Status: StatusUnknown, Message: "clipboard state unknown"}
	}
	if err := initFn(); err != nil {
		return ProbeResult{
			Status:   StatusUnavailable,
			Message:  "clipboard unavailable: " + err.Error(),
			Guidance: "a display server is required; use the download sink instead",
		}
	}
	return ProbeResult{Status: StatusAvailable, Message: "clipboard ready"}
}

func interpretFlag(name, value string) ProbeResult {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "available", "enabled", "on", "yes", "true", "1":
		return ProbeResult{Status: StatusAvailable, Message: name + " enabled via env override"}
	case "disabled", "off", "no", "false", "0":
		return ProbeResult{Status: StatusDisabled, Message: name + " disabled via env override", Guidance: "unset FRACTALCAP_* overrides to re-test"}
	case "unavailable", "unsupported", "missing":
		return ProbeResult{Status: StatusUnavailable, Message: name + " reported unavailable via env override"}
	default:
		return ProbeResult{Status: StatusUnknown, Message: name + " state unknown"}
	}
}

// Usable reports whether the facility may be used.
func (p ProbeResult) Usable() bool {
	return p.Status == StatusAvailable
}

// StatusString returns the string representation for manifest integration.
func (p ProbeResult) StatusString() string {
	if p.Status == "" {
		return string(StatusUnknown)
	}
	return string(p.Status)
}
