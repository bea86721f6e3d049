package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// DebugEnvVar enables debug mode when set to anything but "" or "0"
const DebugEnvVar = "MIRRORS_PLUGIN_DEBUG"

// Invocation holds the inputs the host mirror process passes to the plugin
type Invocation struct {
	DataDir string
	LogDir  string
	Debug   bool
}

// ParseArgs reads the positional layout <dataDir> <unused> <logDir>.
// Only the data directory is required.
func ParseArgs(args []string) (*Invocation, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return nil, fmt.Errorf("data directory argument is required")
	}
	inv := &Invocation{DataDir: args[0]}
	if len(args) > 2 {
		inv.LogDir = args[2]
	}
	return inv, nil
}

// ParseArgsJSON reads the JSON blob form of the invocation:
// {"data-directory": ..., "log-directory": ..., "debug-flag": ...}
func ParseArgsJSON(blob string) (*Invocation, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse invocation json: %w", err)
	}

	inv := &Invocation{}
	if s, ok := raw["data-directory"].(string); ok {
		inv.DataDir = s
	}
	if s, ok := raw["log-directory"].(string); ok {
		inv.LogDir = s
	}
	if v, ok := raw["debug-flag"]; ok {
		inv.Debug = truthy(v)
	}

	if inv.DataDir == "" {
		return nil, fmt.Errorf("invocation json has no data-directory")
	}
	return inv, nil
}

// DebugFromEnv reports whether the debug environment variable is set
func DebugFromEnv(getenv func(string) string) bool {
	v := getenv(DebugEnvVar)
	return v != "" && v != "0"
}

// apply overrides config values with the invocation.
// Debug shows the browser and turns on debug logging.
func (inv *Invocation) apply(v *viper.Viper) {
	if inv.DataDir != "" {
		v.Set("data_dir", inv.DataDir)
	}
	if inv.LogDir != "" {
		v.Set("log_dir", inv.LogDir)
	}
	if inv.Debug {
		v.Set("debug", true)
		v.Set("logging.level", "debug")
		v.Set("browser.headless", false)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
		return t != "" && t != "0"
	default:
		return false
	}
}
