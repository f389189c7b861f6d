// Package validation implements the rule-based validators every boundary in
// the pipeline must pass data through: dashboard cells, environment
// variables, command arguments, and external-API JSON responses.
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shortforge/contentpipe/internal/platform/logger"
)

// SafeInt reads an environment variable and clamps it to [min, max],
// falling back to def on absence or parse failure. It replaces any use of
// generic string-to-code evaluation in config paths with a typed coercer.
func SafeInt(key string, min, max, def int, log *logger.Logger) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		if log != nil {
			log.Warn("env var not a valid int, using default", "env_var", key, "default", def)
		}
		return def
	}
	return clampInt(v, min, max)
}

func SafeFloat(key string, min, max, def float64, log *logger.Logger) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		if log != nil {
			log.Warn("env var not a valid float, using default", "env_var", key, "default", def)
		}
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func SafeBool(key string, def bool, log *logger.Logger) bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v := strings.TrimSpace(raw)
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		if log != nil {
			log.Warn("env var not a valid bool, using default", "env_var", key, "default", def)
		}
		return def
	}
}

// SafeEnum returns the environment value if it is a member of allowed
// (case-insensitive), else def.
func SafeEnum(key string, allowed []string, def string, log *logger.Logger) string {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v := strings.TrimSpace(raw)
	for _, a := range allowed {
		if strings.EqualFold(a, v) {
			return a
		}
	}
	if log != nil {
		log.Warn("env var not an allowed value, using default", "env_var", key, "value", v, "default", def)
	}
	return def
}

func SafeString(key, def string, log *logger.Logger) string {
	raw, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("env var not found, using default", "env_var", key)
		}
		return def
	}
	return raw
}

// SafePathUnder resolves candidate against root, following symlinks, and
// returns an error if the resolved path escapes root. It is the only
// sanctioned way to accept a filesystem path from configuration or external
// data.
func SafePathUnder(root, candidate string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	joined := filepath.Join(absRoot, candidate)
	resolvedRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		// root may not exist yet (first run); fall back to the lexical root.
		resolvedRoot = absRoot
	}
	resolved := joined
	if _, err := os.Lstat(joined); err == nil {
		if r, err := filepath.EvalSymlinks(joined); err == nil {
			resolved = r
		}
	}
	rel, err := filepath.Rel(resolvedRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes root %q", candidate, root)
	}
	return joined, nil
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
