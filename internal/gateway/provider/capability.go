package provider

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Capabilities is an immutable record of which credentials the process
// holds, probed from the environment once at startup and passed to the
// backend factory. Nothing else reads the environment for keys.
type Capabilities struct {
	keys map[string]string
}

// DetectCapabilities probes each named environment variable. Duplicate and
// empty names are ignored.
func DetectCapabilities(envNames []string) Capabilities {
	keys := make(map[string]string, len(envNames))
	for _, name := range envNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, seen := keys[name]; seen {
			continue
		}
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			keys[name] = val
		}
	}
	return Capabilities{keys: keys}
}

func (c Capabilities) Has(envName string) bool {
	_, ok := c.keys[strings.TrimSpace(envName)]
	return ok
}

func (c Capabilities) Key(envName string) (string, bool) {
	val, ok := c.keys[strings.TrimSpace(envName)]
	return val, ok
}

// Summary renders which credentials were found, masked, for startup logs.
func (c Capabilities) Summary() string {
	if len(c.keys) == 0 {
		return "no credentials detected"
	}
	names := make([]string, 0, len(c.keys))
	for name := range c.keys {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", name, maskKey(c.keys[name])))
	}
	return strings.Join(parts, " ")
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
