package config

import (
	"fmt"
	"strconv"
	"strings"
)

// lookupFunc matches os.LookupEnv.
type lookupFunc func(string) (string, bool)

// applyEnv overlays environment variables. A variable set to the empty
// string counts as unset.
func (c *Config) applyEnv(lookup lookupFunc) error {
	get := func(names ...string) (string, bool) {
		for _, n := range names {
			if v, ok := lookup(n); ok && v != "" {
				return v, true
			}
		}
		return "", false
	}
	boolean := func(name string, dst *bool) error {
		v, ok := get(name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrBadEnv, name, v)
		}
		*dst = b
		return nil
	}

	if v, ok := get("ERP_URL", "DOLIBARR_URL"); ok {
		c.Backend.URL = v
	}
	if v, ok := get("ERP_API_KEY", "DOLIBARR_API_KEY"); ok {
		c.Backend.APIKey = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Telemetry.LogLevel = strings.ToLower(v)
	}
	if v, ok := get("OUTPUT_FORMAT"); ok {
		c.Output.Format = strings.ToLower(v)
	}
	if v, ok := get("MCP_TRANSPORT"); ok {
		c.Server.Transport = strings.ToLower(v)
	}
	if v, ok := get("MCP_HTTP_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := get("MCP_API_KEYS", "MCP_API_KEY"); ok {
		c.Server.APIKeys = splitList(v)
	}
	if v, ok := get("CACHE_STORE"); ok {
		c.Cache.Store = strings.ToLower(v)
	}
	if v, ok := get("CACHE_PATH"); ok {
		c.Cache.Path = v
	}
	if err := boolean("MCP_AUTH_ENABLED", &c.Server.AuthEnabled); err != nil {
		return err
	}
	return boolean("CACHE_ENABLED", &c.Cache.Enabled)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
