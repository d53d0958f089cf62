// Package config loads erpgate configuration.
//
// Configuration comes from an optional YAML file, then environment
// variables, then secret resolution:
//
//   - Defaults fill every field.
//   - The file, when given, overrides defaults.
//   - ERP_URL, ERP_API_KEY, LOG_LEVEL, OUTPUT_FORMAT, MCP_TRANSPORT,
//     MCP_HTTP_ADDR, MCP_API_KEYS, MCP_AUTH_ENABLED, CACHE_ENABLED,
//     CACHE_STORE and CACHE_PATH override the file. DOLIBARR_URL,
//     DOLIBARR_API_KEY and MCP_API_KEY are accepted as fallbacks.
//   - Credential fields may hold ${VAR} or secretref:<provider>:<ref>
//     values, resolved last.
//
// The result is validated once and passed by value; nothing re-reads it.
package config
