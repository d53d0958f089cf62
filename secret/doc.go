// Package secret resolves credentials referenced from configuration.
//
// A configuration value may be:
//   - a literal, possibly containing ${VAR} references (see ExpandEnvStrict)
//   - a full reference, for example secretref:env:ERP_API_KEY or
//     secretref:file:/run/secrets/erp_api_key
//   - text with inline references, for example "Bearer secretref:env:TOKEN"
//
// Resolved values are never logged.
package secret
