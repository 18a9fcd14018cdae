// Package config provides configuration loading and validation for kilncat.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (KILNCAT_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with KILNCAT_ prefix:
//   - server.port → KILNCAT_SERVER_PORT
//   - database.type → KILNCAT_DATABASE_TYPE
//   - auth.issuer → KILNCAT_AUTH_ISSUER
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port and max_upload_size
//   - Service: cleanup_timeout and op_timeout for catalog operations
//   - Database: type, DSN, and table names
//   - Storage: blob storage path
//   - Auth: token issuer, audience, signing keys URL, key cache TTL
//   - Signing: signed blob URL secret, base URL, and TTL
//   - CORS: cross-origin resource sharing settings
//   - Log: logging level
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Port must be 1-65535
//   - Signed URL TTL must be 1-10080 minutes
//   - Log level must be debug, info, warn, or error
//   - Table names must be lowercase identifiers
//
// Auth and signing credentials are optional at load time; commands that need
// them check for their presence at startup.
package config
