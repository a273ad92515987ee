// Package config loads qtodash configuration.
//
// Values are resolved in this order, highest priority first:
//
//  1. Environment variables with the QTODASH_ prefix (a .env file in the
//     working directory is loaded into the environment first)
//  2. A YAML file: QTODASH_CONFIG_FILE, or config.yaml / configs/config.yaml
//  3. The `default` struct tags
//
// Nested sections map to prefixed variable names:
//
//	QTODASH_SERVER_PORT=8080
//	QTODASH_DATASET_TOP_N=20
//	QTODASH_DATASET_CORRECT_OTHER=true
//	QTODASH_SHEETS_CREDENTIALS_FILE=/secrets/sa.json
//
// Load validates the result; use Default in tests.
package config
