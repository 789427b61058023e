// Package cmd implements the command-line interface for wKV. It opens the
// wallet databases of the configured backend directly, there is no server.
//
// The package is organized into several subpackages:
//
//   - database: Commands for database operations (get, put, scan, etc.) and a
//     performance test
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All flags can also be set as environment variables of the form WKV_<flag>
// (e.g. WKV_DATA_DIR=/var/lib/wkv), optionally loaded from .env or .env.local.
//
// See wkv -help for a list of all commands.
package cmd
