// Package common provides the configuration and logging shared by the wKV
// library and its command-line interface.
//
// Key Components:
//
//   - StoreConfig: Selects the backend (idb or memsnap), the facility it runs on
//     (bolt or leveldb object store, fs or memory blob storage) and the naming
//     parameters (store name, blob namespace). Validate checks the selectors,
//     String renders the configuration for the CLI.
//
//   - Logger: Custom logging implementation that plugs into the dragonboat
//     logger package. Every wKV package takes a named logger with
//     logger.GetLogger; InitLoggers installs the formatting factory and sets the
//     level of all of them.
package common
