package common

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Store configuration struct
// --------------------------------------------------------------------------

// Backend selects the database engine behind a store
type Backend string

const (
	BackendIDB     Backend = "idb"
	BackendMemSnap Backend = "memsnap"
)

// Engine selects the object store the idb backend runs on
type Engine string

const (
	EngineBolt    Engine = "bolt"
	EngineLevelDB Engine = "leveldb"
)

// BlobKind selects the blob storage the memsnap backend persists to
type BlobKind string

const (
	BlobFS     BlobKind = "fs"
	BlobMemory BlobKind = "memory"
)

// StoreConfig holds all parameters needed to open wallet databases
type StoreConfig struct {
	Backend Backend
	DataDir string

	// idb backend
	Engine    Engine
	StoreName string

	// memsnap backend
	Blob      BlobKind
	Namespace string

	// Logging configuration
	LogLevel string

	// Metrics
	Metrics bool
}

// Validate checks that every selector holds a known value
func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case BackendIDB:
		if c.Engine != EngineBolt && c.Engine != EngineLevelDB {
			return fmt.Errorf("invalid engine %q, must be one of bolt, leveldb", c.Engine)
		}
		if c.StoreName == "" {
			return fmt.Errorf("store name must not be empty")
		}
	case BackendMemSnap:
		if c.Blob != BlobFS && c.Blob != BlobMemory {
			return fmt.Errorf("invalid blob storage %q, must be one of fs, memory", c.Blob)
		}
	default:
		return fmt.Errorf("invalid backend %q, must be one of idb, memsnap", c.Backend)
	}
	if c.DataDir == "" && !(c.Backend == BackendMemSnap && c.Blob == BlobMemory) {
		return fmt.Errorf("data directory must not be empty")
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *StoreConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Store")
	addField("Backend", string(c.Backend))
	addField("Data Directory", c.DataDir)

	switch c.Backend {
	case BackendIDB:
		addSection("Object Store")
		addField("Engine", string(c.Engine))
		addField("Store Name", c.StoreName)
	case BackendMemSnap:
		addSection("Snapshot")
		addField("Blob Storage", string(c.Blob))
		addField("Namespace", c.Namespace)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)
	addField("Metrics", fmt.Sprintf("%t", c.Metrics))

	return sb.String()
}
