// Package blob defines the synchronous blob facility the memsnap engine persists
// its snapshots to.
//
// Implementations:
//   - memory: A concurrent map, nothing survives the process
//   - fs: One file per blob in a directory of an afero filesystem, replaced atomically on every Set
//
// Blob names are free form strings. The memsnap engine stores every database
// under a common namespace prefix and derives its directory listing from Keys.
package blob
