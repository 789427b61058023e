package blob

// Storage is a synchronous named blob store. Every call is atomic: a reader
// sees a blob either as it was before a Set or as it is after it, never a
// partial write.
type Storage interface {
	// Get returns the blob stored under name. found is false if there is none.
	Get(name string) (data []byte, found bool, err error)

	// Set stores data under name, replacing any previous blob.
	Set(name string, data []byte) (err error)

	// Keys returns the names of all stored blobs in no particular order.
	Keys() (names []string, err error)
}
