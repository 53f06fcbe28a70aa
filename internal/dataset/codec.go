package dataset

// Codec reads and writes the on-disk dataset representation. The migration
// path depends only on this interface so tests can substitute an in-memory
// implementation.
type Codec interface {
	// Open reads and decodes a dataset file. A file that cannot be decoded
	// is a corrupt capture: callers delete it rather than retry.
	Open(path string) (*Dataset, error)

	// Write encodes the dataset to path, replacing any existing file.
	Write(ds *Dataset, path string) error
}
