package ir

// Version constants for the record format and the library.
const (
	// FormatVersion is the chronicle record format version written into
	// every header. Readers reject any other value.
	FormatVersion byte = 1

	// LibraryVersion is the ISAAC core library version.
	LibraryVersion = "0.1.0"
)
