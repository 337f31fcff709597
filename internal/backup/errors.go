package backup

import "errors"

// Sentinel errors for the backup/restore subsystem. Handlers map these to
// HTTP statuses; everything else is treated as an internal error.
var (
	// ErrBadRequest covers invalid caller input: missing key, both or
	// neither of backup id and file supplied, unknown restore mode.
	ErrBadRequest = errors.New("bad request")

	// ErrNotFound is returned when a backup record or its stored object
	// does not exist.
	ErrNotFound = errors.New("backup not found")

	// ErrStorageUnavailable is returned when the object store is not
	// configured or unreachable.
	ErrStorageUnavailable = errors.New("storage not configured")

	// ErrDecryptionFailed is returned when the authentication tag does not
	// verify. A wrong key and a corrupted blob are indistinguishable and
	// reported identically.
	ErrDecryptionFailed = errors.New("decryption failed - check that the encryption key is correct")

	// ErrMalformedArchive is returned when decryption succeeds but the
	// plaintext is not a valid archive document.
	ErrMalformedArchive = errors.New("malformed backup archive")

	// ErrInvalidArchive is returned when a blob is too short to contain an
	// IV and any ciphertext at all.
	ErrInvalidArchive = errors.New("invalid backup file")

	// ErrInvalidEncoding is returned for odd-length or non-hex key input.
	ErrInvalidEncoding = errors.New("invalid hex encoding")
)
