package port

import "errors"

// Errors repository implementations translate driver failures into so the
// application layer can react without knowing the storage engine.
var (
	// ErrUnavailable is returned when storage cannot be reached or does not
	// answer in time. The operation may succeed on retry.
	ErrUnavailable = errors.New("persistence unavailable")

	// ErrNotFound is returned by write operations whose target row vanished
	// between a caller's existence check and the update.
	ErrNotFound = errors.New("record not found")
)
