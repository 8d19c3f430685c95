package archive

import (
	"fmt"

	digest "github.com/opencontainers/go-digest"
)

// ExtractError reports a layer that could not be materialized. It aborts
// the whole catalog, no partial cache is usable.
type ExtractError struct {
	Layer digest.Digest
	err   error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract layer %s: %v", e.Layer, e.err)
}

func (e *ExtractError) Unwrap() error { return e.err }

func (e *ExtractError) Is(err error) bool {
	_, ok := err.(*ExtractError)
	return ok
}
