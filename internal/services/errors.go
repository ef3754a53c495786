package services

import (
	"errors"
	"fmt"
)

// Domain error taxonomy for the retrieval core. Handlers map these to HTTP
// status codes; platform packages keep their own operation errors and are
// translated into these at the service boundary.
var (
	// ErrInvalidQuery means neither text nor image was supplied.
	ErrInvalidQuery = errors.New("invalid query: need text, image, or both")
	// ErrDecode means the supplied image bytes could not be decoded.
	ErrDecode = errors.New("image decode failed")
	// ErrModelUnavailable means the encoder backend is not ready.
	ErrModelUnavailable = errors.New("embedding model unavailable")
	// ErrFusionInput means a required modality could not be encoded.
	ErrFusionInput = errors.New("required modality encoding failed")
	// ErrRetrievalUnavailable means every vector index query failed.
	ErrRetrievalUnavailable = errors.New("all vector index queries failed")
)

// DataIntegrityError reports a vector index hit that resolved to no ledger
// row. It signals drift between the vector store and the metadata store and
// is never silently swallowed.
type DataIntegrityError struct {
	Collection string
	PointID    string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf(
		"data integrity violation: point %q in collection %q has no embedding record",
		e.PointID,
		e.Collection,
	)
}
