// Package blob talks to the content-addressed blob store: aggregator mirrors
// serve blobs by id, publishers accept uploads and return the assigned id.
// Endpoints are tried in their configured order; the first success wins.
package blob

import (
	"errors"
	"fmt"
	"regexp"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ErrEmptyBlob marks a mirror that answered with no bytes. It counts as a
// failed attempt so the next mirror is tried.
var ErrEmptyBlob = errors.New("mirror returned an empty blob")

// ValidID reports whether id is safe to use as a blob id and a cache file name.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// AllMirrorsFailedError is returned once every mirror has been tried.
type AllMirrorsFailedError struct {
	BlobID   string
	Attempts int
	Last     error
}

func (e *AllMirrorsFailedError) Error() string {
	return fmt.Sprintf("all %d mirrors failed for blob %s: %v", e.Attempts, e.BlobID, e.Last)
}

func (e *AllMirrorsFailedError) Unwrap() error { return e.Last }

// AllPublishersFailedError is returned once every publisher has rejected an upload.
type AllPublishersFailedError struct {
	Attempts int
	Last     error
}

func (e *AllPublishersFailedError) Error() string {
	return fmt.Sprintf("all %d publishers failed: %v", e.Attempts, e.Last)
}

func (e *AllPublishersFailedError) Unwrap() error { return e.Last }

// StatusError is a non-success HTTP answer from an endpoint.
type StatusError struct {
	Endpoint string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s answered %d", e.Endpoint, e.Status)
}
