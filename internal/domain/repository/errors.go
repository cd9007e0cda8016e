package repository

import "errors"

var (
	// ErrArtifactNotFound is returned when an artifact is unknown or has expired.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")
)
