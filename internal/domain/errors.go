package domain

import "errors"

var (
	// ErrPathConstruction reports a request whose date, hour, offset, member
	// or variant cannot produce a valid object key.
	ErrPathConstruction = errors.New("invalid forecast request")

	// ErrRemoteObjectNotFound reports a key that does not exist in the store.
	ErrRemoteObjectNotFound = errors.New("remote object not found")

	// ErrDatasetOpen reports files that cannot be concatenated along time.
	ErrDatasetOpen = errors.New("dataset open failed")

	// ErrReachNotFound reports a reach identifier missing from a dataset's
	// feature axis.
	ErrReachNotFound = errors.New("reach not found")

	// ErrDownloadVerification reports a download batch that left fewer files
	// on disk than were requested.
	ErrDownloadVerification = errors.New("download verification failed")

	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidRange     = errors.New("invalid date range")
)
