package s3store

import "errors"

var (
	ErrMissingBucket      = errors.New("s3store: bucket and region are required")
	ErrBucketNotFound     = errors.New("s3store: bucket not found")
	ErrAccessDenied       = errors.New("s3store: access denied")
	ErrServiceUnavailable = errors.New("s3store: service unavailable")
	ErrOperationTimeout   = errors.New("s3store: operation timeout")
	ErrOperationCanceled  = errors.New("s3store: operation canceled")
)
