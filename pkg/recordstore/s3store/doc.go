// Package s3store persists record store snapshots as objects in Amazon S3 or
// an S3-compatible service (MinIO, R2).
//
// A collection lives at <prefix>/<name>.json. A missing object is an empty
// collection; other errors map onto the package sentinels:
//   - NoSuchBucket -> ErrBucketNotFound
//   - AccessDenied -> ErrAccessDenied
//   - SlowDown, ServiceUnavailable -> ErrServiceUnavailable
//   - context deadline/cancel -> ErrOperationTimeout / ErrOperationCanceled
package s3store
