// Package s3 provides a minimal client for S3-compatible object storage.
//
// Only bucket existence checks and bucket creation are needed; requests use
// path-style addressing so in-cluster gateways and IP endpoints work without
// wildcard DNS.
package s3
