// Package s3 provides a blobstore.Store backed by Amazon S3 using the AWS
// SDK v2. Uploads stream through the transfer manager, so large snapshots do
// not buffer fully in memory.
package s3
