// Package blobstore abstracts where snapshot files live.
//
// Snapshots are written and read as whole objects, so the interface is a
// small Put/Open/Delete/List surface rather than a random-access one. The
// package ships a local-filesystem store with atomic writes and an in-memory
// store for tests; the minio and s3 subpackages add object-storage backends.
package blobstore
