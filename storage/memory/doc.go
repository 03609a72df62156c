// Package memory provides an in-memory implementation of all storage
// interfaces. It is suitable for development, testing, and single-instance
// deployments. An optional Persister can be attached for crash recovery;
// the in-memory maps remain the source of truth while the process lives.
package memory
