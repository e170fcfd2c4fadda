// Package storage implements content-addressed persistence for bridge
// message journals. Records are keyed by the SHA-256 hash of their
// payload, so every backend is automatically deduplicating and
// verifiable on read.
//
// Backends are created from location URIs through StorageBackendFactory:
//
//   - file:///var/lib/registry/journal - local filesystem
//   - s3://bucket/prefix?region=us-east-1 - Amazon S3 or compatible
//   - ipfs://127.0.0.1:5001/ - IPFS node or gateway
//   - vault://vault.example.com:8200/secret/journal - HashiCorp Vault KV
//
// Multiple URIs can be aggregated into a MultiBackend which writes to
// every available backend and reads from the first one holding the
// content, giving the relay redundant durability without coordination.
package storage
