package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/namechain/registry/interfaces"
)

// Factory creates journal backends from URI strings and assembles
// multi-backend configurations for redundant persistence.
type Factory struct {
	log *slog.Logger
}

// NewFactory creates a new factory instance.
func NewFactory(logger *slog.Logger) *Factory {
	return &Factory{log: logger}
}

// StorageBackendFor creates a journal backend from a location URI.
// The URI format is [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - file:// - local filesystem
//   - s3:// - Amazon S3 or compatible object storage
//   - ipfs:// - IPFS node
//   - vault:// - HashiCorp Vault KV v2
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (f *Factory) StorageBackendFor(locationURI interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	u, err := url.Parse(string(locationURI))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return f.createFileBackend(u)
	case "s3":
		return f.createS3Backend(u)
	case "ipfs":
		return f.createIPFSBackend(u)
	case "vault":
		return f.createVaultBackend(u)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme %s", interfaces.ErrInvalidLocationURI, u.Scheme)
	}
}

// CreateMultiBackend creates a multi-storage backend from a list of
// location URIs. Invalid URIs are skipped with a warning; an error is
// returned only when no valid backend could be created at all.
func (f *Factory) CreateMultiBackend(locationURIs []interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(locationURIs))

	for _, uri := range locationURIs {
		backend, err := f.StorageBackendFor(uri)
		if err != nil {
			f.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("locationURI", string(uri)))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid storage backends created")
	}

	return NewMultiBackend(backends, f.log), nil
}

// createFileBackend creates a local filesystem backend.
// URI format: file:///var/lib/registry/journal
func (f *Factory) createFileBackend(u *url.URL) (interfaces.StorageBackend, error) {
	f.log.Debug("Creating file backend", slog.String("uri", u.String()))

	path := u.Path
	if u.Host != "" {
		path = u.Host + path
	}
	if path == "" {
		return nil, fmt.Errorf("%w: file URI requires a path", interfaces.ErrInvalidLocationURI)
	}

	return NewFileBackend(path, f.log)
}

// createS3Backend creates an S3 backend.
// URI format: s3://accessKey:secretKey@bucket/prefix?region=us-east-1&endpoint=minio:9000
func (f *Factory) createS3Backend(u *url.URL) (interfaces.StorageBackend, error) {
	f.log.Debug("Creating S3 backend", slog.String("host", u.Host))

	bucket := u.Host
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 URI requires a bucket", interfaces.ErrInvalidLocationURI)
	}

	prefix := strings.Trim(u.Path, "/")
	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}
	endpoint := query.Get("endpoint")

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}

	return NewS3Backend(bucket, prefix, region, endpoint, accessKey, secretKey, f.log)
}

// createIPFSBackend creates an IPFS backend.
// URI format: ipfs://127.0.0.1:5001/
func (f *Factory) createIPFSBackend(u *url.URL) (interfaces.StorageBackend, error) {
	f.log.Debug("Creating IPFS backend", slog.String("uri", u.String()))

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: ipfs URI requires a host", interfaces.ErrInvalidLocationURI)
	}

	port := u.Port()
	if port == "" {
		port = "5001"
	}

	return NewIPFSBackend(host, port, f.log)
}

// createVaultBackend creates a Vault backend.
// URI format: vault://vault.example.com:8200/secret/journal?token=...
// The path holds the KV mount followed by the data path. The token
// falls back to the VAULT_TOKEN environment variable when omitted.
func (f *Factory) createVaultBackend(u *url.URL) (interfaces.StorageBackend, error) {
	f.log.Debug("Creating Vault backend", slog.String("host", u.Host))

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: vault URI requires /mount/path", interfaces.ErrInvalidLocationURI)
	}

	scheme := "https"
	if u.Query().Get("insecure") == "true" {
		scheme = "http"
	}
	address := fmt.Sprintf("%s://%s", scheme, u.Host)
	token := u.Query().Get("token")

	return NewVaultBackend(address, parts[0], parts[1], token, f.log)
}
