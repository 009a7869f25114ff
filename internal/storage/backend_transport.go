package storage

import (
	"context"

	"episodic-memory/internal/resilience"
)

// BackendTransport adapts a Backend's keyed Put/Get to the
// resilience.Transport contract, so a CompressedTransport can decorate
// it with compression (spec §4.7.2). Backend already provides atomic,
// in-process delivery, so Send and SendAsync both resolve synchronously;
// SendAsync simply discards the would-be response.
type BackendTransport struct {
	backend Backend
}

// NewBackendTransport wraps backend as a resilience.Transport.
func NewBackendTransport(backend Backend) *BackendTransport {
	return &BackendTransport{backend: backend}
}

// Send persists data under key, returning it back as the response.
func (t *BackendTransport) Send(ctx context.Context, key, data []byte) (resilience.Response, error) {
	if err := t.backend.Put(ctx, key, data); err != nil {
		return resilience.Response{}, err
	}
	return resilience.Response{Data: data}, nil
}

// SendAsync persists data under key without returning a response.
func (t *BackendTransport) SendAsync(ctx context.Context, key, data []byte) error {
	return t.backend.Put(ctx, key, data)
}

// HealthCheck reports the backend reachable as long as ctx hasn't
// already expired; Backend has no network link whose liveness could
// independently fail.
func (t *BackendTransport) HealthCheck(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Metadata identifies the backend as the transport's delivery mechanism.
func (t *BackendTransport) Metadata() resilience.Metadata {
	return resilience.Metadata{Name: "storage-backend", Version: "1"}
}
