// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"bigdaytimer-premium/internal/domain"
	"bigdaytimer-premium/internal/domain/model"
	"bigdaytimer-premium/internal/domain/ports/adapter"
	"bigdaytimer-premium/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// MockCheckoutProvider records pay link requests and returns LinkFunc's result.
type MockCheckoutProvider struct {
	mu       sync.Mutex
	MockMode bool
	Requests []adapter.PayLinkRequest
	LinkFunc func(req adapter.PayLinkRequest) (string, error)
}

func (m *MockCheckoutProvider) Name() string { return "mock-provider" }
func (m *MockCheckoutProvider) Mock() bool   { return m.MockMode }

func (m *MockCheckoutProvider) CreatePayLink(ctx context.Context, req adapter.PayLinkRequest) (string, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.LinkFunc != nil {
		return m.LinkFunc(req)
	}
	return "https://pay.test/" + req.Passthrough, nil
}

// MockVerifier fails with Err, and counts calls.
type MockVerifier struct {
	Err   error
	Calls int
}

func (m *MockVerifier) Verify(body []byte, signature string) error {
	m.Calls++
	return m.Err
}

// MockEntitlementRepo fails every call with Err; writes counts Update calls
// that reached it.
type MockEntitlementRepo struct {
	Err    error
	Writes int
}

var _ repository.EntitlementRepository = (*MockEntitlementRepo)(nil)

func (m *MockEntitlementRepo) Get(ctx context.Context, userID string) (*model.EntitlementRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return nil, domain.ErrNotFound
}

func (m *MockEntitlementRepo) Update(ctx context.Context, userID string, fn repository.UpdateFunc) (*model.EntitlementRecord, error) {
	m.Writes++
	if m.Err != nil {
		return nil, m.Err
	}
	next, _, err := fn(nil)
	return next, err
}
