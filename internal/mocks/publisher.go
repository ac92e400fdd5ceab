package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

// AuditPublisherMock stands in for the broker behind the audit emitter. It
// also keeps every published event so tests can inspect envelopes directly.
type AuditPublisherMock struct {
	mock.Mock

	mu        sync.Mutex
	published map[string][]any
}

func (m *AuditPublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	m.mu.Lock()
	if m.published == nil {
		m.published = make(map[string][]any)
	}
	m.published[routingKey] = append(m.published[routingKey], event)
	m.mu.Unlock()

	return m.Called(ctx, routingKey, event).Error(0)
}

func (m *AuditPublisherMock) Close() error {
	return m.Called().Error(0)
}

// Published returns the events sent under routingKey, in order.
func (m *AuditPublisherMock) Published(routingKey string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.published[routingKey]...)
}
