package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"motors-client/internal/mocks"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	pub := new(mocks.AuditPublisherMock)
	emitter := NewAuditEmitter(pub, "audit.client", "motors-client", "test", nil)
	emitter.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	pub.On("Publish", mock.Anything, "audit.client", mock.AnythingOfType("telemetry.AuditEnvelope")).Return(nil).Once()

	emitter.Emit(context.Background(), AuditEvent{Level: "warning", Component: "ws", Text: "forced logout", UserID: "u1"})

	pub.AssertExpectations(t)
	events := pub.Published("audit.client")
	require.Len(t, events, 1)
	got, ok := events[0].(AuditEnvelope)
	require.True(t, ok)
	require.NotNil(t, got.UserID)
	assert.Equal(t, "u1", *got.UserID)
	assert.Equal(t, "2026-01-02T03:04:05Z", got.OccurredAt)
	assert.Equal(t, "ws", got.Component)
	assert.Equal(t, "forced logout", got.Payload.Text)
}

func TestEmitWithoutUserOmitsUserID(t *testing.T) {
	pub := new(mocks.AuditPublisherMock)
	emitter := NewAuditEmitter(pub, "audit.client", "motors-client", "test", nil)

	pub.On("Publish", mock.Anything, "audit.client", mock.MatchedBy(func(env AuditEnvelope) bool {
		return env.UserID == nil
	})).Return(assert.AnError).Once()

	emitter.Emit(context.Background(), AuditEvent{Level: "error", Text: "send failed"})
	pub.AssertExpectations(t)
}

func TestNilEmitterIsNoop(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), AuditEvent{Text: "ignored"})
	})
}
