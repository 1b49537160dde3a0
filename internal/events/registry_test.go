package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Unmarshal(t *testing.T) {
	registry := NewRegistry()

	registry.Register(EventApprovalCreated, func() Event { return &ApprovalCreated{} })
	registry.Register(EventContentRouted, func() Event { return &ContentRouted{} })

	raw := RawEvent{
		EventType: EventApprovalCreated,
		Payload:   `{"type":"approval.created","entity_type":"approval","entity_id":7,"occurred_at":"2024-01-01T00:00:00Z","request_id":7,"user_id":42,"content_title":"Heat","triggered_by":"quota_exceeded","reason":"daily quota exceeded"}`,
	}

	event, err := registry.Unmarshal(raw)
	require.NoError(t, err)

	created, ok := event.(*ApprovalCreated)
	require.True(t, ok)
	assert.Equal(t, int64(7), created.RequestID)
	assert.Equal(t, int64(42), created.UserID)
	assert.Equal(t, "quota_exceeded", created.TriggeredBy)
}

func TestRegistry_UnmarshalUnknownType(t *testing.T) {
	registry := NewRegistry()

	raw := RawEvent{
		EventType: "unknown.event",
		Payload:   `{}`,
	}

	_, err := registry.Unmarshal(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestRegistry_UnmarshalInvalidJSON(t *testing.T) {
	registry := NewRegistry()
	registry.Register(EventApprovalCreated, func() Event { return &ApprovalCreated{} })

	raw := RawEvent{
		EventType: EventApprovalCreated,
		Payload:   `{invalid json`,
	}

	_, err := registry.Unmarshal(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal event payload")
}

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()

	eventTypes := []string{
		EventContentRouted,
		EventApprovalCreated,
		EventApprovalApproved,
		EventApprovalRejected,
		EventApprovalExpired,
	}

	for _, eventType := range eventTypes {
		t.Run(eventType, func(t *testing.T) {
			raw := RawEvent{
				EventType: eventType,
				Payload:   `{"type":"` + eventType + `","entity_type":"approval","entity_id":1,"occurred_at":"2024-01-01T00:00:00Z"}`,
			}
			event, err := registry.Unmarshal(raw)
			require.NoError(t, err, "Failed to unmarshal %s", eventType)
			assert.Equal(t, eventType, event.EventType())
		})
	}
}

func TestRegistry_UnmarshalApprovalResolved(t *testing.T) {
	registry := DefaultRegistry()

	raw := RawEvent{
		EventType: EventApprovalApproved,
		Payload:   `{"type":"approval.approved","entity_type":"approval","entity_id":99,"occurred_at":"2024-01-01T12:00:00Z","request_id":99,"user_id":5,"content_title":"Severance","actor":"admin","notes":"fine"}`,
	}

	event, err := registry.Unmarshal(raw)
	require.NoError(t, err)

	resolved, ok := event.(*ApprovalResolved)
	require.True(t, ok)
	assert.Equal(t, int64(99), resolved.RequestID)
	assert.Equal(t, "admin", resolved.Actor)
	assert.Equal(t, int64(99), resolved.EntityID())
}

func TestRegistry_UnmarshalContentRouted(t *testing.T) {
	registry := DefaultRegistry()

	raw := RawEvent{
		EventType: EventContentRouted,
		Payload:   `{"type":"content.routed","entity_type":"routing","entity_id":3,"occurred_at":"2024-01-01T00:00:00Z","title":"Heat","instance_id":3,"user_id":42,"replayed":true}`,
	}

	event, err := registry.Unmarshal(raw)
	require.NoError(t, err)

	routed, ok := event.(*ContentRouted)
	require.True(t, ok)
	assert.Equal(t, int64(3), routed.InstanceID)
	assert.Equal(t, "Heat", routed.Title)
	assert.True(t, routed.Replayed)
}
