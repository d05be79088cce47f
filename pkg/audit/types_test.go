package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventJSONRoundTrip(t *testing.T) {
	userID := uuid.New()
	businessID := uuid.New()

	event := &Event{
		ID:         12,
		Timestamp:  time.Now().UTC().Truncate(time.Second),
		EventType:  EventTypeMemberRoleChange,
		Status:     EventStatusSuccess,
		UserID:     &userID,
		BusinessID: &businessID,
		Resource:   "business_users",
		ResourceID: uuid.NewString(),
		RequestID:  "req-abc",
		Message:    "promoted to manager",
		Metadata:   map[string]interface{}{"actor_role": "owner"},
		Changes: &ChangeDetails{
			Before: map[string]interface{}{"role": "staff"},
			After:  map[string]interface{}{"role": "manager"},
		},
	}

	data, err := event.ToJSON()
	require.NoError(t, err)

	decoded, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, event.EventType, decoded.EventType)
	assert.Equal(t, event.Status, decoded.Status)
	assert.Equal(t, userID, *decoded.UserID)
	assert.Equal(t, businessID, *decoded.BusinessID)
	assert.Equal(t, "manager", decoded.Changes.After["role"])
	assert.Equal(t, "owner", decoded.Metadata["actor_role"])
}

func TestFromJSONInvalid(t *testing.T) {
	_, err := FromJSON([]byte("{not json"))
	assert.Error(t, err)
}
