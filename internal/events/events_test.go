package events

import (
	"account-service/internal/config"
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	assert.Equal(t, "accounts/user/registered", Topic("accounts", UserRegistered))
	assert.Equal(t, "accounts/tokens/purged", Topic("accounts/", TokensPurged))
	assert.Equal(t, "user/role_changed", Topic("", UserRoleChanged))
}

func TestEventJSON(t *testing.T) {
	id := uuid.New()
	payload, err := json.Marshal(New(UserRoleChanged, &id, map[string]interface{}{"role": "ADMIN"}))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "user.role_changed", decoded["event"])
	assert.Equal(t, id.String(), decoded["user_id"])
	assert.Contains(t, decoded, "occurred_at")
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NoopPublisher{}.Publish(context.Background(), New(TokensPurged, nil, nil)))
}

func TestNewPublisherWithoutBroker(t *testing.T) {
	publisher, closeFn := NewPublisher(&config.MQTTConfig{})
	defer closeFn()

	assert.IsType(t, NoopPublisher{}, publisher)
}
