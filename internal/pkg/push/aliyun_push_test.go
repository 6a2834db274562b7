package push

import (
	"testing"

	"seest/internal/pkg/config"

	"github.com/stretchr/testify/assert"
)

func TestBuildRequest(t *testing.T) {
	req := BuildRequest(42, "user-1", "Seest", "Ann liked your status", map[string]string{"type": "like"})

	assert.Equal(t, "ACCOUNT", req.Target)
	assert.Equal(t, "user-1", req.TargetValue)
	assert.Equal(t, "NOTICE", req.PushType)
	assert.JSONEq(t, `{"type":"like"}`, req.AndroidExtParameters)
	assert.Equal(t, req.AndroidExtParameters, req.IOSExtParameters)
}

func TestNewAliyunPushServiceRequiresConfig(t *testing.T) {
	_, err := NewAliyunPushService(config.PushConfig{})
	assert.Error(t, err)
}
