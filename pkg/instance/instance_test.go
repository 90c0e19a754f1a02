package instance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDPrefersExplicitOverride(t *testing.T) {
	t.Setenv("MYGROS_INSTANCE_ID", "api-blue-2")
	t.Setenv("DYNO", "web.1")
	assert.Equal(t, "api-blue-2", ID("api"))
}

func TestIDFallsBackToDyno(t *testing.T) {
	t.Setenv("MYGROS_INSTANCE_ID", "")
	t.Setenv("DYNO", "worker.3")
	assert.Equal(t, "worker.3", ID("notification-worker"))
}

func TestIDUsesServiceName(t *testing.T) {
	t.Setenv("MYGROS_INSTANCE_ID", "")
	t.Setenv("DYNO", "")
	assert.True(t, strings.HasPrefix(ID("cron-worker"), "cron-worker"))
}
