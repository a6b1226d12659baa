package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnavshah/warplanner-api-go/pkg/config"
)

func TestDisabledNotifierIsNoop(t *testing.T) {
	n, err := Connect(context.Background(), config.RedisConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Publish(context.Background(), "guild-1", LineupSaved, nil))
	assert.NoError(t, n.Subscribe(context.Background(), func(Event) { t.Fatal("unexpected event") }))
	assert.NoError(t, n.Close())

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.Publish(context.Background(), "guild-1", RosterChanged, nil))
}

func TestEnvelope(t *testing.T) {
	a := New(nil, zap.NewNop())
	b := New(nil, zap.NewNop())

	body, err := a.encode(LineupSaved, map[string]string{"variant": "late"})
	require.NoError(t, err)

	ev, self, err := b.decode(Channel("guild-1"), string(body))
	require.NoError(t, err)
	assert.False(t, self)
	assert.Equal(t, "guild-1", ev.Unit)
	assert.Equal(t, LineupSaved, ev.Name)
	assert.JSONEq(t, `{"variant":"late"}`, string(ev.Data))

	_, self, err = a.decode(Channel("guild-1"), string(body))
	require.NoError(t, err)
	assert.True(t, self)

	_, _, err = b.decode("other:guild-1", string(body))
	assert.Error(t, err)
	_, _, err = b.decode(Channel("guild-1"), "not json")
	assert.Error(t, err)
}
