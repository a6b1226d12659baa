package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("WAR_EARLY_TIME", "")
		t.Setenv("WAR_LATE_TIME", "")
		t.Setenv("WAR_WEEKDAY", "")
		t.Setenv("PORT", "")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "8000", cfg.Server.Port)
		assert.Equal(t, time.Saturday, cfg.War.Weekday)
		assert.Equal(t, 20*time.Hour, cfg.War.EarlyTime)
		assert.Equal(t, 22*time.Hour, cfg.War.LateTime)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("WAR_EARLY_TIME", "19:30")
		t.Setenv("WAR_WEEKDAY", "Fri")
		t.Setenv("REDIS_DB", "3")
		t.Setenv("READ_TIMEOUT_SEC", "not-a-number")
		t.Setenv("WAR_TIMEZONE", "Asia/Taipei")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 19*time.Hour+30*time.Minute, cfg.War.EarlyTime)
		assert.Equal(t, time.Friday, cfg.War.Weekday)
		assert.Equal(t, 3, cfg.Redis.DB)
		assert.Equal(t, 30, cfg.Server.ReadTimeout)
		assert.Equal(t, "Asia/Taipei", cfg.War.Location.String())
	})

	t.Run("malformed war time", func(t *testing.T) {
		t.Setenv("WAR_LATE_TIME", "late")
		_, err := Load()
		assert.Error(t, err)
	})
}
