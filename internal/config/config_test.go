package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 75.0, cfg.Heat.QuarantineThreshold)
	assert.Equal(t, 50.0, cfg.Heat.TimeoutThreshold)
	assert.Equal(t, time.Hour, cfg.Decay.Interval())
	assert.Equal(t, 2.0, cfg.Decay.Rate)
	assert.Equal(t, 5*time.Second, cfg.Detectors.Message.Interval())
	assert.Equal(t, 60*time.Second, cfg.Detectors.Command.Interval())
	assert.Equal(t, 10*time.Minute, cfg.Detectors.Retention())
	assert.Equal(t, 10*time.Minute, cfg.Escalation.MessageTimeout())
	assert.Equal(t, 15*time.Minute, cfg.Escalation.CommandTimeout())
	assert.True(t, cfg.Screens.InviteLinksEnabled())
	assert.True(t, cfg.Escalation.WarnEnabled())
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 75.0, cfg.Heat.QuarantineThreshold)
}

func TestLoadConfigMergesOverDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
server:
  addr: ":9090"
heat:
  quarantine_threshold: 90
screens:
  honeypot_channel_id: "chan-trap"
  invite_links: false
escalation:
  warn: false
redis:
  enabled: true
  addr: "redis:6379"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 90.0, cfg.Heat.QuarantineThreshold)
	assert.Equal(t, "chan-trap", cfg.Screens.HoneypotChannelID)
	assert.False(t, cfg.Screens.InviteLinksEnabled())
	assert.False(t, cfg.Escalation.WarnEnabled())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)

	// Untouched sections keep their defaults
	assert.Equal(t, 50.0, cfg.Heat.TimeoutThreshold)
	assert.Equal(t, 10, cfg.Detectors.Message.WindowCapacity)
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "heat: [not, a, map]")

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestManagerAppliesCommunityOverrides(t *testing.T) {
	dir := t.TempDir()
	global := writeFile(t, dir, "config.yaml", `
heat:
  quarantine_threshold: 80
  timeout_threshold: 55
`)
	communities := writeFile(t, dir, "communities.yaml", `
communities:
  guild-strict:
    heat:
      quarantine_threshold: 60
      timeout_threshold: 40
    screens:
      honeypot_channel_id: "chan-trap"
`)

	m, err := NewManager(global, communities)
	require.NoError(t, err)

	strict := m.Get("guild-strict")
	assert.Equal(t, 60.0, strict.Heat.QuarantineThreshold)
	assert.Equal(t, "chan-trap", strict.Screens.HoneypotChannelID)

	other := m.Get("guild-other")
	assert.Equal(t, 80.0, other.Heat.QuarantineThreshold)
	assert.Equal(t, 55.0, other.Heat.TimeoutThreshold)
}

func TestManagerMergesOverridesFieldByField(t *testing.T) {
	dir := t.TempDir()
	global := writeFile(t, dir, "config.yaml", `
heat:
  quarantine_threshold: 80
  timeout_threshold: 55
  high_risk_threshold: 45
screens:
  honeypot_channel_id: "chan-global"
  kick_under_days: 2
`)
	communities := writeFile(t, dir, "communities.yaml", `
communities:
  guild-strict:
    heat:
      quarantine_threshold: 60
    screens:
      flag_under_days: 14
    escalation:
      warn: false
`)

	m, err := NewManager(global, communities)
	require.NoError(t, err)

	strict := m.Get("guild-strict")

	// Overridden fields apply
	assert.Equal(t, 60.0, strict.Heat.QuarantineThreshold)
	assert.Equal(t, 14, strict.Screens.FlagUnderDays)
	assert.False(t, strict.Escalation.WarnEnabled())

	// Siblings in the same sections keep their global values
	assert.Equal(t, 55.0, strict.Heat.TimeoutThreshold)
	assert.Equal(t, 45.0, strict.Heat.HighRiskThreshold)
	assert.Equal(t, "chan-global", strict.Screens.HoneypotChannelID)
	assert.Equal(t, 2, strict.Screens.KickUnderDays)
	assert.Equal(t, 10, strict.Escalation.MessageTimeoutMinutes)
}

func TestManagerWithoutOverridesFile(t *testing.T) {
	dir := t.TempDir()

	m, err := NewManager(filepath.Join(dir, "config.yaml"), filepath.Join(dir, "communities.yaml"))
	require.NoError(t, err)

	cfg := m.Get("any")
	assert.Equal(t, 75.0, cfg.Heat.QuarantineThreshold)
}
