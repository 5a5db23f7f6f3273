package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v2"
)

// CommunitiesConfig holds a map of per-community overrides.
type CommunitiesConfig struct {
	Communities map[string]Config `yaml:"communities"`
}

// Manager resolves the effective config for a community: global tuning
// with per-community overrides layered on top.
type Manager struct {
	globalConfig     *Config
	communityConfigs map[string]Config
	mu               sync.RWMutex
}

// NewManager loads the global config and, if present, a community
// overrides file. A missing overrides file resolves to no overrides.
func NewManager(globalPath, communitiesPath string) (*Manager, error) {
	global, err := LoadConfig(globalPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(communitiesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manager{globalConfig: global, communityConfigs: make(map[string]Config)}, nil
		}
		return nil, err
	}
	defer f.Close()

	var cc CommunitiesConfig
	if err := yaml.NewDecoder(f).Decode(&cc); err != nil {
		return nil, err
	}
	if cc.Communities == nil {
		cc.Communities = make(map[string]Config)
	}

	return &Manager{
		globalConfig:     global,
		communityConfigs: cc.Communities,
	}, nil
}

// Global returns the base config with no community overrides applied.
func (m *Manager) Global() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.globalConfig
}

// Get returns the effective config for a community. Overrides merge
// field-by-field, so setting one threshold never clears the others. Only
// threshold, screen and escalation fields can be overridden; server, decay
// and redis settings are process-wide.
func (m *Manager) Get(communityID string) *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	effective := *m.globalConfig

	override, ok := m.communityConfigs[communityID]
	if !ok {
		return &effective
	}

	if override.Heat.QuarantineThreshold != 0 {
		effective.Heat.QuarantineThreshold = override.Heat.QuarantineThreshold
	}
	if override.Heat.TimeoutThreshold != 0 {
		effective.Heat.TimeoutThreshold = override.Heat.TimeoutThreshold
	}
	if override.Heat.HighRiskThreshold != 0 {
		effective.Heat.HighRiskThreshold = override.Heat.HighRiskThreshold
	}

	if override.Screens.HoneypotChannelID != "" {
		effective.Screens.HoneypotChannelID = override.Screens.HoneypotChannelID
	}
	if override.Screens.InviteLinks != nil {
		effective.Screens.InviteLinks = override.Screens.InviteLinks
	}
	if override.Screens.ImageBait != nil {
		effective.Screens.ImageBait = override.Screens.ImageBait
	}
	if override.Screens.KickUnderDays != 0 {
		effective.Screens.KickUnderDays = override.Screens.KickUnderDays
	}
	if override.Screens.FlagUnderDays != 0 {
		effective.Screens.FlagUnderDays = override.Screens.FlagUnderDays
	}

	if override.Escalation.MessageTimeoutMinutes != 0 {
		effective.Escalation.MessageTimeoutMinutes = override.Escalation.MessageTimeoutMinutes
	}
	if override.Escalation.CommandTimeoutMinutes != 0 {
		effective.Escalation.CommandTimeoutMinutes = override.Escalation.CommandTimeoutMinutes
	}
	if override.Escalation.Warn != nil {
		effective.Escalation.Warn = override.Escalation.Warn
	}

	return &effective
}
