// Package config loads the optional YAML tunables file. Every field has a
// sensible built-in default (§6's frozen tunables); the file, when
// present, only overrides what it sets, and command-line flags override
// the file in turn.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Tunables holds every value an operator might reasonably want to tweak
// without recompiling. Field names mirror §6's tunable table.
type Tunables struct {
	TickHz             int     `yaml:"tick_hz"`
	SnapshotHz         int     `yaml:"snapshot_hz"`
	PeerInactivitySec  float64 `yaml:"peer_inactivity_sec"`
	ReliableRetryLimit int     `yaml:"reliable_retry_limit"`
	RetransmitFactor   float64 `yaml:"retransmit_factor"`
	BulletDamage       int     `yaml:"bullet_damage"`
	StartingHealth     int     `yaml:"starting_health"`
	RespawnDelaySec    float64 `yaml:"respawn_delay_sec"`
	TeleportThreshold  float64 `yaml:"teleport_threshold_m"`
	ReconcileWarnM     float64 `yaml:"reconcile_warn_m"`
	RenderDelayMinSec  float64 `yaml:"render_delay_min_sec"`
	RenderDelayMaxSec  float64 `yaml:"render_delay_max_sec"`
	RenderDelayInitSec float64 `yaml:"render_delay_init_sec"`
	AcceptRatePerSec   float64 `yaml:"accept_rate_per_sec"`
	AcceptBurst        int     `yaml:"accept_burst"`
}

// Default returns the frozen reference values (§6) as the starting point
// for any override.
func Default() Tunables {
	return Tunables{
		TickHz:             60,
		SnapshotHz:         20,
		PeerInactivitySec:  4,
		ReliableRetryLimit: 10,
		RetransmitFactor:   1.1,
		BulletDamage:       10,
		StartingHealth:     100,
		RespawnDelaySec:    1.5,
		TeleportThreshold:  10,
		ReconcileWarnM:     0.4,
		RenderDelayMinSec:  0.02,
		RenderDelayMaxSec:  0.15,
		RenderDelayInitSec: 0.1,
		AcceptRatePerSec:   5,
		AcceptBurst:        10,
	}
}

// Load reads path and overlays its fields onto Default(). A missing file
// is not an error; callers that want an explicit file to exist should
// check os.Stat first.
func Load(path string) (Tunables, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return Tunables{}, fmt.Errorf("config: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tunables{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return t, nil
}
