package routing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BumpPolicy selects how encounter evidence is applied to the weight table.
type BumpPolicy string

const (
	// BumpUniform applies the same increment to every encountered peer.
	BumpUniform BumpPolicy = "uniform"
	// BumpDestinationBoost multiplies the increment by DestBoostFactor when
	// the encountered peer is the destination of a currently held message.
	BumpDestinationBoost BumpPolicy = "destination-boost"
)

// HoldPolicy controls what may happen to the last copy of a message.
type HoldPolicy string

const (
	// HoldStrict keeps the last copy until direct delivery or TTL expiry.
	HoldStrict HoldPolicy = "strict"
	// HoldHandover allows moving (not duplicating) the last copy to a peer
	// whose affinity for the destination strictly exceeds the holder's.
	HoldHandover HoldPolicy = "final-handover"
)

// SplitRounding fixes which side of a binary split gets the odd copy.
type SplitRounding string

const (
	// SplitFloor gives floor(quota/2) to the peer and keeps the remainder.
	SplitFloor SplitRounding = "floor"
	// SplitCeil gives ceil(quota/2) to the peer and keeps the remainder.
	SplitCeil SplitRounding = "ceil"
)

// DecayOrder names when weight aging runs relative to the forwarding pass
// within one tick. Both orderings exist in deployed variants of this
// protocol family, so the choice is explicit configuration.
type DecayOrder string

const (
	// DecayFirst ages weights before the forwarding pass.
	DecayFirst DecayOrder = "decay-first"
	// ForwardFirst runs the forwarding pass on last tick's weights and ages
	// them afterwards.
	ForwardFirst DecayOrder = "forward-first"
)

// Config parameterizes a Router. The protocol families from the literature
// differ only in these knobs, so a single Router covers all of them.
type Config struct {
	// Weight table parameters.
	WeightIncrement   float64    `yaml:"weight_increment"`   // added per encounter
	AgingFactor       float64    `yaml:"aging_factor"`       // per-tick multiplier in (0,1)
	DestBoostFactor   float64    `yaml:"dest_boost_factor"`  // increment multiplier for destination encounters
	EvictionThreshold float64    `yaml:"eviction_threshold"` // entries below this are dropped on decay
	Bump              BumpPolicy `yaml:"bump_policy"`

	// Transitivity lets affinity propagate through intermediaries by reading
	// the encountered peer's table. Factor 0 disables it.
	TransitivityFactor float64 `yaml:"transitivity_factor"`

	// Replica quota estimation (EMRT).
	Alpha              float64 `yaml:"alpha"`                // smoothing factor for EV and Bavg
	WindowInterval     float64 `yaml:"window_interval"`      // simulated seconds per statistics window
	InitReplicas       int     `yaml:"init_replicas"`        // m_init base replica budget
	MaxReplicasFactor  int     `yaml:"max_replicas_factor"`  // quota cap = factor * init_replicas
	CreateEnergyCost   float64 `yaml:"create_energy_cost"`   // energy drained per message creation
	TransmitEnergyCost float64 `yaml:"transmit_energy_cost"` // energy drained per accepted transfer

	// Forwarding policy.
	Hold     HoldPolicy    `yaml:"hold_policy"`
	Rounding SplitRounding `yaml:"split_rounding"`
	Decay    DecayOrder    `yaml:"decay_order"`
}

// DefaultConfig returns the destination-boosted configuration calibrated in
// the replication paper: 30 s windows, alpha 0.85 and a base budget of 8
// copies. InitReplicas 4 and 11 reproduce the other two published families.
func DefaultConfig() Config {
	return Config{
		WeightIncrement:   0.1,
		AgingFactor:       0.98,
		DestBoostFactor:   5.0,
		EvictionThreshold: 0.001,
		Bump:              BumpDestinationBoost,

		TransitivityFactor: 0.5,

		Alpha:              0.85,
		WindowInterval:     30.0,
		InitReplicas:       8,
		MaxReplicasFactor:  3,
		CreateEnergyCost:   0.01,
		TransmitEnergyCost: 0.05,

		Hold:     HoldStrict,
		Rounding: SplitFloor,
		Decay:    DecayFirst,
	}
}

// normalize fills zero values with defaults so a partially specified yaml
// document still yields a usable configuration.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.WeightIncrement <= 0 {
		c.WeightIncrement = def.WeightIncrement
	}
	if c.AgingFactor <= 0 || c.AgingFactor >= 1 {
		c.AgingFactor = def.AgingFactor
	}
	if c.DestBoostFactor <= 0 {
		c.DestBoostFactor = def.DestBoostFactor
	}
	if c.EvictionThreshold <= 0 {
		c.EvictionThreshold = def.EvictionThreshold
	}
	if c.Bump == "" {
		c.Bump = def.Bump
	}
	if c.TransitivityFactor < 0 || c.TransitivityFactor >= 1 {
		c.TransitivityFactor = def.TransitivityFactor
	}
	if c.Alpha <= 0 || c.Alpha > 1 {
		c.Alpha = def.Alpha
	}
	if c.WindowInterval <= 0 {
		c.WindowInterval = def.WindowInterval
	}
	if c.InitReplicas <= 0 {
		c.InitReplicas = def.InitReplicas
	}
	if c.MaxReplicasFactor <= 0 {
		c.MaxReplicasFactor = def.MaxReplicasFactor
	}
	if c.CreateEnergyCost <= 0 {
		c.CreateEnergyCost = def.CreateEnergyCost
	}
	if c.TransmitEnergyCost <= 0 {
		c.TransmitEnergyCost = def.TransmitEnergyCost
	}
	if c.Hold == "" {
		c.Hold = def.Hold
	}
	if c.Rounding == "" {
		c.Rounding = def.Rounding
	}
	if c.Decay == "" {
		c.Decay = def.Decay
	}
	return c
}

// Validate rejects policy names that would otherwise fail silently at
// decision time.
func (c Config) Validate() error {
	switch c.Bump {
	case BumpUniform, BumpDestinationBoost:
	default:
		return fmt.Errorf("unknown bump_policy %q", c.Bump)
	}
	switch c.Hold {
	case HoldStrict, HoldHandover:
	default:
		return fmt.Errorf("unknown hold_policy %q", c.Hold)
	}
	switch c.Rounding {
	case SplitFloor, SplitCeil:
	default:
		return fmt.Errorf("unknown split_rounding %q", c.Rounding)
	}
	switch c.Decay {
	case DecayFirst, ForwardFirst:
	default:
		return fmt.Errorf("unknown decay_order %q", c.Decay)
	}
	return nil
}

// LoadConfig reads a yaml file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read routing config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse routing config: %w", err)
	}
	cfg = cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
