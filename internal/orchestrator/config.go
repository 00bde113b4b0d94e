package orchestrator

import (
	"time"

	"go.uber.org/zap"
)

// CapabilityLevel is how sub-research is executed.
type CapabilityLevel int

const (
	// CapLocal runs researchers in-process against the configured model.
	CapLocal CapabilityLevel = iota

	// CapRemote fans out to researcher processes over JSON-RPC.
	CapRemote
)

func (c CapabilityLevel) String() string {
	switch c {
	case CapLocal:
		return "local"
	case CapRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Config holds the limits of a research run.
type Config struct {
	// AllowClarification enables the clarification gate.
	AllowClarification bool

	// MaxClarifications caps how many questions one session may ask.
	MaxClarifications int

	// MaxSupervisorRounds caps plan/fan-out/merge rounds.
	MaxSupervisorRounds int

	// MaxTopicsPerRound caps topics delegated in one round.
	MaxTopicsPerRound int

	// MaxConcurrentResearch bounds in-flight sub-research tasks.
	MaxConcurrentResearch int

	// SubTaskTimeout bounds a single sub-research task. Zero means no limit.
	SubTaskTimeout time.Duration

	// ResearcherEndpoints lists remote researcher base URLs.
	ResearcherEndpoints []string

	// SingleAgent forces local research even when endpoints are configured.
	SingleAgent bool

	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxClarifications <= 0 {
		c.MaxClarifications = 3
	}
	if c.MaxSupervisorRounds <= 0 {
		c.MaxSupervisorRounds = 3
	}
	if c.MaxTopicsPerRound <= 0 {
		c.MaxTopicsPerRound = 5
	}
	if c.MaxConcurrentResearch <= 0 {
		c.MaxConcurrentResearch = 4
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
