package flow

import (
	"github.com/arborchess/nnsearch/pkg/batchsize"
	"github.com/arborchess/nnsearch/pkg/evalpipe"
)

// Config holds every knob spec.md §6 enumerates, in the teacher's
// plain-setter chaining style (pkg/mcts/limits.go's Limits.SetX).
type Config struct {
	FlowDirectOverlapped bool
	FlowDualSelectors    bool
	FlowSplitSelects     bool

	CPuct        float32
	FPUReduction float32

	BatchSize *batchsize.Config

	MaxTranspositionRootApplicationsFixed    int
	MaxTranspositionRootApplicationsFraction float64
	TranspositionMode                        evalpipe.TranspositionMode
	TranspositionUseTransposedQ              bool
	TranspositionRootQFraction               float64

	InFlightThisBatchLinkageEnabled  bool
	InFlightOtherBatchLinkageEnabled bool

	UseLargePages bool

	// StagingCapacity bounds each selector's per-batch transposition
	// insertion buffer (spec.md §4.B).
	StagingCapacity int

	// TranspositionTableCapacity sizes the shared ttable.Index.
	TranspositionTableCapacity uint32

	// SecondaryNetEveryNRootVisits is carried in the configuration, but
	// Search never reads it: no secondary-net evaluation runs, whatever
	// its value.
	SecondaryNetEveryNRootVisits int32
}

// DefaultConfig matches the teacher's DefaultLimits() convention: a
// conservative, always-valid configuration with overlap and dual
// selectors both enabled, matching spec.md's primary scenario (S5).
func DefaultConfig() *Config {
	return &Config{
		FlowDirectOverlapped: true,
		FlowDualSelectors:    true,
		FlowSplitSelects:     true,

		CPuct:        float32(1.5),
		FPUReduction: float32(0.2),

		BatchSize: batchsize.DefaultConfig(),

		MaxTranspositionRootApplicationsFixed:    3,
		MaxTranspositionRootApplicationsFraction: 0.1,
		TranspositionMode:                        evalpipe.SingleNodeDeferredCopy,
		TranspositionUseTransposedQ:               true,
		TranspositionRootQFraction:                1.0,

		InFlightThisBatchLinkageEnabled:  true,
		InFlightOtherBatchLinkageEnabled: false,

		UseLargePages:   false,
		StagingCapacity: 256,

		TranspositionTableCapacity: 1 << 20,
	}
}

func (c *Config) SetFlowDirectOverlapped(v bool) *Config { c.FlowDirectOverlapped = v; return c }
func (c *Config) SetFlowDualSelectors(v bool) *Config    { c.FlowDualSelectors = v; return c }
func (c *Config) SetFlowSplitSelects(v bool) *Config     { c.FlowSplitSelects = v; return c }
func (c *Config) SetCPuct(v float32) *Config             { c.CPuct = v; return c }
func (c *Config) SetFPUReduction(v float32) *Config      { c.FPUReduction = v; return c }
func (c *Config) SetTranspositionMode(m evalpipe.TranspositionMode) *Config {
	c.TranspositionMode = m
	return c
}
func (c *Config) SetUseLargePages(v bool) *Config { c.UseLargePages = v; return c }
