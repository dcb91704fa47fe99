package model

// Mode selects how a wheel is built.
type Mode string

// Supported build modes.
const (
	ModeGreedy     Mode = "greedy"     // run until every target subset is covered
	ModeScan       Mode = "scan"       // stop after Limit tickets
	ModeLowerBound Mode = "lowerBound" // stop at the computed lower bound
	ModeUniverseK  Mode = "universeK"  // every valid k-subset of the pool
	ModeUniverseM  Mode = "universeM"  // every coverable m-subset of the pool
)

// Valid reports whether m is one of the supported modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeGreedy, ModeScan, ModeLowerBound, ModeUniverseK, ModeUniverseM:
		return true
	}
	return false
}

// Termination records why a greedy run stopped.
type Termination string

// Termination reasons.
const (
	TerminatedLimit      Termination = "limit"
	TerminatedCovered    Termination = "covered"
	TerminatedSteps      Termination = "step_budget"
	TerminatedExhausted  Termination = "exhausted"
	TerminatedEnumerated Termination = "enumerated"
)

// BuildRequest carries the inputs of a single wheel build.
type BuildRequest struct {
	Pool        []int             `json:"pool"`
	K           int               `json:"k"`
	M           int               `json:"m"`
	Effort      int               `json:"effort"`
	Seed        string            `json:"seed"`
	Mode        Mode              `json:"mode"`
	Limit       int               `json:"limit,omitempty"`
	Constraints []GroupConstraint `json:"constraints,omitempty"`
	Fixed       []int             `json:"fixed,omitempty"`
}

// Wheel is the ticket set returned by a build. It is never mutated after return.
type Wheel struct {
	Tickets     []Ticket    `json:"tickets"`
	Mode        Mode        `json:"mode"`
	Exact       bool        `json:"exact"`
	Steps       int         `json:"steps"`
	Termination Termination `json:"termination"`
	// LowerBound is the bound for the plain (n, k, m) problem. It ignores
	// fixed numbers and group constraints, which shrink the set of targets, so
	// a constrained wheel may be smaller than it, even empty.
	LowerBound string `json:"lower_bound"`
	// Uncovered is the number of target subsets left uncovered; only
	// meaningful when Exact is true.
	Uncovered uint64 `json:"uncovered"`
}
