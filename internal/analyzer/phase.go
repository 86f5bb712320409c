package analyzer

import (
	"fmt"
	"strings"
)

// Phase orders analyzers within a run. Every analyzer of a phase finishes
// before any analyzer of the next phase starts.
type Phase int

const (
	Initial Phase = iota
	PreInformationCollection
	InformationCollection
	PostInformationCollection
	PreIdentifierAnalysis
	IdentifierAnalysis
	PostIdentifierAnalysis
	PreFindingAnalysis
	FindingAnalysis
	PostFindingAnalysis
	Final
)

var phaseNames = [...]string{
	"INITIAL",
	"PRE_INFORMATION_COLLECTION",
	"INFORMATION_COLLECTION",
	"POST_INFORMATION_COLLECTION",
	"PRE_IDENTIFIER_ANALYSIS",
	"IDENTIFIER_ANALYSIS",
	"POST_IDENTIFIER_ANALYSIS",
	"PRE_FINDING_ANALYSIS",
	"FINDING_ANALYSIS",
	"POST_FINDING_ANALYSIS",
	"FINAL",
}

// Phases returns every phase in execution order.
func Phases() []Phase {
	out := make([]Phase, 0, len(phaseNames))
	for p := Initial; p <= Final; p++ {
		out = append(out, p)
	}
	return out
}

func (p Phase) String() string {
	if p < Initial || p > Final {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool { return p >= Initial && p <= Final }

// ParsePhase accepts the upper snake-case name of a phase, case
// insensitively; dashes are treated as underscores.
func ParsePhase(s string) (Phase, error) {
	n := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for i, name := range phaseNames {
		if name == n {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}
