package agent

import "fmt"

// RepetitionGuard counts consecutive calls of the same tool kind. It
// only produces warnings; it never stops the loop.
type RepetitionGuard struct {
	counts map[ToolKind]int
	prev   ToolKind
}

// NewRepetitionGuard returns a guard with no history.
func NewRepetitionGuard() *RepetitionGuard {
	return &RepetitionGuard{counts: make(map[ToolKind]int)}
}

// Observe records a call of kind and returns its consecutive count and,
// when the count exceeds one, the warning to show the decision source.
func (g *RepetitionGuard) Observe(kind ToolKind) (int, string) {
	if kind == g.prev {
		g.counts[kind]++
	} else {
		g.counts[kind] = 1
		g.prev = kind
	}

	count := g.counts[kind]
	if count > 1 {
		return count, RepetitionWarning(kind, count)
	}
	return count, ""
}

// RepetitionWarning is the notice shown after count consecutive calls.
func RepetitionWarning(kind ToolKind, count int) string {
	return fmt.Sprintf(
		"WARNING: You have already called %s %d times in a row. You should move on.",
		kind, count,
	)
}
