package sanitize

import "github.com/phrazzld/essaymark/internal/config"

// Correction is one "[From] <connector> [To]" suggestion parsed from a line.
type Correction struct {
	From string
	To   string
}

// Rule decides whether a correction is a generator artifact.
type Rule interface {
	// Name identifies the rule in removal reports.
	Name() string

	// Matches reports whether c must be suppressed.
	Matches(c Correction) bool
}

// IdentityRule suppresses corrections whose two sides are identical.
type IdentityRule struct{}

// Name implements Rule.
func (IdentityRule) Name() string { return "identity" }

// Matches implements Rule.
func (IdentityRule) Matches(c Correction) bool {
	return c.From == c.To
}

// DenylistRule suppresses configured (From, To) pairs.
type DenylistRule struct {
	pairs map[Correction]struct{}
}

// NewDenylistRule builds a DenylistRule from configured pairs.
func NewDenylistRule(pairs []config.DenyPair) DenylistRule {
	set := make(map[Correction]struct{}, len(pairs))
	for _, p := range pairs {
		set[Correction{From: p.From, To: p.To}] = struct{}{}
	}
	return DenylistRule{pairs: set}
}

// Name implements Rule.
func (DenylistRule) Name() string { return "denylist" }

// Matches implements Rule.
func (r DenylistRule) Matches(c Correction) bool {
	_, ok := r.pairs[c]
	return ok
}
