package sanitize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/phrazzld/essaymark/internal/config"
)

// ErrInvalidConfig is returned when the sanitizer settings cannot be compiled.
var ErrInvalidConfig = errors.New("invalid sanitizer configuration")

// RemovedLine records a deleted correction and the rule that removed it.
type RemovedLine struct {
	// Line is the 1-based line number in the trimmed input.
	Line int
	// Text is the whole line, or only the correction when other
	// corrections on the same line were kept.
	Text    string
	Rule    string
	Partial bool
}

// Result is the sanitized text plus what was changed.
type Result struct {
	Text       string
	Removed    []RemovedLine
	Backfilled int
}

// Changed reports whether sanitizing altered anything beyond trimming.
func (r Result) Changed() bool {
	return len(r.Removed) > 0 || r.Backfilled > 0
}

// Sanitizer applies the rule list to generated text. It is immutable after
// construction and safe for concurrent use.
type Sanitizer struct {
	rules      []Rule
	correction *regexp.Regexp
	header     *regexp.Regexp
	filler     string
}

// New compiles a Sanitizer with the identity rule and the configured denylist.
func New(cfg config.SanitizerConfig) (*Sanitizer, error) {
	return NewWithRules(cfg, IdentityRule{}, NewDenylistRule(cfg.Denylist))
}

// NewWithRules compiles a Sanitizer with an explicit rule list.
func NewWithRules(cfg config.SanitizerConfig, rules ...Rule) (*Sanitizer, error) {
	if len(cfg.Connectors) == 0 {
		return nil, fmt.Errorf("%w: at least one connector is required", ErrInvalidConfig)
	}

	quoted := make([]string, 0, len(cfg.Connectors))
	for _, c := range cfg.Connectors {
		if strings.TrimSpace(c) == "" {
			return nil, fmt.Errorf("%w: empty connector", ErrInvalidConfig)
		}
		quoted = append(quoted, regexp.QuoteMeta(c))
	}
	// Markdown emphasis may wrap either bracket or the connector.
	const emph = `[*_]{0,2}`
	correction := regexp.MustCompile(
		emph + `\[([^\[\]]*)\]` + emph + `\s*` +
			emph + `(?:` + strings.Join(quoted, "|") + `)` + emph +
			`\s*` + emph + `\[([^\[\]]*)\]` + emph,
	)

	header, err := regexp.Compile(cfg.SectionHeaderPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: section header pattern: %v", ErrInvalidConfig, err)
	}

	return &Sanitizer{
		rules:      rules,
		correction: correction,
		header:     header,
		filler:     cfg.Filler,
	}, nil
}

// Corrections parses every correction on line.
func (s *Sanitizer) Corrections(line string) []Correction {
	matches := s.correction.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return nil
	}

	out := make([]Correction, 0, len(matches))
	for _, m := range matches {
		out = append(out, toCorrection(m[1], m[2]))
	}
	return out
}

func toCorrection(from, to string) Correction {
	return Correction{From: strings.TrimSpace(from), To: strings.TrimSpace(to)}
}

// match returns the first rule suppressing c.
func (s *Sanitizer) match(c Correction) (Rule, bool) {
	for _, r := range s.rules {
		if r.Matches(c) {
			return r, true
		}
	}
	return nil, false
}

// span is a suppressed correction within a line, as byte offsets.
type span struct {
	start, end int
	rule       Rule
}

// correctionSeparators may join several corrections on one line.
const correctionSeparators = " \t；;，,、。"

// clean removes suppressed corrections from line. drop is true when every
// correction on the line was suppressed, in which case the whole line goes.
func (s *Sanitizer) clean(line string) (kept string, removed []span, drop bool) {
	matches := s.correction.FindAllStringSubmatchIndex(line, -1)
	for _, m := range matches {
		c := toCorrection(line[m[2]:m[3]], line[m[4]:m[5]])
		if r, ok := s.match(c); ok {
			removed = append(removed, span{start: m[0], end: m[1], rule: r})
		}
	}
	if len(removed) == 0 {
		return line, nil, false
	}
	if len(removed) == len(matches) {
		return "", removed, true
	}

	var b strings.Builder
	prev := 0
	for _, sp := range removed {
		start, end := sp.start, trimSeparatorsRight(line, sp.end)
		if end == len(line) {
			start = trimSeparatorsLeft(line, prev, start)
		}
		b.WriteString(line[prev:start])
		prev = end
	}
	b.WriteString(line[prev:])
	return b.String(), removed, false
}

// trimSeparatorsRight moves end forward over separators.
func trimSeparatorsRight(line string, end int) int {
	for end < len(line) {
		r, size := utf8.DecodeRuneInString(line[end:])
		if !strings.ContainsRune(correctionSeparators, r) {
			break
		}
		end += size
	}
	return end
}

// trimSeparatorsLeft moves start back over separators, not past floor.
func trimSeparatorsLeft(line string, floor, start int) int {
	for start > floor {
		r, size := utf8.DecodeLastRuneInString(line[floor:start])
		if !strings.ContainsRune(correctionSeparators, r) {
			break
		}
		start -= size
	}
	return start
}

// Sanitize trims text, drops suppressed correction lines, collapses blank
// runs and backfills empty sections.
func (s *Sanitizer) Sanitize(text string) Result {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return Result{}
	}

	var res Result
	kept := make([]string, 0, strings.Count(text, "\n")+1)
	for i, line := range strings.Split(text, "\n") {
		cleaned, removed, drop := s.clean(line)
		if drop {
			res.Removed = append(res.Removed, RemovedLine{Line: i + 1, Text: line, Rule: removed[0].rule.Name()})
			continue
		}
		for _, sp := range removed {
			res.Removed = append(res.Removed, RemovedLine{
				Line:    i + 1,
				Text:    line[sp.start:sp.end],
				Rule:    sp.rule.Name(),
				Partial: true,
			})
		}
		kept = append(kept, cleaned)
	}

	lines := collapseBlankRuns(kept)
	lines, res.Backfilled = s.backfill(lines)

	res.Text = strings.TrimSpace(strings.Join(lines, "\n"))
	return res
}

// backfill inserts the filler after every header whose section is empty,
// that is, a header followed only by blank lines and then another header.
func (s *Sanitizer) backfill(lines []string) ([]string, int) {
	if s.filler == "" {
		return lines, 0
	}

	out := make([]string, 0, len(lines)+4)
	inserted := 0
	for i, line := range lines {
		out = append(out, line)
		if !s.header.MatchString(line) {
			continue
		}

		next := i + 1
		for next < len(lines) && isBlank(lines[next]) {
			next++
		}
		if next == len(lines) || !s.header.MatchString(lines[next]) {
			continue
		}

		out = append(out, "", s.filler)
		if next == i+1 {
			out = append(out, "")
		}
		inserted++
	}
	return out, inserted
}

// collapseBlankRuns reduces consecutive blank lines to one empty line.
func collapseBlankRuns(lines []string) []string {
	out := make([]string, 0, len(lines))
	prevBlank := false
	for _, line := range lines {
		if isBlank(line) {
			if prevBlank {
				continue
			}
			prevBlank = true
			out = append(out, "")
			continue
		}
		prevBlank = false
		out = append(out, line)
	}
	return out
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
