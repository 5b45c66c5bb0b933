package sanitize

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff renders a line diff from raw to cleaned, prefixing removed lines with
// "- ", added lines with "+ " and unchanged lines with two spaces.
func Diff(raw, cleaned string) string {
	dmp := diffmatchpatch.New()
	rawChars, cleanedChars, lineArray := dmp.DiffLinesToChars(withNewline(raw), withNewline(cleaned))
	diffs := dmp.DiffMain(rawChars, cleanedChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var b strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}

		chunk := strings.Split(d.Text, "\n")
		if chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		for _, line := range chunk {
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func withNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
