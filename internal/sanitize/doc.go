// Package sanitize cleans generated feedback before it is written back.
//
// The generator emits correction lines of the form "[A] <connector> [B]".
// Some of them are artifacts: A and B are the same text, or the pair is a
// known recognition error listed in the denylist. Sanitizer deletes those
// lines, collapses the blank runs the deletions leave behind, and fills any
// section that ended up empty with the configured filler sentence so the
// output keeps its structure. The transform is deterministic.
package sanitize
