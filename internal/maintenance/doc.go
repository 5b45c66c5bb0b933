// Package maintenance holds operator utilities that act on the record
// store outside the grading pipeline.
package maintenance
