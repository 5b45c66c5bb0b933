// Package task runs the grading pipeline. A Processor drives one work item
// through its stages (download, normalize, infer, sanitize, write back) and
// a Runner processes one page of pending items per invocation.
//
// Failures are contained per item: a skipped item keeps its Pending status
// and is selected again by a later run. Only a failure to select items
// fails the run itself.
package task
