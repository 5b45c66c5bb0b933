// Package domain contains the core entities of the grading pipeline: the
// work items pulled from the record store, their attachments, and the
// ephemeral encoded images handed to the inference service. It is
// independent of any specific store or inference backend.
package domain
