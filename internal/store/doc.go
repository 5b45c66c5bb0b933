// Package store defines the persistence boundary of the batch pipeline:
// selecting pending work items, writing results back with the Pending ->
// Done transition, resolving attachment tokens to bytes, and listing and
// deleting records for the maintenance reset. Backends live under
// internal/platform.
package store
