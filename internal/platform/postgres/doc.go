// Package postgres provides the self-hosted PostgreSQL backend for the
// interfaces defined in internal/store. Work items live in the work_items
// table and their image attachments, stored inline as bytea, in
// work_item_attachments. The schema ships as goose migrations embedded in
// the binary.
package postgres
