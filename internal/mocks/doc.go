// Package mocks provides func-field test doubles for the store and
// inference interfaces. Each mock records its calls and is safe for
// concurrent use.
package mocks
