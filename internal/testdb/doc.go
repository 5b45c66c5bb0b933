//go:build integration

// Package testdb provides helpers for PostgreSQL integration tests.
//
// Tests run inside a transaction that is rolled back when the test
// completes, so they can share one migrated database and run in parallel:
//
//	func TestSomething(t *testing.T) {
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        s := postgres.NewWorkItemStore(tx)
//	        ...
//	    })
//	}
//
// The database is taken from ESSAYMARK_TEST_DATABASE_URL. When it is unset
// every test using GetTestDBWithT is skipped.
package testdb
