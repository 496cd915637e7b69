// Package testdb provides helpers for tests that need a real PostgreSQL
// database.
//
// Tests using it are skipped unless SHANNON_TEST_DATABASE_URL is set:
//
//	func TestSomething(t *testing.T) {
//	    db := testdb.Open(t)
//	    testdb.Reset(t, db)
//	    ...
//	}
//
// Open applies the embedded migrations once per process, so the schema is
// always current. Tests sharing a database must not run in parallel;
// Reset empties every memory table.
package testdb
