package service

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
)

// A no-op database/sql driver so service transactions can begin and commit in
// tests. All reads and writes go through mocked stores, so no statement ever
// reaches the driver.
type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) { return fakeConn{}, nil }

type fakeConn struct{}

func (fakeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("fakedb does not execute statements")
}
func (fakeConn) Close() error              { return nil }
func (fakeConn) Begin() (driver.Tx, error) { return fakeTx{}, nil }

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

func init() {
	sql.Register("fakedb", fakeDriver{})
}

func newFakeDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := sql.Open("fakedb", "")
	if err != nil {
		t.Fatalf("open fakedb: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}
