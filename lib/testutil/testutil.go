// Package testutil carries shared test setup: tracing wired to the
// test log and an in-memory sqlite database with a schema applied.
package testutil

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"jecnaapi/lib/telemetry"

	_ "modernc.org/sqlite"
)

type Params struct {
	Name string
	// if unspecified, no database is opened and Result.DB is nil
	DbSchema string
}

type Result struct {
	DB *sql.DB
}

func Setup(t testing.TB, params Params) (Result, func()) {
	cleanup := telemetry.SetupForTesting(t, fmt.Sprintf("test:%s", params.Name))

	if params.DbSchema == "" {
		return Result{}, cleanup
	}

	sqlite, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	_, err = sqlite.Exec(params.DbSchema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		t.Fatal(err)
	}

	return Result{DB: sqlite}, func() {
		sqlite.Close()
		cleanup()
	}
}
