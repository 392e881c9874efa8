// Copyright 2024 The Perfil Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package test

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lib/pq"
)

type DBType int

var DBTypeSQLite DBType = 1
var DBTypePostgres DBType = 2

func (t DBType) String() string {
	switch t {
	case DBTypeSQLite:
		return "sqlite"
	case DBTypePostgres:
		return "postgres"
	default:
		return fmt.Sprintf("DBType(%d)", int(t))
	}
}

// Postgres tests only run when PERFIL_TEST_POSTGRES=1, SQLite always runs.
// With PERFIL_TEST_SKIP_NODB set, a missing postgres skips instead of failing.
var (
	WithPostgres = os.Getenv("PERFIL_TEST_POSTGRES") == "1"
	Required     = os.Getenv("PERFIL_TEST_SKIP_NODB") == ""
)

func fatalError(t *testing.T, format string, args ...interface{}) {
	t.Helper()
	if Required {
		t.Fatalf(format, args...)
	} else {
		t.Skipf(format, args...)
	}
}

// postgresEnv is where to find the test server. Anything not in the
// environment is inferred from the local machine.
type postgresEnv struct {
	user, password, host string
	// superuserDB is set when the server is remote; databases are then
	// created over SQL instead of with createdb.
	superuserDB string
}

func loadPostgresEnv(t *testing.T) postgresEnv {
	env := postgresEnv{
		user:        os.Getenv("POSTGRES_USER"),
		password:    os.Getenv("POSTGRES_PASSWORD"),
		host:        os.Getenv("POSTGRES_HOST"),
		superuserDB: os.Getenv("POSTGRES_DB"),
	}
	if env.user == "" {
		u, err := user.Current()
		if err != nil {
			t.Fatalf("cannot get current user: %s", err)
		}
		env.user = u.Username
	}
	return env
}

func (e postgresEnv) connStr(dbName string) string {
	parts := []string{"user=" + e.user, "sslmode=disable"}
	if e.password != "" {
		parts = append(parts, "password="+e.password)
	}
	if e.host != "" {
		parts = append(parts, "host="+e.host)
	}
	if dbName != "" {
		parts = append(parts, "dbname="+dbName)
	}
	return strings.Join(parts, " ")
}

func (e postgresEnv) createDB(t *testing.T, dbName string) {
	if e.superuserDB == "" {
		if _, err := exec.LookPath("createdb"); err != nil {
			fatalError(t, "Note: tests require a postgres install accessible to the current user")
			return
		}
		// An existing database is fine, so the exit status is not checked.
		_ = exec.Command("createdb", dbName).Run()
		return
	}

	db, err := sql.Open("postgres", e.connStr(e.superuserDB))
	if err != nil {
		fatalError(t, "failed to open postgres conn: %s", err)
		return
	}
	defer db.Close() // nolint: errcheck
	if err = db.Ping(); err != nil {
		fatalError(t, "failed to reach postgres: %s", err)
		return
	}
	if _, err = db.Exec(`CREATE DATABASE ` + pq.QuoteIdentifier(dbName)); err != nil {
		var pqErr *pq.Error
		// 42P04 is duplicate_database
		if !errors.As(err, &pqErr) || pqErr.Code != "42P04" {
			t.Fatalf("failed to CREATE DATABASE: %s", err)
		}
	}
	if _, err = db.Exec(`GRANT ALL PRIVILEGES ON DATABASE ` + pq.QuoteIdentifier(dbName) + ` TO ` + pq.QuoteIdentifier(e.user)); err != nil {
		t.Fatalf("failed to GRANT: %s", err)
	}
}

// PrepareDBConnectionString returns a connection string for a database of
// the given type and a function that empties it again. SQLite databases
// live in the test's temporary directory. Every postgres caller in the same
// package gets the same database, named after the package directory so that
// packages tested concurrently do not collide.
func PrepareDBConnectionString(t *testing.T, dbType DBType) (connStr string, close func()) {
	if dbType == DBTypeSQLite {
		return "file:" + filepath.Join(t.TempDir(), "perfil_test.db"), func() {}
	}

	env := loadPostgresEnv(t)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("cannot get working directory: %s", err)
	}
	hash := sha256.Sum256([]byte(wd))
	dbName := "perfil_test_" + hex.EncodeToString(hash[:16])
	env.createDB(t, dbName)

	connStr = env.connStr(dbName)
	return connStr, func() {
		db, err := sql.Open("postgres", connStr)
		if err != nil {
			t.Fatalf("failed to connect to postgres db: %s", err)
		}
		defer db.Close() // nolint: errcheck
		if _, err = db.Exec(`DROP SCHEMA public CASCADE; CREATE SCHEMA public;`); err != nil {
			t.Fatalf("failed to cleanup postgres db: %s", err)
		}
	}
}

// WithAllDatabases runs testFn as a subtest for every database type that
// is enabled.
func WithAllDatabases(t *testing.T, testFn func(t *testing.T, db DBType)) {
	dbs := []DBType{DBTypeSQLite}
	if WithPostgres {
		dbs = append(dbs, DBTypePostgres)
	}
	for _, dbType := range dbs {
		dbType := dbType
		t.Run(dbType.String(), func(t *testing.T) {
			testFn(t, dbType)
		})
	}
}
