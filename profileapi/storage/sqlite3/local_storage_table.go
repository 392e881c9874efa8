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

package sqlite3

import (
	"context"
	"database/sql"
	"time"

	"github.com/catalogo-app/perfil/internal/sqlutil"
	"github.com/catalogo-app/perfil/profileapi/storage/tables"
)

const localStorageSchema = `
-- Durable per-origin values that survive restarts.
CREATE TABLE IF NOT EXISTS perfil_local_storage (
	-- The origin the value is scoped to
	origin TEXT NOT NULL,
	-- The key, e.g. userName
	storage_key TEXT NOT NULL,
	-- The value, stored exactly as written
	value TEXT NOT NULL,
	-- When the value was last written, in milliseconds
	updated_ts INTEGER NOT NULL,
	UNIQUE (origin, storage_key)
);
`

const selectLocalStorageValueSQL = "" +
	"SELECT value FROM perfil_local_storage WHERE origin = $1 AND storage_key = $2"

const upsertLocalStorageValueSQL = "" +
	"INSERT INTO perfil_local_storage (origin, storage_key, value, updated_ts) VALUES ($1, $2, $3, $4)" +
	" ON CONFLICT (origin, storage_key) DO UPDATE SET value = $3, updated_ts = $4"

const deleteLocalStorageValueSQL = "" +
	"DELETE FROM perfil_local_storage WHERE origin = $1 AND storage_key = $2"

type localStorageStatements struct {
	db              *sql.DB
	selectValueStmt *sql.Stmt
	upsertValueStmt *sql.Stmt
	deleteValueStmt *sql.Stmt
}

func NewSQLiteLocalStorageTable(db *sql.DB) (tables.LocalStorageTable, error) {
	s := &localStorageStatements{
		db: db,
	}
	_, err := db.Exec(localStorageSchema)
	if err != nil {
		return nil, err
	}
	return s, sqlutil.StatementList{
		{&s.selectValueStmt, selectLocalStorageValueSQL},
		{&s.upsertValueStmt, upsertLocalStorageValueSQL},
		{&s.deleteValueStmt, deleteLocalStorageValueSQL},
	}.Prepare(db)
}

func (s *localStorageStatements) SelectValue(
	ctx context.Context, txn *sql.Tx, origin, key string,
) (string, bool, error) {
	var value string
	err := sqlutil.TxStmt(txn, s.selectValueStmt).QueryRowContext(ctx, origin, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *localStorageStatements) UpsertValue(
	ctx context.Context, txn *sql.Tx, origin, key, value string,
) error {
	_, err := sqlutil.TxStmt(txn, s.upsertValueStmt).ExecContext(ctx, origin, key, value, time.Now().UnixMilli())
	return err
}

func (s *localStorageStatements) DeleteValue(
	ctx context.Context, txn *sql.Tx, origin, key string,
) error {
	_, err := sqlutil.TxStmt(txn, s.deleteValueStmt).ExecContext(ctx, origin, key)
	return err
}
