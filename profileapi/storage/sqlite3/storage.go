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
	"fmt"

	"github.com/catalogo-app/perfil/internal/caching"
	"github.com/catalogo-app/perfil/internal/sqlutil"
	"github.com/catalogo-app/perfil/profileapi/storage/shared"
	"github.com/catalogo-app/perfil/setup/config"
)

// NewDatabase creates a new persistent cache database backed by SQLite.
func NewDatabase(
	conMan *sqlutil.Connections, dbProperties *config.DatabaseOptions,
	cache caching.Cache[caching.LocalStorageKey, string], origin string,
) (*shared.Database, error) {
	db, writer, err := conMan.Connection(dbProperties)
	if err != nil {
		return nil, err
	}
	localStorage, err := NewSQLiteLocalStorageTable(db)
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteLocalStorageTable: %w", err)
	}
	return &shared.Database{
		DB:           db,
		Writer:       writer,
		LocalStorage: localStorage,
		Cache:        cache,
		Origin:       origin,
	}, nil
}
