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

package tables

import (
	"context"
	"database/sql"
)

// LocalStorageTable holds string values keyed by origin and key. Callers
// outside the storage packages never see it; they go through the typed
// accessors so every key keeps a single owner.
type LocalStorageTable interface {
	SelectValue(ctx context.Context, txn *sql.Tx, origin, key string) (value string, exists bool, err error)
	UpsertValue(ctx context.Context, txn *sql.Tx, origin, key, value string) error
	DeleteValue(ctx context.Context, txn *sql.Tx, origin, key string) error
}
