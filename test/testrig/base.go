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

package testrig

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/catalogo-app/perfil/setup/base"
	"github.com/catalogo-app/perfil/setup/config"
	"github.com/catalogo-app/perfil/test"
)

// CreateConfig returns a config for the given database type with JetStream
// kept in memory and no commit delay. The database is removed once the test
// and everything it started have finished.
func CreateConfig(t *testing.T, dbType test.DBType) *config.Perfil {
	var cfg config.Perfil
	cfg.Defaults(true)
	cfg.Logging = []config.LogrusHook{{Type: "std", Level: "warn"}}
	cfg.ProfileAPI.CommitDelay = 0
	cfg.Global.JetStream.InMemory = true
	cfg.Global.JetStream.StoragePath = config.Path(t.TempDir())
	// use a distinct prefix else concurrent postgres/sqlite runs will clash
	cfg.Global.JetStream.TopicPrefix = fmt.Sprintf("Test_%d_", dbType)

	switch dbType {
	case test.DBTypePostgres:
		connStr, close := test.PrepareDBConnectionString(t, dbType)
		cfg.Global.DatabaseOptions = config.DatabaseOptions{
			ConnectionString:       config.DataSource(connStr),
			MaxOpenConnections:     10,
			MaxIdleConnections:     2,
			ConnMaxLifetimeSeconds: 60,
		}
		cfg.ProfileAPI.Database = config.DatabaseOptions{}
		t.Cleanup(close)
	case test.DBTypeSQLite:
		cfg.ProfileAPI.Database.ConnectionString = config.DataSource("file:" + filepath.Join(t.TempDir(), "perfil.db"))
	default:
		t.Fatalf("unknown db type: %v", dbType)
	}
	return &cfg
}

// Base starts a BasePerfil and connects to its in-process NATS server.
func Base(t *testing.T, cfg *config.Perfil) (*base.BasePerfil, nats.JetStreamContext, *nats.Conn) {
	t.Helper()
	b := base.NewBasePerfil(cfg, "Tests", base.DisableMetrics)
	js, jc, err := b.NATS.Prepare(b.ProcessContext, &cfg.Global.JetStream)
	if err != nil {
		t.Fatalf("failed to prepare NATS: %s", err)
	}
	t.Cleanup(func() {
		b.Shutdown()
		b.WaitForComponentsToFinish()
		_ = b.Close()
	})
	return b, js, jc
}
