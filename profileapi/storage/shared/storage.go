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

package shared

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/opentracing/opentracing-go"

	"github.com/catalogo-app/perfil/internal/caching"
	"github.com/catalogo-app/perfil/internal/sqlutil"
	"github.com/catalogo-app/perfil/profileapi/storage/tables"
)

// Keys of the two persistent entries.
const (
	UserNameKey           = "userName"
	UserProfilePictureKey = "userProfilePicture"
)

// Database represents the persistent cache of one origin.
type Database struct {
	DB           *sql.DB
	Writer       sqlutil.Writer
	LocalStorage tables.LocalStorageTable
	Cache        caching.Cache[caching.LocalStorageKey, string]
	Origin       string
	fills        fillGuard
}

// fillGuard stops a read-through fill from caching a row that a concurrent
// stage has since replaced. Every stage bumps the key's generation when it
// starts and when it ends; a fill only lands if no stage is running and the
// generation has not moved since the row was read.
type fillGuard struct {
	mu      sync.Mutex
	gen     map[string]uint64
	staging map[string]int
}

func (g *fillGuard) generation(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen[key]
}

// fill runs set if the key is unchanged since gen.
func (g *fillGuard) fill(key string, gen uint64, set func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.staging[key] == 0 && g.gen[key] == gen {
		set()
	}
}

func (g *fillGuard) begin(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen == nil {
		g.gen = map[string]uint64{}
		g.staging = map[string]int{}
	}
	g.staging[key]++
	g.gen[key]++
}

// end runs set, if given, before any waiting fill can.
func (g *fillGuard) end(key string, set func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.staging[key]--
	g.gen[key]++
	if set != nil {
		set()
	}
}

func (d *Database) DisplayName(ctx context.Context) (string, bool, error) {
	return d.value(ctx, UserNameKey)
}

func (d *Database) StageDisplayName(ctx context.Context, name string, apply func() error) error {
	return d.stage(ctx, UserNameKey, name, apply)
}

func (d *Database) AvatarImage(ctx context.Context) (string, bool, error) {
	return d.value(ctx, UserProfilePictureKey)
}

func (d *Database) StageAvatarImage(ctx context.Context, image string, apply func() error) error {
	return d.stage(ctx, UserProfilePictureKey, image, apply)
}

func (d *Database) cacheKey(key string) caching.LocalStorageKey {
	return caching.LocalStorageKey{Origin: d.Origin, Key: key}
}

func (d *Database) value(ctx context.Context, key string) (string, bool, error) {
	if d.Cache != nil {
		if v, ok := d.Cache.Get(d.cacheKey(key)); ok {
			return v, true, nil
		}
	}
	gen := d.fills.generation(key)
	v, exists, err := d.LocalStorage.SelectValue(ctx, nil, d.Origin, key)
	if err != nil {
		return "", false, fmt.Errorf("d.LocalStorage.SelectValue: %w", err)
	}
	if exists && d.Cache != nil {
		d.fills.fill(key, gen, func() {
			d.Cache.Set(d.cacheKey(key), v)
		})
	}
	return v, exists, nil
}

func (d *Database) stage(ctx context.Context, key, value string, apply func() error) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "storage.stage")
	defer span.Finish()
	span.SetTag("key", key)

	// The cached copy goes first so that nobody reads it while the row is
	// changing underneath.
	d.fills.begin(key)
	if d.Cache != nil {
		d.Cache.Unset(d.cacheKey(key))
	}
	err := d.Writer.Do(ctx, d.DB, nil, func(txn *sql.Tx) error {
		if err := d.LocalStorage.UpsertValue(ctx, txn, d.Origin, key, value); err != nil {
			return fmt.Errorf("d.LocalStorage.UpsertValue: %w", err)
		}
		if apply != nil {
			return apply()
		}
		return nil
	})
	if err != nil {
		span.SetTag("error", true)
		d.fills.end(key, nil)
		return err
	}
	d.fills.end(key, func() {
		if d.Cache != nil {
			d.Cache.Set(d.cacheKey(key), value)
		}
	})
	return nil
}
