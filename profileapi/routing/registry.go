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

package routing

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/catalogo-app/perfil/profileapi/editor"
)

// Registry holds the screens mounted over HTTP. A screen nobody has touched
// for the idle timeout is unmounted.
type Registry struct {
	screens *cache.Cache
}

func NewRegistry(idleTimeout time.Duration) *Registry {
	cleanup := idleTimeout / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	c := cache.New(idleTimeout, cleanup)
	c.OnEvicted(func(_ string, v interface{}) {
		v.(*editor.Screen).Unmount()
	})
	return &Registry{screens: c}
}

func (r *Registry) Add(s *editor.Screen) {
	r.screens.SetDefault(s.ID(), s)
}

// Get returns the screen and pushes back its idle deadline.
func (r *Registry) Get(id string) (*editor.Screen, bool) {
	v, ok := r.screens.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(*editor.Screen)
	r.screens.SetDefault(id, s)
	return s, true
}

// Remove unmounts the screen.
func (r *Registry) Remove(id string) bool {
	if _, ok := r.screens.Get(id); !ok {
		return false
	}
	r.screens.Delete(id)
	return true
}

func (r *Registry) Len() int {
	return r.screens.ItemCount()
}

// Close unmounts every screen.
func (r *Registry) Close() {
	for id := range r.screens.Items() {
		r.screens.Delete(id)
	}
}
