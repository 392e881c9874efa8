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

// Package session holds the display name and avatar that every screen shows
// for the current user. A single Context is created per process and handed
// to everything that reads or writes it.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/catalogo-app/perfil/profileapi/api"
)

// Loader reads the persisted values a session starts from.
type Loader interface {
	DisplayName(ctx context.Context) (string, bool, error)
	AvatarImage(ctx context.Context) (string, bool, error)
}

type Context struct {
	loader Loader
	group  singleflight.Group

	mu           sync.RWMutex
	state        api.SessionState
	version      uint64
	bootstrapped bool
	nameWritten  bool
	imageWritten bool
	subs         map[*Subscription]struct{}
}

// NewContext returns a session showing defaults until Bootstrap loads the
// persisted values.
func NewContext(loader Loader, defaults api.SessionState) *Context {
	return &Context{
		loader: loader,
		state:  defaults,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Read returns the latest written state.
func (c *Context) Read() api.SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Version increases every time the state changes.
func (c *Context) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

func (c *Context) Bootstrapped() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bootstrapped
}

// SetDisplayName replaces the display name. Writing the current value again
// changes nothing and notifies nobody.
func (c *Context) SetDisplayName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nameWritten = true
	if c.state.DisplayName == name {
		return
	}
	c.state.DisplayName = name
	c.changed()
}

// SetAvatarImage replaces the avatar. Writing the current value again
// changes nothing and notifies nobody.
func (c *Context) SetAvatarImage(image string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.imageWritten = true
	if c.state.AvatarImage == image {
		return
	}
	c.state.AvatarImage = image
	c.changed()
}

// Rollback puts back prev for every field that still holds the value from
// applied. Fields that somebody else has written since are left alone.
func (c *Context) Rollback(prev, applied api.SessionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := false
	if c.state.DisplayName == applied.DisplayName && c.state.DisplayName != prev.DisplayName {
		c.state.DisplayName = prev.DisplayName
		changed = true
	}
	if c.state.AvatarImage == applied.AvatarImage && c.state.AvatarImage != prev.AvatarImage {
		c.state.AvatarImage = prev.AvatarImage
		changed = true
	}
	if changed {
		c.changed()
	}
}

// Bootstrap loads the persisted display name and avatar once. Concurrent
// callers share a single load. If loading fails the session keeps its current
// values and a later call tries again. Values written before the load
// finishes win over the loaded ones.
func (c *Context) Bootstrap(ctx context.Context) error {
	if c.Bootstrapped() {
		return nil
	}
	_, err, _ := c.group.Do("bootstrap", func() (interface{}, error) {
		if c.Bootstrapped() {
			return nil, nil
		}
		name, hasName, err := c.loader.DisplayName(ctx)
		if err != nil {
			return nil, fmt.Errorf("c.loader.DisplayName: %w", err)
		}
		image, hasImage, err := c.loader.AvatarImage(ctx)
		if err != nil {
			return nil, fmt.Errorf("c.loader.AvatarImage: %w", err)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		changed := false
		if hasName && !c.nameWritten && c.state.DisplayName != name {
			c.state.DisplayName = name
			changed = true
		}
		if hasImage && !c.imageWritten && c.state.AvatarImage != image {
			c.state.AvatarImage = image
			changed = true
		}
		c.bootstrapped = true
		if changed {
			c.changed()
		}
		logrus.WithFields(logrus.Fields{
			"has_name":  hasName,
			"has_image": hasImage,
		}).Debug("Session bootstrapped from the persistent cache")
		return nil, nil
	})
	return err
}

// changed must be called with c.mu held for writing.
func (c *Context) changed() {
	c.version++
	for sub := range c.subs {
		sub.offer(c.state)
	}
}

// Subscribe returns a subscription that receives the latest state after
// every change. Slow readers only ever see the newest state.
func (c *Context) Subscribe() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := &Subscription{
		c:  c,
		ch: make(chan api.SessionState, 1),
	}
	c.subs[sub] = struct{}{}
	return sub
}

type Subscription struct {
	c  *Context
	ch chan api.SessionState
}

// C delivers states. It is closed by Close.
func (s *Subscription) C() <-chan api.SessionState {
	return s.ch
}

func (s *Subscription) offer(state api.SessionState) {
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- state:
	default:
	}
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if _, ok := s.c.subs[s]; !ok {
		return
	}
	delete(s.c.subs, s)
	close(s.ch)
}
