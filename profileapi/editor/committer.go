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

package editor

import (
	"context"
	"time"

	"github.com/catalogo-app/perfil/profileapi/api"
)

// Committer performs the remote part of a save. It may block; it must give
// up when ctx is done.
type Committer interface {
	Commit(ctx context.Context, profile api.UserProfile) error
}

// CommitterFunc adapts a function to the Committer interface.
type CommitterFunc func(ctx context.Context, profile api.UserProfile) error

func (f CommitterFunc) Commit(ctx context.Context, profile api.UserProfile) error {
	return f(ctx, profile)
}

// DelayCommitter stands in for a remote save by waiting. There is no
// backend to talk to yet.
type DelayCommitter struct {
	Delay time.Duration
}

func (c DelayCommitter) Commit(ctx context.Context, _ api.UserProfile) error {
	if c.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
