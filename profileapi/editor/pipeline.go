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
	"errors"
	"fmt"

	"github.com/matrix-org/util"
	"github.com/opentracing/opentracing-go"

	"github.com/catalogo-app/perfil/profileapi/api"
	"github.com/catalogo-app/perfil/profileapi/session"
	"github.com/catalogo-app/perfil/profileapi/storage"
)

// Publisher tells other processes that a profile changed.
type Publisher interface {
	PublishProfileUpdate(ctx context.Context, update *api.ProfileUpdate) error
}

// Pipeline commits a confirmed snapshot and fans it out to the caller, the
// session and the persistent cache.
type Pipeline struct {
	committer Committer
	store     storage.DisplayNameStore
	session   *session.Context
	publisher Publisher
}

func NewPipeline(committer Committer, store storage.DisplayNameStore, sess *session.Context, publisher Publisher) *Pipeline {
	return &Pipeline{
		committer: committer,
		store:     store,
		session:   sess,
		publisher: publisher,
	}
}

// Commit runs the remote part of the save. Nothing local changes here.
func (p *Pipeline) Commit(ctx context.Context, snapshot api.UserProfile) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Pipeline.Commit")
	defer span.Finish()
	if err := p.committer.Commit(ctx, snapshot); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", api.ErrUnmounted, err)
		}
		span.SetTag("error", true)
		return fmt.Errorf("%w: %s", api.ErrCommitFailed, err)
	}
	return nil
}

// Apply makes a committed snapshot visible. In order: onSubmit is called
// with the snapshot, the session display name is set, the session avatar is
// set and the cached display name is written. The cache write is staged
// first, so if it cannot be staged none of the other effects happen. If it
// cannot be committed the session is put back; onSubmit cannot be taken
// back and has already run.
func (p *Pipeline) Apply(ctx context.Context, snapshot api.UserProfile, onSubmit func(api.UserProfile)) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Pipeline.Apply")
	defer span.Finish()

	prev := p.session.Read()
	applied := api.SessionState{DisplayName: snapshot.Name, AvatarImage: snapshot.AvatarImage}
	ran := false
	err := p.store.StageDisplayName(ctx, snapshot.Name, func() error {
		ran = true
		if onSubmit != nil {
			onSubmit(snapshot)
		}
		p.session.SetDisplayName(snapshot.Name)
		p.session.SetAvatarImage(snapshot.AvatarImage)
		return nil
	})
	if err != nil {
		span.SetTag("error", true)
		if ran {
			p.session.Rollback(prev, applied)
		}
		return fmt.Errorf("%w: %s", api.ErrCommitFailed, err)
	}

	publish(ctx, p.publisher, &api.ProfileUpdate{
		DisplayName: snapshot.Name,
		AvatarImage: snapshot.AvatarImage,
		Updated:     []api.Field{api.FieldName, api.FieldAvatarImage},
	})
	return nil
}

// Run commits and applies a snapshot, giving up before applying anything if
// ctx is done by then.
func (p *Pipeline) Run(ctx context.Context, snapshot api.UserProfile, onSubmit func(api.UserProfile)) error {
	if err := p.Commit(ctx, snapshot); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s", api.ErrUnmounted, err)
	}
	return p.Apply(context.WithoutCancel(ctx), snapshot, onSubmit)
}

// publish is best effort and happens in the background: the change has
// already been applied locally.
func publish(ctx context.Context, publisher Publisher, update *api.ProfileUpdate) {
	if publisher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := publisher.PublishProfileUpdate(ctx, update); err != nil && !errors.Is(err, context.Canceled) {
			util.GetLogger(ctx).WithError(err).Warn("Failed to publish profile update")
		}
	}()
}
