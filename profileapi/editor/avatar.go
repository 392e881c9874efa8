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
	"fmt"

	"github.com/opentracing/opentracing-go"

	"github.com/catalogo-app/perfil/profileapi/api"
	"github.com/catalogo-app/perfil/profileapi/session"
	"github.com/catalogo-app/perfil/profileapi/storage"
)

// AvatarCapture applies a decoded avatar right away, without waiting for the
// rest of the profile to be confirmed.
type AvatarCapture struct {
	store     storage.AvatarImageStore
	session   *session.Context
	publisher Publisher
}

func NewAvatarCapture(store storage.AvatarImageStore, sess *session.Context, publisher Publisher) *AvatarCapture {
	return &AvatarCapture{
		store:     store,
		session:   sess,
		publisher: publisher,
	}
}

// Apply writes image to the draft buffer, then to the session,
// then to the persistent cache. The cache write is staged first; if it
// fails to stage or commit, the draft and the session keep their previous
// avatar.
func (a *AvatarCapture) Apply(ctx context.Context, image string, buffer *Buffer) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AvatarCapture.Apply")
	defer span.Finish()

	prevDraft := buffer.Snapshot().AvatarImage
	prevSession := a.session.Read()
	ran := false
	err := a.store.StageAvatarImage(ctx, image, func() error {
		ran = true
		if err := buffer.Update(api.FieldAvatarImage, image); err != nil {
			return err
		}
		a.session.SetAvatarImage(image)
		return nil
	})
	if err != nil {
		span.SetTag("error", true)
		if ran {
			_ = buffer.Update(api.FieldAvatarImage, prevDraft)
			a.session.Rollback(prevSession, api.SessionState{
				DisplayName: prevSession.DisplayName,
				AvatarImage: image,
			})
		}
		return fmt.Errorf("a.store.StageAvatarImage: %w", err)
	}

	publish(ctx, a.publisher, &api.ProfileUpdate{
		AvatarImage: image,
		Updated:     []api.Field{api.FieldAvatarImage},
	})
	return nil
}
