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

// Package editor implements profile screens: the draft buffer, the
// confirmation workflow, the commit pipeline and avatar capture, all driven
// by one actor per mounted screen.
package editor

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/matrix-org/util"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/catalogo-app/perfil/internal/i18n"
	"github.com/catalogo-app/perfil/profileapi/api"
	"github.com/catalogo-app/perfil/profileapi/avatar"
	"github.com/catalogo-app/perfil/profileapi/session"
	"github.com/catalogo-app/perfil/profileapi/storage"
	"github.com/catalogo-app/perfil/setup/process"
)

// Props are what the host passes to a screen when mounting it.
type Props struct {
	Initial api.UserProfile
	// OnSubmit is called with every committed snapshot, from the screen's
	// actor. It must not call back into the same screen.
	OnSubmit func(api.UserProfile)
	Editable bool
}

type Options struct {
	RequireCurrentPassword bool
	DefaultLanguage        language.Tag
}

// Editor mounts screens and holds what they share.
type Editor struct {
	process  *process.ProcessContext
	session  *session.Context
	store    storage.Database
	decoder  *avatar.Decoder
	pipeline *Pipeline
	avatars  *AvatarCapture
	opts     Options
}

// NewEditor wires the screens' collaborators. publisher may be nil.
func NewEditor(
	processCtx *process.ProcessContext,
	sess *session.Context,
	store storage.Database,
	decoder *avatar.Decoder,
	committer Committer,
	publisher Publisher,
	opts Options,
) *Editor {
	if opts.DefaultLanguage == language.Und {
		opts.DefaultLanguage = language.BrazilianPortuguese
	}
	return &Editor{
		process:  processCtx,
		session:  sess,
		store:    store,
		decoder:  decoder,
		pipeline: NewPipeline(committer, store, sess, publisher),
		avatars:  NewAvatarCapture(store, sess, publisher),
		opts:     opts,
	}
}

func (e *Editor) Session() *session.Context {
	return e.session
}

// Mount opens a screen. The draft starts from props.Initial with the
// password fields cleared and the name and avatar replaced by the persisted
// ones when there are any.
// MaxAvatarSize is the largest avatar payload accepted, in bytes.
func (e *Editor) MaxAvatarSize() int64 {
	return e.decoder.MaxSize()
}

func (e *Editor) Mount(ctx context.Context, props Props, lang language.Tag) (*Screen, error) {
	logger := util.GetLogger(ctx)
	if err := e.session.Bootstrap(ctx); err != nil {
		logger.WithError(err).Warn("Failed to load the session from the persistent cache, using defaults")
	}

	seed := props.Initial.WithoutPasswords()
	if name, exists, err := e.store.DisplayName(ctx); err != nil {
		logger.WithError(err).Warn("Failed to read the cached display name")
	} else if exists && name != "" {
		seed.Name = name
	}
	if image, exists, err := e.store.AvatarImage(ctx); err != nil {
		logger.WithError(err).Warn("Failed to read the cached avatar")
	} else if exists && image != "" {
		seed.AvatarImage = image
	}

	if lang == language.Und {
		lang = e.opts.DefaultLanguage
	}
	var screenCtx context.Context
	var cancel context.CancelFunc
	if e.process != nil {
		screenCtx, cancel = e.process.Child()
	} else {
		screenCtx, cancel = context.WithCancel(context.Background())
	}
	s := &Screen{
		id:       uuid.NewString(),
		editor:   e,
		ctx:      screenCtx,
		cancel:   cancel,
		props:    props,
		lang:     lang,
		printer:  i18n.Printer(lang),
		buffer:   NewBuffer(seed),
		workflow: NewWorkflow(e.opts.RequireCurrentPassword),
		alive:    true,
	}
	screensMounted.Inc()
	logger.WithField("screen_id", s.id).WithField("editable", props.Editable).Debug("Mounted profile screen")
	return s, nil
}

// Describe renders err as a message for the user.
func (e *Editor) Describe(p *message.Printer, err error) string {
	var verr *api.ValidationError
	switch {
	case errors.As(err, &verr):
		if verr.Reason == api.ReasonPasswordMismatch {
			return p.Sprintf(i18n.PasswordMismatch)
		}
		return p.Sprintf(i18n.FieldRequired, p.Sprintf(fieldLabel(verr.Field)))
	case errors.Is(err, api.ErrAvatarTooLarge):
		return p.Sprintf(i18n.AvatarTooLarge, e.decoder.MaxSize()/1024)
	case errors.Is(err, api.ErrAvatarDecode):
		return p.Sprintf(i18n.AvatarDecodeFailed)
	case errors.Is(err, api.ErrCommitInProgress):
		return p.Sprintf(i18n.CommitInProgress)
	case errors.Is(err, api.ErrUnmounted):
		return p.Sprintf(i18n.ScreenClosed)
	case errors.Is(err, api.ErrCommitFailed):
		return p.Sprintf(i18n.CommitFailed)
	case errors.Is(err, api.ErrReadOnly):
		return p.Sprintf(i18n.ReadOnly)
	case errors.Is(err, api.ErrInvalidTransition):
		return p.Sprintf(i18n.NotAllowed)
	case errors.Is(err, api.ErrUnknownField):
		return p.Sprintf(i18n.UnknownField)
	default:
		return p.Sprintf(i18n.InternalError)
	}
}

func fieldLabel(f api.Field) string {
	switch f {
	case api.FieldName:
		return i18n.LabelName
	case api.FieldEmail:
		return i18n.LabelEmail
	case api.FieldAvatarImage:
		return i18n.LabelAvatar
	case api.FieldCurrentPassword:
		return i18n.LabelCurrentPassword
	case api.FieldNewPassword:
		return i18n.LabelNewPassword
	case api.FieldConfirmNewPassword:
		return i18n.LabelConfirmNewPassword
	}
	return string(f)
}
