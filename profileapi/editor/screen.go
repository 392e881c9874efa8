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
	"io"
	"time"

	"github.com/Arceliar/phony"
	"github.com/matrix-org/util"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/catalogo-app/perfil/internal/i18n"
	"github.com/catalogo-app/perfil/profileapi/api"
)

var errCommitsFailing = errors.New("profile commits are failing")

const selectAvatarAction = "select an avatar"

// Screen is one mounted profile screen. All state is owned by the actor;
// decoding and the commit delay run on their own goroutines and report back
// through it.
type Screen struct {
	phony.Inbox
	id       string
	editor   *Editor
	ctx      context.Context
	cancel   context.CancelFunc
	props    Props
	lang     language.Tag
	printer  *message.Printer
	buffer   *Buffer
	workflow *Workflow
	alive    bool
	notice   *notice
	commit   *Task
	decode   *Task
}

type notice struct {
	err error // nil for informational notices
	key string
}

func (s *Screen) ID() string {
	return s.id
}

func (s *Screen) Language() language.Tag {
	return s.lang
}

func (s *Screen) logger() *logrus.Entry {
	return util.GetLogger(s.ctx).WithField("screen_id", s.id)
}

// Update changes one draft field.
func (s *Screen) Update(field api.Field, value string) (err error) {
	phony.Block(s, func() {
		if err = s.writable("update"); err != nil {
			return
		}
		err = s.buffer.Update(field, value)
	})
	return
}

// Submit validates the draft and, when it is valid, opens the
// confirmation dialog.
func (s *Screen) Submit() (err error) {
	phony.Block(s, func() {
		if !s.alive {
			err = api.ErrUnmounted
			return
		}
		if !s.props.Editable {
			err = api.ErrReadOnly
			return
		}
		err = s.workflow.Submit(s.buffer.Snapshot())
		var verr *api.ValidationError
		switch {
		case err == nil:
			s.notice = nil
			if s.decode != nil {
				s.decode.Cancel()
			}
			submissionsTotal.WithLabelValues("accepted").Inc()
		case errors.As(err, &verr):
			s.notice = &notice{err: err}
			submissionsTotal.WithLabelValues("rejected").Inc()
			s.logger().WithField("field", verr.Field).WithField("reason", verr.Reason).Debug("Submission rejected")
		}
	})
	return
}

// Cancel closes the confirmation dialog without committing anything.
func (s *Screen) Cancel() (err error) {
	phony.Block(s, func() {
		if !s.alive {
			err = api.ErrUnmounted
			return
		}
		err = s.workflow.Cancel()
	})
	return
}

// Confirm starts committing the snapshot taken when the draft was
// submitted. The returned task finishes once the commit has been applied,
// has failed or was abandoned because the screen went away.
func (s *Screen) Confirm() (task *Task, err error) {
	phony.Block(s, func() {
		if !s.alive {
			err = api.ErrUnmounted
			return
		}
		var snapshot api.UserProfile
		if snapshot, err = s.workflow.Confirm(); err != nil {
			return
		}
		var ctx context.Context
		task, ctx = newTask(s.ctx)
		s.commit = task
		s.notice = nil
		started := time.Now()
		go func() {
			err := s.editor.pipeline.Commit(ctx, snapshot)
			s.Act(nil, func() {
				s.finishCommit(ctx, task, snapshot, started, err)
			})
		}()
	})
	return
}

func (s *Screen) finishCommit(ctx context.Context, task *Task, snapshot api.UserProfile, started time.Time, err error) {
	defer func() {
		commitDuration.Observe(time.Since(started).Seconds())
	}()
	if s.commit == task {
		s.commit = nil
	}
	if !s.alive {
		commitsTotal.WithLabelValues("abandoned").Inc()
		task.finish(fmt.Errorf("%w: commit abandoned", api.ErrUnmounted))
		return
	}
	if err == nil {
		err = s.editor.pipeline.Apply(context.WithoutCancel(ctx), snapshot, s.props.OnSubmit)
	}
	if err != nil {
		_ = s.workflow.Fail()
		s.notice = &notice{err: err}
		commitsTotal.WithLabelValues("failed").Inc()
		s.logger().WithError(err).Error("Failed to commit profile changes")
		if s.editor.process != nil && errors.Is(err, api.ErrCommitFailed) {
			s.editor.process.Degraded(errCommitsFailing)
		}
		task.finish(err)
		return
	}
	_ = s.workflow.Complete()
	sess := s.editor.session.Read()
	s.buffer.Reset(api.UserProfile{
		Name:        sess.DisplayName,
		Email:       snapshot.Email,
		AvatarImage: sess.AvatarImage,
	})
	s.notice = &notice{key: i18n.Saved}
	commitsTotal.WithLabelValues("applied").Inc()
	s.logger().Info("Profile changes saved")
	task.finish(nil)
}

// SelectAvatar decodes the image read from r and writes it straight to the
// draft, the session and the persistent cache. A selection in flight is
// superseded by the next one and dropped by a submission, so the avatar
// never changes between a submission and its commit.
func (s *Screen) SelectAvatar(source api.AvatarSource, r io.Reader) (task *Task, err error) {
	phony.Block(s, func() {
		if err = s.writable(selectAvatarAction); err != nil {
			return
		}
		if state := s.workflow.State(); state != api.Idle {
			err = &api.InvalidTransitionError{Action: selectAvatarAction, State: state}
			return
		}
		if s.decode != nil {
			s.decode.Cancel()
		}
		var ctx context.Context
		task, ctx = newTask(s.ctx)
		s.decode = task
		go func() {
			image, err := s.editor.decoder.Decode(ctx, r)
			s.Act(nil, func() {
				s.finishAvatar(ctx, task, source, image, err)
			})
		}()
	})
	return
}

func (s *Screen) finishAvatar(ctx context.Context, task *Task, source api.AvatarSource, image string, err error) {
	if s.decode == task {
		s.decode = nil
	}
	outcome := "applied"
	switch {
	case !s.alive:
		outcome = "abandoned"
		err = fmt.Errorf("%w: avatar selection abandoned", api.ErrUnmounted)
	case s.workflow.State() != api.Idle:
		outcome = "dropped"
		err = &api.InvalidTransitionError{Action: selectAvatarAction, State: s.workflow.State()}
	case ctx.Err() != nil:
		outcome = "superseded"
		err = ctx.Err()
	case err != nil:
		outcome = "rejected"
		s.notice = &notice{err: err}
		s.logger().WithError(err).Debug("Avatar selection rejected")
	default:
		if err = s.editor.avatars.Apply(context.WithoutCancel(ctx), image, s.buffer); err != nil {
			outcome = "failed"
			s.notice = &notice{err: err}
			s.logger().WithError(err).Error("Failed to store avatar")
		} else {
			s.notice = nil
		}
	}
	avatarCapturesTotal.WithLabelValues(string(source), outcome).Inc()
	task.finish(err)
}

// writable must be called from the actor.
func (s *Screen) writable(action string) error {
	switch {
	case !s.alive:
		return api.ErrUnmounted
	case !s.props.Editable:
		return api.ErrReadOnly
	case s.workflow.DialogVisible():
		return &api.InvalidTransitionError{Action: action, State: s.workflow.State()}
	}
	return nil
}

func (s *Screen) State() (state api.WorkflowState) {
	phony.Block(s, func() {
		state = s.workflow.State()
	})
	return
}

// Draft returns a copy of the current draft, passwords included.
func (s *Screen) Draft() (draft api.UserProfile) {
	phony.Block(s, func() {
		draft = s.buffer.Snapshot()
	})
	return
}

func (s *Screen) Mounted() (alive bool) {
	phony.Block(s, func() {
		alive = s.alive
	})
	return
}

// Unmount closes the screen. A commit still waiting out its delay is
// abandoned and never reaches the session or the persistent cache.
func (s *Screen) Unmount() {
	phony.Block(s, func() {
		if !s.alive {
			return
		}
		s.alive = false
		s.cancel()
		screensMounted.Dec()
		s.logger().Debug("Unmounted profile screen")
	})
}
