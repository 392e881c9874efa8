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
	"github.com/catalogo-app/perfil/profileapi/api"
)

// Workflow gates saving behind an explicit confirmation:
//
//	Idle --Submit--> AwaitingConfirmation --Confirm--> Committing --Complete--> Idle
//	                 AwaitingConfirmation --Cancel---> Idle
//	                                       Committing --Fail-----> AwaitingConfirmation
//
// The zero value is an Idle workflow.
type Workflow struct {
	state                  api.WorkflowState
	pending                api.UserProfile
	requireCurrentPassword bool
}

func NewWorkflow(requireCurrentPassword bool) *Workflow {
	return &Workflow{requireCurrentPassword: requireCurrentPassword}
}

func (w *Workflow) State() api.WorkflowState {
	return w.state
}

// DialogVisible reports whether the confirmation dialog is showing.
func (w *Workflow) DialogVisible() bool {
	return w.state == api.AwaitingConfirmation
}

// Pending returns the snapshot awaiting confirmation or being committed.
func (w *Workflow) Pending() (api.UserProfile, bool) {
	if w.state == api.Idle {
		return api.UserProfile{}, false
	}
	return w.pending, true
}

// Submit validates the profile and opens the confirmation dialog. A
// rejected profile leaves the workflow Idle.
func (w *Workflow) Submit(profile api.UserProfile) error {
	switch w.state {
	case api.Committing:
		return api.ErrCommitInProgress
	case api.AwaitingConfirmation:
		return &api.InvalidTransitionError{Action: "submit", State: w.state}
	}
	if err := Validate(profile, w.requireCurrentPassword); err != nil {
		return err
	}
	w.pending = profile
	w.state = api.AwaitingConfirmation
	return nil
}

// Cancel closes the dialog without touching anything else.
func (w *Workflow) Cancel() error {
	if w.state != api.AwaitingConfirmation {
		return &api.InvalidTransitionError{Action: "cancel", State: w.state}
	}
	w.pending = api.UserProfile{}
	w.state = api.Idle
	return nil
}

// Confirm closes the dialog and returns a copy of the snapshot to commit.
func (w *Workflow) Confirm() (api.UserProfile, error) {
	if w.state != api.AwaitingConfirmation {
		return api.UserProfile{}, &api.InvalidTransitionError{Action: "confirm", State: w.state}
	}
	w.state = api.Committing
	return w.pending, nil
}

// Complete ends a successful commit.
func (w *Workflow) Complete() error {
	if w.state != api.Committing {
		return &api.InvalidTransitionError{Action: "complete", State: w.state}
	}
	w.pending = api.UserProfile{}
	w.state = api.Idle
	return nil
}

// Fail ends a failed commit. The snapshot stays pending so it can be
// confirmed again or cancelled.
func (w *Workflow) Fail() error {
	if w.state != api.Committing {
		return &api.InvalidTransitionError{Action: "fail", State: w.state}
	}
	w.state = api.AwaitingConfirmation
	return nil
}
