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

// Buffer is the draft a screen is editing. It accepts any value for any
// field; validation happens on submit.
type Buffer struct {
	profile api.UserProfile
}

func NewBuffer(seed api.UserProfile) *Buffer {
	return &Buffer{profile: seed}
}

// Update changes a single field and leaves the others alone.
func (b *Buffer) Update(field api.Field, value string) error {
	switch field {
	case api.FieldName:
		b.profile.Name = value
	case api.FieldEmail:
		b.profile.Email = value
	case api.FieldAvatarImage:
		b.profile.AvatarImage = value
	case api.FieldCurrentPassword:
		b.profile.CurrentPassword = value
	case api.FieldNewPassword:
		b.profile.NewPassword = value
	case api.FieldConfirmNewPassword:
		b.profile.ConfirmNewPassword = value
	default:
		return &unknownFieldError{field}
	}
	return nil
}

// Snapshot returns a copy that later updates do not affect.
func (b *Buffer) Snapshot() api.UserProfile {
	return b.profile
}

// Reset replaces the whole draft.
func (b *Buffer) Reset(seed api.UserProfile) {
	b.profile = seed
}

type unknownFieldError struct {
	field api.Field
}

func (e *unknownFieldError) Error() string {
	return api.ErrUnknownField.Error() + ": " + string(e.field)
}

func (e *unknownFieldError) Unwrap() error {
	return api.ErrUnknownField
}
