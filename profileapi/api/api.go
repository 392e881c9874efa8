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

package api

import (
	"fmt"
)

// UserProfile is the payload of a profile edit. Empty strings mean absent.
type UserProfile struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	AvatarImage        string `json:"avatarImage"`
	CurrentPassword    string `json:"currentPassword,omitempty"`
	NewPassword        string `json:"newPassword,omitempty"`
	ConfirmNewPassword string `json:"confirmNewPassword,omitempty"`
}

// WithoutPasswords returns a copy of the profile with every password field
// cleared.
func (p UserProfile) WithoutPasswords() UserProfile {
	p.CurrentPassword = ""
	p.NewPassword = ""
	p.ConfirmNewPassword = ""
	return p
}

// Field names a single editable part of a UserProfile.
type Field string

const (
	FieldName               Field = "name"
	FieldEmail              Field = "email"
	FieldAvatarImage        Field = "avatarImage"
	FieldCurrentPassword    Field = "currentPassword"
	FieldNewPassword        Field = "newPassword"
	FieldConfirmNewPassword Field = "confirmNewPassword"
)

// Fields lists every field in display order.
var Fields = []Field{
	FieldAvatarImage, FieldName, FieldEmail,
	FieldCurrentPassword, FieldNewPassword, FieldConfirmNewPassword,
}

// IsPassword reports whether the field only exists on editable screens.
func (f Field) IsPassword() bool {
	switch f {
	case FieldCurrentPassword, FieldNewPassword, FieldConfirmNewPassword:
		return true
	}
	return false
}

// ParseField returns the field with the given wire name.
func ParseField(s string) (Field, error) {
	for _, f := range Fields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// WorkflowState is the state of a screen's confirmation workflow.
type WorkflowState int

const (
	Idle WorkflowState = iota
	AwaitingConfirmation
	Committing
)

func (s WorkflowState) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case Committing:
		return "committing"
	default:
		return fmt.Sprintf("WorkflowState(%d)", int(s))
	}
}

func (s WorkflowState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// AvatarSource is where an avatar payload came from. Both sources are
// handled identically once the payload arrives.
type AvatarSource string

const (
	AvatarSourceLibrary AvatarSource = "library"
	AvatarSourceCamera  AvatarSource = "camera"
)

func ParseAvatarSource(s string) (AvatarSource, error) {
	switch AvatarSource(s) {
	case AvatarSourceLibrary, AvatarSourceCamera:
		return AvatarSource(s), nil
	case "":
		return AvatarSourceLibrary, nil
	}
	return "", fmt.Errorf("unknown avatar source %q", s)
}

// SessionState is what every screen shows as the current user.
type SessionState struct {
	DisplayName string `json:"displayName"`
	AvatarImage string `json:"avatarImage"`
}

// ProfileUpdate is published after a profile change has been applied, so
// other processes serving the same origin can refresh their sessions.
type ProfileUpdate struct {
	Origin      string  `json:"origin"`
	DisplayName string  `json:"displayName,omitempty"`
	AvatarImage string  `json:"avatarImage,omitempty"`
	Updated     []Field `json:"updated"`
	SenderID    string  `json:"senderId"`
}

// Has reports whether the update carries a value for the field.
func (u *ProfileUpdate) Has(f Field) bool {
	for _, g := range u.Updated {
		if g == f {
			return true
		}
	}
	return false
}
