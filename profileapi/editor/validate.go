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

// Validate applies the rules a draft must pass before it can be confirmed.
// A new password must match its confirmation; an empty new password means
// the password is not being changed, whatever the confirmation says. The
// current password is only checked for presence, and only when asked to.
func Validate(p api.UserProfile, requireCurrentPassword bool) error {
	if p.NewPassword != "" && p.NewPassword != p.ConfirmNewPassword {
		return &api.ValidationError{Field: api.FieldConfirmNewPassword, Reason: api.ReasonPasswordMismatch}
	}
	if requireCurrentPassword && p.CurrentPassword == "" {
		return &api.ValidationError{Field: api.FieldCurrentPassword, Reason: api.ReasonRequired}
	}
	return nil
}
