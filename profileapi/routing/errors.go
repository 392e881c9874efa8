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

package routing

import (
	"errors"
	"net/http"

	"github.com/matrix-org/util"
	"golang.org/x/text/message"

	"github.com/catalogo-app/perfil/internal/i18n"
	"github.com/catalogo-app/perfil/profileapi/api"
	"github.com/catalogo-app/perfil/profileapi/editor"
	"github.com/catalogo-app/perfil/shell"
)

// Error codes returned in the "errcode" field.
const (
	ErrCodeBadJSON      = "PERFIL_BAD_JSON"
	ErrCodeInvalidParam = "PERFIL_INVALID_PARAM"
	ErrCodeValidation   = "PERFIL_VALIDATION"
	ErrCodeForbidden    = "PERFIL_FORBIDDEN"
	ErrCodeConflict     = "PERFIL_CONFLICT"
	ErrCodeBadImage     = "PERFIL_BAD_IMAGE"
	ErrCodeTooLarge     = "PERFIL_TOO_LARGE"
	ErrCodeNotFound     = "PERFIL_NOT_FOUND"
	ErrCodeCommitFailed = "PERFIL_COMMIT_FAILED"
	ErrCodeUnknown      = "PERFIL_UNKNOWN"
	ErrCodeNotRequested = "PERFIL_NOT_REQUESTED"
	ErrCodeUnrecognized = "PERFIL_UNRECOGNIZED"
	ErrCodeNotAllowed   = "PERFIL_METHOD_NOT_ALLOWED"
)

// Error is the body of every error response.
type Error struct {
	ErrCode string `json:"errcode"`
	Err     string `json:"error"`
	Field   string `json:"field,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func (e *Error) Error() string {
	return e.ErrCode + ": " + e.Err
}

func respondError(code int, errcode, msg string) util.JSONResponse {
	return util.JSONResponse{
		Code: code,
		JSON: &Error{ErrCode: errcode, Err: msg},
	}
}

// errorResponse maps err to a status code and an error code, with the
// message in the user's language.
func errorResponse(e *editor.Editor, p *message.Printer, err error) util.JSONResponse {
	body := &Error{Err: e.Describe(p, err)}
	code := http.StatusInternalServerError
	var verr *api.ValidationError
	switch {
	case errors.As(err, &verr):
		code, body.ErrCode = http.StatusBadRequest, ErrCodeValidation
		body.Field, body.Reason = string(verr.Field), verr.Reason
	case errors.Is(err, api.ErrUnknownField):
		code, body.ErrCode = http.StatusBadRequest, ErrCodeInvalidParam
	case errors.Is(err, api.ErrReadOnly):
		code, body.ErrCode = http.StatusForbidden, ErrCodeForbidden
	case errors.Is(err, api.ErrInvalidTransition), errors.Is(err, api.ErrCommitInProgress):
		code, body.ErrCode = http.StatusConflict, ErrCodeConflict
	case errors.Is(err, api.ErrAvatarTooLarge):
		code, body.ErrCode = http.StatusRequestEntityTooLarge, ErrCodeTooLarge
	case errors.Is(err, api.ErrAvatarDecode):
		code, body.ErrCode = http.StatusBadRequest, ErrCodeBadImage
	case errors.Is(err, api.ErrUnmounted):
		code, body.ErrCode = http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, api.ErrCommitFailed):
		code, body.ErrCode = http.StatusServiceUnavailable, ErrCodeCommitFailed
	case errors.Is(err, shell.ErrNotRequested):
		code, body.ErrCode = http.StatusConflict, ErrCodeNotRequested
		body.Err = p.Sprintf(i18n.LogoutNotRequested)
	default:
		body.ErrCode = ErrCodeUnknown
	}
	return util.JSONResponse{Code: code, JSON: body}
}
