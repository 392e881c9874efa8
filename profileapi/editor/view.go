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
	"github.com/Arceliar/phony"

	"github.com/catalogo-app/perfil/internal/i18n"
	"github.com/catalogo-app/perfil/profileapi/api"
)

// View is what a screen shows. Password values are never echoed back, only
// whether they have been filled in.
type View struct {
	ID       string            `json:"id"`
	Language string            `json:"language"`
	Editable bool              `json:"editable"`
	State    api.WorkflowState `json:"state"`
	Avatar   AvatarView        `json:"avatar"`
	Fields   []FieldView       `json:"fields"`
	Save     *SaveView         `json:"save,omitempty"`
	Dialog   DialogView        `json:"dialog"`
	Message  *MessageView      `json:"message,omitempty"`
	Session  api.SessionState  `json:"session"`
}

type AvatarView struct {
	Label     string `json:"label"`
	Image     string `json:"image,omitempty"`
	CanChange bool   `json:"can_change"`
}

type FieldView struct {
	Name     api.Field `json:"name"`
	Label    string    `json:"label"`
	Type     string    `json:"type"`
	Value    string    `json:"value,omitempty"`
	Filled   bool      `json:"filled"`
	Required bool      `json:"required,omitempty"`
	Disabled bool      `json:"disabled,omitempty"`
}

type SaveView struct {
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
	Loading bool   `json:"loading"`
}

type DialogView struct {
	Visible bool   `json:"visible"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	Cancel  string `json:"cancel"`
	Confirm string `json:"confirm"`
}

type MessageView struct {
	Text  string `json:"text"`
	Error bool   `json:"error"`
}

func (s *Screen) View() (v View) {
	phony.Block(s, func() {
		v = s.view()
	})
	return
}

func (s *Screen) view() View {
	p := s.printer
	draft := s.buffer.Snapshot()
	editable := s.props.Editable && s.alive
	state := s.workflow.State()

	v := View{
		ID:       s.id,
		Language: s.lang.String(),
		Editable: s.props.Editable,
		State:    state,
		Avatar: AvatarView{
			Label:     p.Sprintf(i18n.LabelAvatar),
			Image:     draft.AvatarImage,
			CanChange: editable && state == api.Idle,
		},
		Fields: []FieldView{
			{Name: api.FieldName, Label: p.Sprintf(i18n.LabelName), Type: "text", Value: draft.Name, Filled: draft.Name != "", Disabled: !editable},
			{Name: api.FieldEmail, Label: p.Sprintf(i18n.LabelEmail), Type: "email", Value: draft.Email, Filled: draft.Email != "", Disabled: !editable},
		},
		Dialog: DialogView{
			Visible: s.workflow.DialogVisible(),
			Title:   p.Sprintf(i18n.ConfirmSaveTitle),
			Text:    p.Sprintf(i18n.ConfirmSaveText),
			Cancel:  p.Sprintf(i18n.Cancel),
			Confirm: p.Sprintf(i18n.Confirm),
		},
		Session: s.editor.session.Read(),
	}
	if s.props.Editable {
		v.Fields = append(v.Fields,
			FieldView{Name: api.FieldCurrentPassword, Label: p.Sprintf(i18n.LabelCurrentPassword), Type: "password", Filled: draft.CurrentPassword != "", Required: true, Disabled: !editable},
			FieldView{Name: api.FieldNewPassword, Label: p.Sprintf(i18n.LabelNewPassword), Type: "password", Filled: draft.NewPassword != "", Disabled: !editable},
			FieldView{Name: api.FieldConfirmNewPassword, Label: p.Sprintf(i18n.LabelConfirmNewPassword), Type: "password", Filled: draft.ConfirmNewPassword != "", Disabled: !editable},
		)
		v.Save = &SaveView{
			Label:   p.Sprintf(i18n.Save),
			Enabled: editable && state == api.Idle,
			Loading: state == api.Committing,
		}
	}
	if s.notice != nil {
		if s.notice.err != nil {
			v.Message = &MessageView{Text: s.editor.Describe(p, s.notice.err), Error: true}
		} else {
			v.Message = &MessageView{Text: p.Sprintf(s.notice.key)}
		}
	}
	return v
}
