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
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/matrix-org/util"
	"github.com/tidwall/gjson"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/catalogo-app/perfil/internal/httputil"
	"github.com/catalogo-app/perfil/internal/i18n"
	"github.com/catalogo-app/perfil/profileapi/api"
	"github.com/catalogo-app/perfil/profileapi/editor"
	"github.com/catalogo-app/perfil/shell"
)

// maxRequestBytes bounds JSON request bodies. Avatar uploads are bounded by
// the decoder instead.
const maxRequestBytes = 64 * 1024

type routes struct {
	editor      *editor.Editor
	registry    *Registry
	logout      *shell.LogoutDialog
	navigator   *shell.Navigator
	onSubmit    func(api.UserProfile)
	defaultLang language.Tag
	upgrader    websocket.Upgrader
}

// Setup registers the profile API on the given router, which is expected
// to be rooted at /_perfil.
func Setup(
	router *mux.Router,
	e *editor.Editor,
	registry *Registry,
	logout *shell.LogoutDialog,
	navigator *shell.Navigator,
	onSubmit func(api.UserProfile),
	origin string,
	defaultLang language.Tag,
) {
	r := &routes{
		editor:      e,
		registry:    registry,
		logout:      logout,
		navigator:   navigator,
		onSubmit:    onSubmit,
		defaultLang: defaultLang,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(req *http.Request) bool {
				o := req.Header.Get("Origin")
				return o == "" || o == origin
			},
		},
	}

	v1mux := router.PathPrefix("/v1/").Subrouter()

	v1mux.Handle("/screens",
		httputil.MakeExternalAPI("profile_mount_screen", r.mountScreen),
	).Methods(http.MethodPost, http.MethodOptions)
	v1mux.Handle("/screens/{screenID}",
		httputil.MakeExternalAPI("profile_get_screen", r.withScreen(r.getScreen)),
	).Methods(http.MethodGet, http.MethodOptions)
	v1mux.Handle("/screens/{screenID}",
		httputil.MakeExternalAPI("profile_unmount_screen", r.unmountScreen),
	).Methods(http.MethodDelete)
	v1mux.Handle("/screens/{screenID}/draft",
		httputil.MakeExternalAPI("profile_update_draft", r.withScreen(r.updateDraft)),
	).Methods(http.MethodPatch, http.MethodOptions)
	v1mux.Handle("/screens/{screenID}/submit",
		httputil.MakeExternalAPI("profile_submit", r.withScreen(r.submit)),
	).Methods(http.MethodPost, http.MethodOptions)
	v1mux.Handle("/screens/{screenID}/cancel",
		httputil.MakeExternalAPI("profile_cancel", r.withScreen(r.cancel)),
	).Methods(http.MethodPost, http.MethodOptions)
	v1mux.Handle("/screens/{screenID}/confirm",
		httputil.MakeExternalAPI("profile_confirm", r.withScreen(r.confirm)),
	).Methods(http.MethodPost, http.MethodOptions)
	v1mux.Handle("/screens/{screenID}/avatar",
		httputil.MakeExternalAPI("profile_select_avatar", r.withScreen(r.selectAvatar)),
	).Methods(http.MethodPut, http.MethodOptions)

	v1mux.Handle("/session",
		httputil.MakeExternalAPI("profile_get_session", r.getSession),
	).Methods(http.MethodGet, http.MethodOptions)
	v1mux.HandleFunc("/session/stream", r.streamSession).Methods(http.MethodGet)

	v1mux.Handle("/menu",
		httputil.MakeExternalAPI("profile_get_menu", r.getMenu),
	).Methods(http.MethodGet, http.MethodOptions)
	v1mux.Handle("/logout",
		httputil.MakeExternalAPI("profile_logout_request", r.requestLogout),
	).Methods(http.MethodPost, http.MethodOptions)
	v1mux.Handle("/logout/cancel",
		httputil.MakeExternalAPI("profile_logout_cancel", r.cancelLogout),
	).Methods(http.MethodPost, http.MethodOptions)
	v1mux.Handle("/logout/confirm",
		httputil.MakeExternalAPI("profile_logout_confirm", r.confirmLogout),
	).Methods(http.MethodPost, http.MethodOptions)

	router.NotFoundHandler = httputil.WrapHandlerInCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errcode":"` + ErrCodeUnrecognized + `","error":"Unrecognized request"}`))
	}))
	router.MethodNotAllowedHandler = httputil.WrapHandlerInCORS(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte(`{"errcode":"` + ErrCodeNotAllowed + `","error":"` + req.Method + ` not allowed on this endpoint"}`))
	}))
}

func (r *routes) printer(req *http.Request) *message.Printer {
	return i18n.Printer(i18n.Match(req.Header.Get("Accept-Language"), r.defaultLang))
}

func (r *routes) withScreen(f func(*http.Request, *editor.Screen) util.JSONResponse) func(*http.Request) util.JSONResponse {
	return func(req *http.Request) util.JSONResponse {
		screenID := mux.Vars(req)["screenID"]
		s, ok := r.registry.Get(screenID)
		if !ok {
			return respondError(http.StatusNotFound, ErrCodeNotFound, r.printer(req).Sprintf(i18n.ScreenNotFound))
		}
		req = req.WithContext(util.ContextWithLogger(req.Context(), util.GetLogger(req.Context()).WithField("screen_id", screenID)))
		return f(req, s)
	}
}

func readJSON(req *http.Request) (gjson.Result, bool) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxRequestBytes+1))
	if err != nil || len(body) > maxRequestBytes {
		return gjson.Result{}, false
	}
	if len(body) == 0 {
		return gjson.Parse("{}"), true
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, false
	}
	res := gjson.ParseBytes(body)
	return res, res.IsObject()
}

func (r *routes) mountScreen(req *http.Request) util.JSONResponse {
	p := r.printer(req)
	body, ok := readJSON(req)
	if !ok {
		return respondError(http.StatusBadRequest, ErrCodeBadJSON, p.Sprintf(i18n.BadRequest))
	}
	initial := body.Get("initialProfile")
	props := editor.Props{
		Initial: api.UserProfile{
			Name:        initial.Get(string(api.FieldName)).Str,
			Email:       initial.Get(string(api.FieldEmail)).Str,
			AvatarImage: initial.Get(string(api.FieldAvatarImage)).Str,
		},
		OnSubmit: r.onSubmit,
		Editable: body.Get("editable").Bool(),
	}
	lang := i18n.Match(req.Header.Get("Accept-Language"), r.defaultLang)
	s, err := r.editor.Mount(req.Context(), props, lang)
	if err != nil {
		return errorResponse(r.editor, p, err)
	}
	r.registry.Add(s)
	r.navigator.Navigate(shell.ProfilePath)
	return util.JSONResponse{
		Code: http.StatusCreated,
		JSON: s.View(),
	}
}

func (r *routes) getScreen(_ *http.Request, s *editor.Screen) util.JSONResponse {
	return util.JSONResponse{Code: http.StatusOK, JSON: s.View()}
}

func (r *routes) unmountScreen(req *http.Request) util.JSONResponse {
	if !r.registry.Remove(mux.Vars(req)["screenID"]) {
		return respondError(http.StatusNotFound, ErrCodeNotFound, r.printer(req).Sprintf(i18n.ScreenNotFound))
	}
	return util.JSONResponse{Code: http.StatusOK, JSON: struct{}{}}
}

// updateDraft applies the fields of a JSON object to the draft in the order
// they appear. The avatar can only be changed by uploading an image.
func (r *routes) updateDraft(req *http.Request, s *editor.Screen) util.JSONResponse {
	p := r.printer(req)
	body, ok := readJSON(req)
	if !ok {
		return respondError(http.StatusBadRequest, ErrCodeBadJSON, p.Sprintf(i18n.BadRequest))
	}
	var err error
	body.ForEach(func(key, value gjson.Result) bool {
		var field api.Field
		if field, err = api.ParseField(key.Str); err != nil {
			return false
		}
		if field == api.FieldAvatarImage || value.Type != gjson.String {
			err = &Error{ErrCode: ErrCodeInvalidParam, Err: p.Sprintf(i18n.BadRequest), Field: key.Str}
			return false
		}
		err = s.Update(field, value.Str)
		return err == nil
	})
	if e, ok := err.(*Error); ok {
		return util.JSONResponse{Code: http.StatusBadRequest, JSON: e}
	}
	if err != nil {
		return errorResponse(r.editor, p, err)
	}
	return util.JSONResponse{Code: http.StatusOK, JSON: s.View()}
}

func (r *routes) submit(req *http.Request, s *editor.Screen) util.JSONResponse {
	if err := s.Submit(); err != nil {
		return errorResponse(r.editor, r.printer(req), err)
	}
	return util.JSONResponse{Code: http.StatusOK, JSON: s.View()}
}

func (r *routes) cancel(req *http.Request, s *editor.Screen) util.JSONResponse {
	if err := s.Cancel(); err != nil {
		return errorResponse(r.editor, r.printer(req), err)
	}
	return util.JSONResponse{Code: http.StatusOK, JSON: s.View()}
}

// confirm starts the commit. With ?wait=true the response is held until
// the commit has finished; otherwise it is 202 Accepted straight away.
func (r *routes) confirm(req *http.Request, s *editor.Screen) util.JSONResponse {
	p := r.printer(req)
	task, err := s.Confirm()
	if err != nil {
		return errorResponse(r.editor, p, err)
	}
	if wait, _ := strconv.ParseBool(req.URL.Query().Get("wait")); !wait {
		return util.JSONResponse{Code: http.StatusAccepted, JSON: s.View()}
	}
	if err = task.Wait(req.Context()); err != nil {
		if req.Context().Err() != nil {
			// The client went away, the commit carries on regardless.
			return util.JSONResponse{Code: http.StatusAccepted, JSON: s.View()}
		}
		return errorResponse(r.editor, p, err)
	}
	return util.JSONResponse{Code: http.StatusOK, JSON: s.View()}
}

// selectAvatar reads the body up front, one byte past the limit so that an
// oversized upload is still reported as such, and then waits for the decode.
func (r *routes) selectAvatar(req *http.Request, s *editor.Screen) util.JSONResponse {
	p := r.printer(req)
	source, err := api.ParseAvatarSource(req.URL.Query().Get("source"))
	if err != nil {
		return respondError(http.StatusBadRequest, ErrCodeInvalidParam, p.Sprintf(i18n.BadRequest))
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, r.editor.MaxAvatarSize()+1))
	if err != nil {
		return errorResponse(r.editor, p, fmt.Errorf("%w: %s", api.ErrAvatarDecode, err))
	}
	task, err := s.SelectAvatar(source, bytes.NewReader(body))
	if err != nil {
		return errorResponse(r.editor, p, err)
	}
	if err = task.Wait(req.Context()); err != nil {
		if req.Context().Err() != nil {
			task.Cancel()
		}
		return errorResponse(r.editor, p, err)
	}
	return util.JSONResponse{Code: http.StatusOK, JSON: s.View()}
}

func (r *routes) getSession(_ *http.Request) util.JSONResponse {
	return util.JSONResponse{Code: http.StatusOK, JSON: r.editor.Session().Read()}
}

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

// streamSession pushes the session state over a websocket: once on
// connect and again after every change.
func (r *routes) streamSession(w http.ResponseWriter, req *http.Request) {
	logger := util.GetLogger(req.Context())
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		logger.WithError(err).Debug("Failed to upgrade session stream")
		return
	}
	defer conn.Close() // nolint: errcheck

	sess := r.editor.Session()
	sub := sess.Subscribe()
	defer sub.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(state api.SessionState) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(state); err != nil {
			logger.WithError(err).Debug("Failed to write to session stream")
			return false
		}
		return true
	}
	if !send(sess.Read()) {
		return
	}
	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()
	for {
		select {
		case state, ok := <-sub.C():
			if !ok || !send(state) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		case <-closed:
			return
		case <-req.Context().Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(streamWriteTimeout),
			)
			return
		}
	}
}

type menuResponse struct {
	Current string        `json:"current"`
	Routes  []shell.Route `json:"routes"`
}

func (r *routes) getMenu(req *http.Request) util.JSONResponse {
	return util.JSONResponse{Code: http.StatusOK, JSON: menuResponse{
		Current: r.navigator.Current(),
		Routes:  shell.Menu(r.printer(req)),
	}}
}

func (r *routes) requestLogout(req *http.Request) util.JSONResponse {
	r.logout.Open()
	return util.JSONResponse{Code: http.StatusOK, JSON: r.logout.View(r.printer(req))}
}

func (r *routes) cancelLogout(req *http.Request) util.JSONResponse {
	r.logout.Cancel()
	return util.JSONResponse{Code: http.StatusOK, JSON: r.logout.View(r.printer(req))}
}

type logoutResponse struct {
	Redirect string `json:"redirect"`
}

func (r *routes) confirmLogout(req *http.Request) util.JSONResponse {
	if err := r.logout.Confirm(req.Context()); err != nil {
		return errorResponse(r.editor, r.printer(req), err)
	}
	return util.JSONResponse{Code: http.StatusOK, JSON: logoutResponse{Redirect: r.navigator.Current()}}
}
