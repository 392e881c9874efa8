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

package profileapi

import (
	"context"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/catalogo-app/perfil/internal/caching"
	"github.com/catalogo-app/perfil/internal/sqlutil"
	"github.com/catalogo-app/perfil/profileapi/api"
	"github.com/catalogo-app/perfil/profileapi/avatar"
	"github.com/catalogo-app/perfil/profileapi/consumers"
	"github.com/catalogo-app/perfil/profileapi/editor"
	"github.com/catalogo-app/perfil/profileapi/producers"
	"github.com/catalogo-app/perfil/profileapi/routing"
	"github.com/catalogo-app/perfil/profileapi/session"
	"github.com/catalogo-app/perfil/profileapi/storage"
	"github.com/catalogo-app/perfil/setup/config"
	"github.com/catalogo-app/perfil/setup/jetstream"
	"github.com/catalogo-app/perfil/setup/process"
	"github.com/catalogo-app/perfil/shell"
)

// ProfileAPI holds the long-lived parts of the profile component.
type ProfileAPI struct {
	Editor    *editor.Editor
	Session   *session.Context
	Screens   *routing.Registry
	Navigator *shell.Navigator
	Logout    *shell.LogoutDialog
}

// AddPublicRoutes sets up the profile component and registers its HTTP
// handlers on router, which must be rooted at /_perfil.
func AddPublicRoutes(
	processCtx *process.ProcessContext,
	router *mux.Router,
	cfg *config.Perfil,
	cm *sqlutil.Connections,
	natsInstance *jetstream.NATSInstance,
	caches *caching.Caches,
) *ProfileAPI {
	p := NewProfileAPI(processCtx, cfg, cm, natsInstance, caches)
	routing.Setup(
		router, p.Editor, p.Screens, p.Logout, p.Navigator,
		func(profile api.UserProfile) {
			logrus.WithField("name", profile.Name).Info("Profile submitted")
		},
		cfg.Global.Origin,
		defaultLanguage(cfg),
	)
	return p
}

// NewProfileAPI connects to the database and, unless disabled, to
// JetStream. Failures here are fatal.
func NewProfileAPI(
	processCtx *process.ProcessContext,
	cfg *config.Perfil,
	cm *sqlutil.Connections,
	natsInstance *jetstream.NATSInstance,
	caches *caching.Caches,
) *ProfileAPI {
	profileCfg := &cfg.ProfileAPI
	db, err := storage.NewDatabase(cm, &profileCfg.Database, caches.LocalStorage, cfg.Global.Origin)
	if err != nil {
		logrus.WithError(err).Panicf("failed to connect to profile db")
	}

	sess := session.NewContext(db, api.SessionState{
		DisplayName: profileCfg.DefaultDisplayName,
		AvatarImage: profileCfg.DefaultAvatarImage,
	})
	if err = sess.Bootstrap(processCtx.Context()); err != nil {
		logrus.WithError(err).Warn("Failed to load the session, starting with defaults")
	}

	// A nil *ProfileUpdateProducer must not end up inside the interface.
	var publisher editor.Publisher
	if !cfg.Global.JetStream.Disable {
		js, _, err := natsInstance.Prepare(processCtx, &cfg.Global.JetStream)
		if err != nil {
			logrus.WithError(err).Panic("failed to connect to NATS")
		}
		senderID := uuid.NewString()
		publisher = &producers.ProfileUpdateProducer{
			Topic:     cfg.Global.JetStream.TopicFor(jetstream.OutputProfileUpdate),
			JetStream: js,
			SenderID:  senderID,
			Origin:    cfg.Global.Origin,
		}
		consumer := consumers.NewOutputProfileUpdateConsumer(processCtx, cfg, js, senderID, sess)
		if err = consumer.Start(); err != nil {
			logrus.WithError(err).Panic("failed to start profile update consumer")
		}
	}

	e := editor.NewEditor(
		processCtx, sess, db,
		avatar.NewDecoder(int64(profileCfg.MaxAvatarSizeBytes)),
		editor.DelayCommitter{Delay: profileCfg.CommitDelay},
		publisher,
		editor.Options{
			RequireCurrentPassword: profileCfg.RequireCurrentPassword,
			DefaultLanguage:        defaultLanguage(cfg),
		},
	)

	screens := routing.NewRegistry(profileCfg.ScreenIdleTimeout)
	navigator := shell.NewNavigator(shell.DashboardPath)
	logout := shell.NewLogoutDialog(func(ctx context.Context) error {
		// Leaving the app closes every screen along with it.
		screens.Close()
		return navigator.Logout(ctx)
	})

	processCtx.ComponentStarted()
	go func() {
		<-processCtx.WaitForShutdown()
		screens.Close()
		processCtx.ComponentFinished()
	}()

	return &ProfileAPI{
		Editor:    e,
		Session:   sess,
		Screens:   screens,
		Navigator: navigator,
		Logout:    logout,
	}
}

func defaultLanguage(cfg *config.Perfil) language.Tag {
	tag, err := language.Parse(cfg.ProfileAPI.DefaultLanguage)
	if err != nil {
		return language.BrazilianPortuguese
	}
	return tag
}
