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

package consumers

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/catalogo-app/perfil/profileapi/api"
	"github.com/catalogo-app/perfil/profileapi/session"
	"github.com/catalogo-app/perfil/setup/config"
	"github.com/catalogo-app/perfil/setup/jetstream"
	"github.com/catalogo-app/perfil/setup/process"
)

// OutputProfileUpdateConsumer applies profile changes committed by other
// processes to this process' session.
type OutputProfileUpdateConsumer struct {
	ctx       context.Context
	jetstream nats.JetStreamContext
	durable   string
	topic     string
	origin    string
	senderID  string
	session   *session.Context
}

// NewOutputProfileUpdateConsumer creates a new OutputProfileUpdateConsumer.
// Call Start() to begin consuming. Every process needs its own senderID so
// that each one sees every update.
func NewOutputProfileUpdateConsumer(
	process *process.ProcessContext,
	cfg *config.Perfil,
	js nats.JetStreamContext,
	senderID string,
	sess *session.Context,
) *OutputProfileUpdateConsumer {
	return &OutputProfileUpdateConsumer{
		ctx:       process.Context(),
		jetstream: js,
		durable:   cfg.Global.JetStream.Durable("ProfileAPIProfileUpdateConsumer" + jetstream.Tokenise(senderID)),
		topic:     cfg.Global.JetStream.TopicFor(jetstream.OutputProfileUpdate),
		origin:    cfg.Global.Origin,
		senderID:  senderID,
		session:   sess,
	}
}

// Start consuming profile updates.
func (c *OutputProfileUpdateConsumer) Start() error {
	return jetstream.JetStreamConsumer(
		c.ctx, c.jetstream, c.topic, c.durable, 1, c.onMessage,
		nats.DeliverNew(), nats.ManualAck(), nats.InactiveThreshold(time.Hour),
	)
}

func (c *OutputProfileUpdateConsumer) onMessage(ctx context.Context, msgs []*nats.Msg) bool {
	msg := msgs[0] // Guaranteed to exist if onMessage is called
	if msg.Header.Get(jetstream.SenderID) == c.senderID {
		return true
	}
	update, ok := Parse(msg.Data)
	if !ok {
		log.WithField("subject", msg.Subject).Warn("Ignoring malformed profile update")
		return true
	}
	if update.Origin != c.origin {
		return true
	}
	update.SenderID = msg.Header.Get(jetstream.SenderID)
	Apply(c.session, update)
	log.WithFields(log.Fields{
		"sender_id": update.SenderID,
		"updated":   update.Updated,
	}).Debug("Applied profile update from another process")
	return true
}

// Parse decodes a profile update payload.
func Parse(data []byte) (*api.ProfileUpdate, bool) {
	if !gjson.ValidBytes(data) {
		return nil, false
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return nil, false
	}
	update := &api.ProfileUpdate{
		Origin:      res.Get("origin").Str,
		DisplayName: res.Get("displayName").Str,
		AvatarImage: res.Get("avatarImage").Str,
	}
	res.Get("updated").ForEach(func(_, value gjson.Result) bool {
		if f, err := api.ParseField(value.Str); err == nil {
			update.Updated = append(update.Updated, f)
		}
		return true
	})
	return update, true
}

// Apply writes the fields the update carries into the session.
func Apply(sess *session.Context, update *api.ProfileUpdate) {
	if update.Has(api.FieldName) {
		sess.SetDisplayName(update.DisplayName)
	}
	if update.Has(api.FieldAvatarImage) {
		sess.SetAvatarImage(update.AvatarImage)
	}
}
