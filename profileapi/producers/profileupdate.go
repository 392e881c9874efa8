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

package producers

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"

	"github.com/catalogo-app/perfil/profileapi/api"
	"github.com/catalogo-app/perfil/setup/jetstream"
)

// JetStreamPublisher is the part of nats.JetStreamContext the producer needs.
type JetStreamPublisher interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// ProfileUpdateProducer announces committed profile changes to the other
// processes serving the same origin.
type ProfileUpdateProducer struct {
	Topic     string
	JetStream JetStreamPublisher
	SenderID  string
	Origin    string
}

func (p *ProfileUpdateProducer) PublishProfileUpdate(ctx context.Context, update *api.ProfileUpdate) error {
	data, err := Marshal(p.Origin, update)
	if err != nil {
		return err
	}
	m := &nats.Msg{
		Subject: p.Topic,
		Header:  nats.Header{},
		Data:    data,
	}
	m.Header.Set(jetstream.SenderID, p.SenderID)
	m.Header.Set(jetstream.Origin, p.Origin)

	log.WithFields(log.Fields{
		"updated": update.Updated,
	}).Tracef("Producing to topic '%s'", p.Topic)
	_, err = p.JetStream.PublishMsg(m, nats.Context(ctx))
	return err
}

// Marshal encodes update, leaving out the values of fields it did not change.
func Marshal(origin string, update *api.ProfileUpdate) (data []byte, err error) {
	updated := make([]string, 0, len(update.Updated))
	for _, f := range update.Updated {
		updated = append(updated, string(f))
	}
	data = []byte("{}")
	if data, err = sjson.SetBytes(data, "origin", origin); err != nil {
		return nil, fmt.Errorf("sjson.SetBytes: %w", err)
	}
	if update.Has(api.FieldName) {
		if data, err = sjson.SetBytes(data, "displayName", update.DisplayName); err != nil {
			return nil, fmt.Errorf("sjson.SetBytes: %w", err)
		}
	}
	if update.Has(api.FieldAvatarImage) {
		if data, err = sjson.SetBytes(data, "avatarImage", update.AvatarImage); err != nil {
			return nil, fmt.Errorf("sjson.SetBytes: %w", err)
		}
	}
	if data, err = sjson.SetBytes(data, "updated", updated); err != nil {
		return nil, fmt.Errorf("sjson.SetBytes: %w", err)
	}
	return data, nil
}
