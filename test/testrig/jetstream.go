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

package testrig

import (
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/catalogo-app/perfil/profileapi/api"
	"github.com/catalogo-app/perfil/profileapi/producers"
	"github.com/catalogo-app/perfil/setup/base"
	"github.com/catalogo-app/perfil/setup/jetstream"
)

func MustPublishMsgs(t *testing.T, jsctx nats.JetStreamContext, msgs ...*nats.Msg) {
	t.Helper()
	for _, msg := range msgs {
		if _, err := jsctx.PublishMsg(msg); err != nil {
			t.Fatalf("MustPublishMsgs: failed to publish message: %s", err)
		}
	}
}

// NewOutputProfileUpdateMsg builds the message another process would
// publish after committing update.
func NewOutputProfileUpdateMsg(t *testing.T, base *base.BasePerfil, senderID string, update *api.ProfileUpdate) *nats.Msg {
	t.Helper()
	msg := nats.NewMsg(base.Cfg.Global.JetStream.TopicFor(jetstream.OutputProfileUpdate))
	msg.Header.Set(jetstream.SenderID, senderID)
	msg.Header.Set(jetstream.Origin, base.Cfg.Global.Origin)
	var err error
	msg.Data, err = producers.Marshal(base.Cfg.Global.Origin, update)
	if err != nil {
		t.Fatalf("failed to marshal update: %s", err)
	}
	return msg
}
