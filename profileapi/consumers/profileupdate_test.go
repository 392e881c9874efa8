package consumers

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"

	"github.com/catalogo-app/perfil/profileapi/api"
	"github.com/catalogo-app/perfil/profileapi/producers"
	"github.com/catalogo-app/perfil/profileapi/session"
	"github.com/catalogo-app/perfil/setup/jetstream"
)

type noLoader struct{}

func (noLoader) DisplayName(context.Context) (string, bool, error) { return "", false, nil }
func (noLoader) AvatarImage(context.Context) (string, bool, error) { return "", false, nil }

func newMsg(t *testing.T, sender, origin string, update *api.ProfileUpdate) *nats.Msg {
	t.Helper()
	data, err := producers.Marshal(origin, update)
	assert.NoError(t, err)
	msg := nats.NewMsg("PerfilOutputProfileUpdate")
	msg.Header.Set(jetstream.SenderID, sender)
	msg.Data = data
	return msg
}

func TestOnMessage(t *testing.T) {
	sess := session.NewContext(noLoader{}, api.SessionState{DisplayName: "Usuário", AvatarImage: "default"})
	c := &OutputProfileUpdateConsumer{
		origin:   "http://localhost:3000",
		senderID: "me",
		session:  sess,
	}
	ctx := context.Background()

	// Our own update has already been applied.
	assert.True(t, c.onMessage(ctx, []*nats.Msg{newMsg(t, "me", c.origin, &api.ProfileUpdate{
		DisplayName: "Self", Updated: []api.Field{api.FieldName},
	})}))
	assert.Equal(t, "Usuário", sess.Read().DisplayName)

	assert.True(t, c.onMessage(ctx, []*nats.Msg{newMsg(t, "other", "https://elsewhere.example.com", &api.ProfileUpdate{
		DisplayName: "Elsewhere", Updated: []api.Field{api.FieldName},
	})}))
	assert.Equal(t, "Usuário", sess.Read().DisplayName)

	bad := nats.NewMsg("PerfilOutputProfileUpdate")
	bad.Data = []byte("{not json")
	assert.True(t, c.onMessage(ctx, []*nats.Msg{bad}), "malformed updates are dropped, not retried")

	assert.True(t, c.onMessage(ctx, []*nats.Msg{newMsg(t, "other", c.origin, &api.ProfileUpdate{
		DisplayName: "Ana", AvatarImage: "ignored", Updated: []api.Field{api.FieldName},
	})}))
	assert.Equal(t, api.SessionState{DisplayName: "Ana", AvatarImage: "default"}, sess.Read())

	assert.True(t, c.onMessage(ctx, []*nats.Msg{newMsg(t, "other", c.origin, &api.ProfileUpdate{
		AvatarImage: "", Updated: []api.Field{api.FieldAvatarImage},
	})}))
	assert.Equal(t, api.SessionState{DisplayName: "Ana", AvatarImage: ""}, sess.Read())
}

func TestParse(t *testing.T) {
	update, ok := Parse([]byte(`{"origin":"o","displayName":"Ana","updated":["name","nickname"]}`))
	assert.True(t, ok)
	assert.Equal(t, &api.ProfileUpdate{
		Origin:      "o",
		DisplayName: "Ana",
		Updated:     []api.Field{api.FieldName},
	}, update)

	_, ok = Parse([]byte(`["name"]`))
	assert.False(t, ok)
}
