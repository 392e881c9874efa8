package producers

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/catalogo-app/perfil/profileapi/api"
	"github.com/catalogo-app/perfil/setup/jetstream"
)

type capturePublisher struct {
	msgs []*nats.Msg
}

func (c *capturePublisher) PublishMsg(m *nats.Msg, _ ...nats.PubOpt) (*nats.PubAck, error) {
	c.msgs = append(c.msgs, m)
	return &nats.PubAck{}, nil
}

func TestPublishProfileUpdate(t *testing.T) {
	js := &capturePublisher{}
	p := &ProfileUpdateProducer{
		Topic:     "PerfilOutputProfileUpdate",
		JetStream: js,
		SenderID:  "sender-1",
		Origin:    "http://localhost:3000",
	}
	err := p.PublishProfileUpdate(context.Background(), &api.ProfileUpdate{
		DisplayName: "Ana",
		AvatarImage: "ignored",
		Updated:     []api.Field{api.FieldName},
	})
	require.NoError(t, err)
	require.Len(t, js.msgs, 1)

	msg := js.msgs[0]
	assert.Equal(t, "PerfilOutputProfileUpdate", msg.Subject)
	assert.Equal(t, "sender-1", msg.Header.Get(jetstream.SenderID))
	assert.Equal(t, "http://localhost:3000", msg.Header.Get(jetstream.Origin))

	res := gjson.ParseBytes(msg.Data)
	assert.Equal(t, "http://localhost:3000", res.Get("origin").Str)
	assert.Equal(t, "Ana", res.Get("displayName").Str)
	assert.False(t, res.Get("avatarImage").Exists(), "unchanged fields are left out")
	assert.Equal(t, `["name"]`, res.Get("updated").Raw)
}

func TestMarshalEscapes(t *testing.T) {
	data, err := Marshal("o", &api.ProfileUpdate{
		DisplayName: `Ana "Bia" \ Souza`,
		Updated:     []api.Field{api.FieldName, api.FieldAvatarImage},
	})
	require.NoError(t, err)
	assert.True(t, gjson.ValidBytes(data))
	assert.Equal(t, `Ana "Bia" \ Souza`, gjson.GetBytes(data, "displayName").Str)
	assert.Equal(t, "", gjson.GetBytes(data, "avatarImage").Str)
	assert.True(t, gjson.GetBytes(data, "avatarImage").Exists())
}
