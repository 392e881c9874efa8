package jetstream

import (
	"regexp"
	"time"

	"github.com/nats-io/nats.go"
)

// Message headers.
const (
	SenderID = "sender_id"
	Origin   = "origin"
)

var (
	OutputProfileUpdate = "OutputProfileUpdate"
)

var safeCharacters = regexp.MustCompile("[^A-Za-z0-9$]+")

// Tokenise makes str safe to use in subject and consumer names.
func Tokenise(str string) string {
	return safeCharacters.ReplaceAllString(str, "_")
}

var streams = []*nats.StreamConfig{
	{
		Name:      OutputProfileUpdate,
		Retention: nats.InterestPolicy,
		Storage:   nats.FileStorage,
		MaxAge:    time.Hour * 24,
	},
}
