package jetstream

import (
	"fmt"
	"strings"
	"sync"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	natsclient "github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/catalogo-app/perfil/setup/config"
	"github.com/catalogo-app/perfil/setup/process"
)

// NATSInstance owns the in-process NATS server, when there is one.
type NATSInstance struct {
	*natsserver.Server
	sync.Mutex
}

// Prepare connects to JetStream and makes sure every stream exists. Without
// configured addresses an in-process server is started and shut down along
// with the process.
func (s *NATSInstance) Prepare(process *process.ProcessContext, cfg *config.JetStream) (natsclient.JetStreamContext, *natsclient.Conn, error) {
	// check if we need an in-process NATS Server
	if len(cfg.Addresses) != 0 {
		return setupNATS(cfg, nil)
	}
	s.Lock()
	if s.Server == nil {
		var err error
		s.Server, err = natsserver.NewServer(&natsserver.Options{
			ServerName:      "perfil",
			DontListen:      true,
			JetStream:       true,
			StoreDir:        string(cfg.StoragePath),
			NoSystemAccount: true,
			MaxPayload:      16 * 1024 * 1024,
			NoSigs:          true,
		})
		if err != nil {
			s.Unlock()
			return nil, nil, fmt.Errorf("natsserver.NewServer: %w", err)
		}
		s.SetLoggerV2(NewLogAdapter(), false, false, false)
		go func() {
			process.ComponentStarted()
			s.Start()
		}()
		go func() {
			<-process.WaitForShutdown()
			s.Shutdown()
			s.WaitForShutdown()
			process.ComponentFinished()
		}()
	}
	s.Unlock()
	if !s.ReadyForConnections(time.Second * 10) {
		return nil, nil, fmt.Errorf("NATS did not start in time")
	}
	nc, err := natsclient.Connect("", natsclient.InProcessServer(s))
	if err != nil {
		return nil, nil, fmt.Errorf("natsclient.Connect: %w", err)
	}
	return setupNATS(cfg, nc)
}

func setupNATS(cfg *config.JetStream, nc *natsclient.Conn) (natsclient.JetStreamContext, *natsclient.Conn, error) {
	if nc == nil {
		var err error
		nc, err = natsclient.Connect(strings.Join(cfg.Addresses, ","))
		if err != nil {
			return nil, nil, fmt.Errorf("unable to connect to NATS: %w", err)
		}
	}

	s, err := nc.JetStream()
	if err != nil {
		return nil, nil, fmt.Errorf("unable to get JetStream context: %w", err)
	}

	for _, stream := range streams { // streams are defined in streams.go
		name := cfg.TopicFor(stream.Name)
		info, err := s.StreamInfo(name)
		if err != nil && err != natsclient.ErrStreamNotFound {
			return nil, nil, fmt.Errorf("unable to get stream info for %q: %w", name, err)
		}
		if info != nil {
			continue
		}
		// Work on a copy so that prefixes from one deployment do not leak
		// into another sharing this process, as happens in tests.
		stream := *stream
		stream.Name = name
		stream.Subjects = []string{name}
		// If we're trying to keep everything in memory (e.g. unit tests)
		// then overwrite the storage policy.
		if cfg.InMemory {
			stream.Storage = natsclient.MemoryStorage
		}
		if _, err = s.AddStream(&stream); err != nil {
			return nil, nil, fmt.Errorf("unable to add stream %q: %w", name, err)
		}
		logrus.WithField("stream", name).Debug("Created JetStream stream")
	}
	return s, nc, nil
}
