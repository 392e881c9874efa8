package config

import "fmt"

type JetStream struct {
	// A list of NATS addresses to connect to. If none are specified, an
	// internal NATS server will be started.
	Addresses []string `yaml:"addresses"`
	// Persistent directory to store JetStream streams in.
	StoragePath Path `yaml:"storage_path"`
	// The prefix to use for stream names for this deployment - really only
	// useful if running more than one instance on the same NATS deployment.
	TopicPrefix string `yaml:"topic_prefix"`
	// Keep all storage in memory. This is mostly useful for unit tests.
	InMemory bool `yaml:"in_memory"`
	// Disable the message bus entirely. Profile updates are then only
	// visible within this process.
	Disable bool `yaml:"disable"`
}

func (k *JetStream) TopicFor(name string) string {
	return fmt.Sprintf("%s%s", k.TopicPrefix, name)
}

// Durable returns the prefixed name of a durable consumer.
func (k *JetStream) Durable(name string) string {
	return k.TopicFor(name)
}

func (c *JetStream) Defaults(generate bool) {
	c.Addresses = []string{}
	c.TopicPrefix = "Perfil"
	if generate {
		c.StoragePath = Path("./")
	}
}

func (c *JetStream) Verify(configErrs *ConfigErrors) {
	if c.Disable || len(c.Addresses) != 0 || c.InMemory {
		return
	}
	// The internal server needs somewhere to keep its streams.
	checkNotEmpty(configErrs, "global.jetstream.storage_path", string(c.StoragePath))
}
