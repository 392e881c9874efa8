package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionString(t *testing.T) {
	assert.Equal(t, Version, VersionString())

	commit = "1a2b3c4"
	t.Cleanup(func() { commit = "" })
	assert.Equal(t, Version+"+1a2b3c4", VersionString())
}
