package config

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

type ProfileAPI struct {
	// The database the persistent cache lives in. If empty, the global
	// database options are used.
	Database DatabaseOptions `yaml:"database,omitempty"`

	// The address the HTTP API listens on.
	Listen string `yaml:"listen"`

	// How long the simulated commit takes before its effects are applied.
	CommitDelay time.Duration `yaml:"commit_delay"`

	// The largest avatar payload accepted, in bytes.
	MaxAvatarSizeBytes DataUnit `yaml:"max_avatar_size_bytes"`

	// Values the session starts with when the persistent cache holds nothing.
	DefaultDisplayName string `yaml:"default_display_name"`
	DefaultAvatarImage string `yaml:"default_avatar_image"`

	// Reject submissions that leave the current password empty.
	RequireCurrentPassword bool `yaml:"require_current_password"`

	// Screens that see no requests for this long are unmounted.
	ScreenIdleTimeout time.Duration `yaml:"screen_idle_timeout"`

	// The language used for user-visible messages when the request does not
	// ask for one, e.g. "pt-BR" or "en".
	DefaultLanguage string `yaml:"default_language"`
}

func (c *ProfileAPI) Defaults(generate bool) {
	c.Listen = ":8008"
	c.CommitDelay = 2 * time.Second
	c.MaxAvatarSizeBytes = 5 * 1024 * 1024
	c.DefaultDisplayName = ""
	c.DefaultAvatarImage = ""
	c.RequireCurrentPassword = false
	c.ScreenIdleTimeout = 30 * time.Minute
	c.DefaultLanguage = "pt-BR"
	if generate {
		c.Database.ConnectionString = "file:perfil.db"
		c.DefaultDisplayName = "Usuário"
	}
}

func (c *ProfileAPI) Verify(configErrs *ConfigErrors) {
	checkNotEmpty(configErrs, "profile_api.listen", c.Listen)
	checkPositive(configErrs, "profile_api.commit_delay", int64(c.CommitDelay))
	checkNotZero(configErrs, "profile_api.max_avatar_size_bytes", int64(c.MaxAvatarSizeBytes))
	checkPositive(configErrs, "profile_api.max_avatar_size_bytes", int64(c.MaxAvatarSizeBytes))
	checkNotZero(configErrs, "profile_api.screen_idle_timeout", int64(c.ScreenIdleTimeout))
	if _, err := language.Parse(c.DefaultLanguage); err != nil {
		configErrs.Add(fmt.Sprintf("invalid value for config key \"profile_api.default_language\": %s", c.DefaultLanguage))
	}
}
