// Copyright 2021 The Matrix.org Foundation C.I.C.
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

//go:build !windows
// +build !windows

package internal

import (
	"log/syslog"

	"github.com/MFAshby/stdemuxerhook"
	"github.com/catalogo-app/perfil/setup/config"
	"github.com/sirupsen/logrus"
	lSyslog "github.com/sirupsen/logrus/hooks/syslog"
)

// SetupHookLogging installs the hooks listed under logging in the config.
// A malformed hook is fatal.
func SetupHookLogging(hooks []config.LogrusHook, componentName string) {
	for _, hook := range hooks {
		level, err := logrus.ParseLevel(hook.Level)
		if err != nil {
			logrus.Fatalf("Unrecognised logging level %s: %q", hook.Level, err)
		}

		switch hook.Type {
		case "file":
			checkFileHookParams(hook.Params)
			setupFileHook(hook, level, componentName)
		case "syslog":
			checkSyslogHookParams(hook.Params)
			setupSyslogHook(hook, level, componentName)
		case "std":
			setupStdHook(level)
		default:
			logrus.Fatalf("Unrecognised logging hook type: %s", hook.Type)
		}
	}
}

func checkSyslogHookParams(params map[string]interface{}) {
	for _, name := range []string{"address", "protocol"} {
		v, ok := params[name]
		if !ok {
			logrus.Fatalf("Expecting a parameter %q for logging hook of type \"syslog\"", name)
		}
		if _, ok := v.(string); !ok {
			logrus.Fatalf("Parameter %q for logging hook of type \"syslog\" should be a string", name)
		}
	}
}

func setupStdLogHook(level logrus.Level) {
	logrus.AddHook(&logLevelHook{level, stdemuxerhook.New(logrus.StandardLogger())})
}

func setupSyslogHook(hook config.LogrusHook, level logrus.Level, componentName string) {
	syslogHook, err := lSyslog.NewSyslogHook(hook.Params["protocol"].(string), hook.Params["address"].(string), syslog.LOG_INFO, componentName)
	if err != nil {
		logrus.WithError(err).WithField("address", hook.Params["address"]).Warn("Failed to connect to syslog, entries will not be forwarded")
		return
	}
	logrus.AddHook(&logLevelHook{level, syslogHook})
}
