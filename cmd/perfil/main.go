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

package main

import (
	"flag"

	"github.com/sirupsen/logrus"

	"github.com/catalogo-app/perfil/profileapi"
	"github.com/catalogo-app/perfil/setup"
	basepkg "github.com/catalogo-app/perfil/setup/base"
)

var (
	httpBindAddr = flag.String("http-bind-address", "", "The HTTP listening address, overrides profile_api.listen")
	certFile     = flag.String("tls-cert", "", "The PEM formatted X509 certificate to use for TLS")
	keyFile      = flag.String("tls-key", "", "The PEM private key to use for TLS")
)

func main() {
	cfg := setup.ParseFlags()
	listen := cfg.ProfileAPI.Listen
	if *httpBindAddr != "" {
		listen = *httpBindAddr
	}

	base := basepkg.NewBasePerfil(cfg, "ProfileAPI")
	defer base.Close() // nolint: errcheck

	profileapi.AddPublicRoutes(
		base.ProcessContext, base.PublicPerfilMux, cfg,
		base.ConnectionManager, base.NATS, base.Caches,
	)

	if (*certFile == "") != (*keyFile == "") {
		logrus.Fatal("--tls-cert and --tls-key must be supplied together")
	}
	var cert, key *string
	if *certFile != "" {
		cert, key = certFile, keyFile
	}

	go base.SetupAndServeHTTP(listen, cert, key)

	// We want to block forever to let the HTTP and HTTPS handler serve the APIs
	base.WaitForShutdown()
}
