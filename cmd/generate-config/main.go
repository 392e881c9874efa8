package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/catalogo-app/perfil/setup/config"
)

func main() {
	cfg, err := buildConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	j, err := yaml.Marshal(cfg)
	if err != nil {
		panic(err)
	}

	fmt.Println(string(j))
}

func buildConfig(fs *flag.FlagSet, args []string) (*config.Perfil, error) {
	defaultsForCI := fs.Bool("ci", false, "sane defaults for CI testing")
	dbURI := fs.String("db", "", "The DB URI to use for the profile database")
	origin := fs.String("origin", "", "The origin the persistent cache is scoped to")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &config.Perfil{}
	cfg.Defaults(true)
	if *origin != "" {
		cfg.Global.Origin = *origin
	}
	if *dbURI != "" {
		cfg.ProfileAPI.Database.ConnectionString = config.DataSource(*dbURI)
	}
	cfg.Logging = []config.LogrusHook{
		{
			Type:  "file",
			Level: "info",
			Params: map[string]interface{}{
				"path": "/var/log/perfil",
			},
		},
	}

	if *defaultsForCI {
		cfg.Logging[0].Level = "trace"
		cfg.Global.JetStream.InMemory = true
		cfg.ProfileAPI.CommitDelay = 0
	}
	return cfg, nil
}
