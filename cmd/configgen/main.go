package main

import (
	"flag"

	"github.com/danmuck/loralink/internal/config"
	"github.com/danmuck/loralink/internal/observability"
	"github.com/rs/zerolog/log"
)

func main() {
	observability.InitLogger("configgen")

	kind := flag.String("kind", config.DriverSim, "config kind: sim|udp|rf95")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to cmd/radiochat/config.toml)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = "cmd/radiochat/config.toml"
		}
		cfg, err := config.LoadNodeConfig(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("config invalid")
		}
		log.Info().
			Str("path", path).
			Str("node", cfg.Name).
			Str("driver", cfg.Driver).
			Bool("default_key", cfg.UsesDefaultKey()).
			Msg("validated config")
		return
	}

	target := *output
	if target == "" {
		target = "cmd/radiochat/config.toml"
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal().Err(err).Msg("write template")
	}
	log.Info().Str("kind", *kind).Str("path", target).Msg("wrote config template")
}
