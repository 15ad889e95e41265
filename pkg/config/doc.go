// Package config loads typed configuration from environment variables.
//
// Structs describe their variables with caarlos0/env tags. Each package
// that needs configuration owns its struct (pg.Config, redis.Config,
// httpserver.Config and so on) and the binary composes them:
//
//	var db pg.Config
//	config.MustLoad(&db)
//
// Parsed values are cached per type for the life of the process.
// LoadEnv reads explicit dotenv files; otherwise a `.env` file in the
// working directory is picked up automatically when present.
package config
