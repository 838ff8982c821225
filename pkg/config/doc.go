// Package config loads typed configuration structs from environment variables.
//
// Struct fields are mapped with `env` tags (github.com/caarlos0/env), so defaults,
// required fields, durations and nested structs with their own prefixes all work
// out of the box. A .env file in the working directory is read once, before the
// first Load, through github.com/joho/godotenv; additional files can be loaded
// explicitly with LoadEnv.
//
//	var cfg engine.Config
//	if err := config.Load(&cfg, config.WithPrefix("PLAN_")); err != nil {
//		log.Fatal(err)
//	}
package config
