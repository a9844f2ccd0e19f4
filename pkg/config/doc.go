// Package config loads typed configuration structs from environment
// variables, with an optional .env file for local development. Each
// package declares its own env-tagged Config struct and loads it
// through Load or MustLoad.
package config
