// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional config file. It provides
// type-safe access to the settings needed by the task runner, the Gmail
// integration, the language model classifier and the HTTP server.
package config
