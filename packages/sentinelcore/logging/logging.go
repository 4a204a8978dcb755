// Package logging constructs the structured logger shared by both
// binaries, matching the zap setup used by both of this repo's cmd/*/main.go.
package logging

import "go.uber.org/zap"

// New builds a production zap.Logger. env selects the encoder/level
// profile: "production" (default, JSON) or "development" (console,
// debug-level, stack traces on warn).
func New(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
