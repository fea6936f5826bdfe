package cli

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ApplyEnv overlays LINGOPIPE_* environment variables onto a context.
// Environment values win over the config file, so credentials never need to
// be written to disk in CI or shared machines.
func ApplyEnv(ctx *Context) error {
	if err := env.Parse(ctx); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}
