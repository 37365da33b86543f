package config

import (
	_ "embed"
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks cfg against the embedded CUE schema plus the rules CUE
// cannot express (loopback-only TCP).
func Validate(cfg *Config) error {
	cctx := cuecontext.New()

	schema := cctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	encoded := *cfg
	if encoded.Plugins.Enabled == nil {
		encoded.Plugins.Enabled = []string{}
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	value := def.Unify(cctx.Encode(encoded))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, cueerrors.Details(err, nil))
	}

	if cfg.Bridge.Network == "tcp" {
		if err := checkLoopback(cfg.Bridge.Address); err != nil {
			return err
		}
	}
	return nil
}
