package cli

import (
	"fmt"

	"github.com/roach88/cohort/internal/config"
	"github.com/roach88/cohort/internal/queryir"
	"github.com/roach88/cohort/internal/querysql"
	"github.com/roach88/cohort/internal/schema"
)

// requestFlags are the compile settings shared by compile, run and validate.
type requestFlags struct {
	Context string
	Dialect string
	Params  bool
}

// loadRequest reads a request file and applies the context precedence:
// --context, then the request's own context, then the config default.
func loadRequest(path string, flags requestFlags, cfg config.Config) (*queryir.Request, error) {
	req, err := queryir.ReadRequestFile(path)
	if err != nil {
		return nil, err
	}

	switch {
	case flags.Context != "":
		ctx, err := schema.ParseContext(flags.Context)
		if err != nil {
			return nil, err
		}
		req.Context = ctx
	case req.Context == schema.NoContext && cfg.Context != "":
		ctx, err := schema.ParseContext(cfg.Context)
		if err != nil {
			return nil, fmt.Errorf("config context: %w", err)
		}
		req.Context = ctx
	}
	return req, nil
}

// resolveDialect picks --dialect over the configured dialect.
func resolveDialect(flags requestFlags, cfg config.Config) (querysql.Dialect, error) {
	name := flags.Dialect
	if name == "" {
		name = cfg.Dialect
	}
	return querysql.DialectByName(name)
}

func (f requestFlags) mode() querysql.Mode {
	if f.Params {
		return querysql.ModeParameterized
	}
	return querysql.ModeLiteral
}
