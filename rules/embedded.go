package rules

import (
	"embed"
)

//go:embed *.yaml
var Embedded embed.FS

// Default returns an engine with the embedded rule sets loaded and compiled.
func Default() (*Engine, error) {
	e := New()

	if err := e.LoadFS(Embedded); err != nil {
		return nil, err
	}

	if err := e.CompileRules(); err != nil {
		return nil, err
	}

	return e, nil
}
