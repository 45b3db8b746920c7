package zquirk

import (
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
	"log"
)

func (r *Registry) WithGoLogger(parentLogger *log.Logger) {
	r.WithLogWrapLogger(logwrap.New(golog.Wrap(parentLogger)))
}

func (r *Registry) WithLogWrapLogger(lw logwrap.Logger) {
	r.logger = lw
}
