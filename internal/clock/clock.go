package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock supplies "now" to billing code so runs can be replayed at any instant.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// New returns the wall clock.
func New() Clock { return systemClock{} }

var Module = fx.Module("clock",
	fx.Provide(New),
)
