package snapshot

import "go.uber.org/fx"

var Module = fx.Module("snapshot",
	fx.Provide(NewBuilder),
	fx.Provide(NewBackfiller),
)
