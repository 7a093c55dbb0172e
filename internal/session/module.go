package session

import "go.uber.org/fx"

// Module provides the session store.
var Module = fx.Provide(NewStore)
