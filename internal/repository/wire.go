package repository

import "github.com/google/wire"

// ProviderSet repository 层依赖注入
var ProviderSet = wire.NewSet(
	NewCSPAuthClient,
)
