package service

import "github.com/google/wire"

// ProviderSet service 层依赖注入
var ProviderSet = wire.NewSet(
	NewTokenCacheService,
	NewAlertPollService,
)
