package config

import "github.com/google/wire"

// ProviderSet 配置层依赖注入
var ProviderSet = wire.NewSet(Load)
