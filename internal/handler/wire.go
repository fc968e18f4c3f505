package handler

import "github.com/google/wire"

// Handlers 聚合所有 HTTP handler，便于注入 router
type Handlers struct {
	Token *TokenHandler
}

// ProvideHandlers creates the Handlers struct
func ProvideHandlers(tokenHandler *TokenHandler) *Handlers {
	return &Handlers{
		Token: tokenHandler,
	}
}

// ProviderSet is the Wire provider set for all handlers
var ProviderSet = wire.NewSet(
	NewTokenHandler,
	ProvideHandlers,
)
