// Package ctxkey 定义用于 context.Value 的类型安全 key
package ctxkey

// Key 定义 context key 的类型，避免使用内置 string 类型（staticcheck SA1029）
type Key string

const (
	// RequestID 为服务端生成/透传的请求 ID。
	RequestID Key = "ctx_request_id"

	// CacheKey 当前请求命中的凭证缓存 key（用于统一请求链路日志字段）。
	CacheKey Key = "ctx_cache_key"
)
