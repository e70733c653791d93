// Package middleware adapts credkit.Engine to net/http.
//
// [Guard] resolves bearer tokens and answers 401 on failure. [RateLimit]
// applies the engine's per-client sliding window and answers 429 with a
// Retry-After header. The client address comes from RemoteAddr; forwarding
// headers are ignored.
package middleware
