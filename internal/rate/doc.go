// Package rate implements the sliding-window request limiter.
//
// # Window semantics
//
// Each call prunes timestamps older than the window, records the current
// timestamp, then allows the call iff the recorded count is <= the ceiling.
// Rejected calls are recorded too, so a client cannot reset its window by
// hammering a rejected endpoint. Only the newest ceiling+1 timestamps are
// kept per key; older ones can never change a decision.
//
// Backends:
//   - MemoryLimiter: per-instance state, 64 shards keyed by xxhash.
//   - RedisLimiter: one sorted set per key (<prefix>:<clientKey>), shared by
//     every instance pointing at the same Redis.
//
// # What this package must NOT do
//
//   - Decide what a client key is. Callers pass the client identity.
//   - Be imported outside the credkit module.
package rate
