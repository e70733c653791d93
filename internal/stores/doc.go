// Package stores holds short-lived, single-use records for credential flows:
// password reset codes, OAuth anti-replay states, and revoked token ids.
//
// # Design
//
// Every store sits on a [Backend], a keyed TTL map whose Take removes and
// returns an entry in one atomic step. Two backends exist:
//
//   - [MemoryBackend]: 64 mutex-guarded shards selected by xxhash of the key,
//     lazy expiry on access plus an optional periodic sweeper.
//   - [RedisBackend]: SET NX PX for inserts and a MULTI/EXEC GET+DEL for takes,
//     so several processes can share one keyspace.
//
// Records are versioned, big-endian binary blobs. Keys are SHA-256 digests of
// the secret, so plaintext codes and states never reach the backend.
//
// # What this package must NOT do
//
//   - Import credkit or any sibling internal package other than internal.
//   - Log or expose plaintext secrets.
//   - Distinguish expired from unknown records to callers.
package stores
