// Package redis implements store.RefreshRecordStore on Redis.
//
// Each record is a hash keyed by its token. A per-identity set indexes the
// tokens owned by an identity and a sorted set scored by expiry (unix
// milliseconds) drives retention. Every state transition runs as a Lua script
// so the read and the write happen atomically on the server.
//
// All keys share the prefix as a hash tag ("{taskhub}:refresh:<token>"). The
// revoke-all and sweep scripts derive record keys from index members, which
// Redis Cluster only serves when those keys sit in the caller's slot. With one
// tag per store that always holds, at the cost of keeping a store's data on a
// single shard.
package redis
