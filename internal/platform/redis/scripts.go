package redis

import goredis "github.com/redis/go-redis/v9"

// KEYS[1] record, KEYS[2] identity index, KEYS[3] expiry index.
// ARGV: token, id, identity_id, expires_at_ns, created_at_ns, expires_at_ms,
// expire_at_ms, ttl_ms. The identity index TTL only ever grows, so it outlives
// every record it lists.
var createScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "id", ARGV[2],
  "identity_id", ARGV[3],
  "expires_at", ARGV[4],
  "created_at", ARGV[5],
  "revoked", "0")
redis.call("PEXPIREAT", KEYS[1], ARGV[7])
redis.call("SADD", KEYS[2], ARGV[1])
local ttl = tonumber(ARGV[8])
if ttl > 0 and redis.call("PTTL", KEYS[2]) < ttl then
  redis.call("PEXPIRE", KEYS[2], ttl)
end
redis.call("ZADD", KEYS[3], ARGV[6], ARGV[1])
return 1
`)

// KEYS[1] record.
var revokeIfActiveScript = goredis.NewScript(`
local revoked = redis.call("HGET", KEYS[1], "revoked")
if revoked ~= "0" then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1")
return 1
`)

// KEYS[1] identity index. ARGV[1] record key prefix.
var revokeAllScript = goredis.NewScript(`
local tokens = redis.call("SMEMBERS", KEYS[1])
local changed = 0
for _, token in ipairs(tokens) do
  local key = ARGV[1] .. token
  local revoked = redis.call("HGET", key, "revoked")
  if not revoked then
    redis.call("SREM", KEYS[1], token)
  elseif revoked == "0" then
    redis.call("HSET", key, "revoked", "1")
    changed = changed + 1
  end
end
return changed
`)

// KEYS[1] expiry index. ARGV[1] record key prefix, ARGV[2] identity index prefix,
// ARGV[3] exclusive score bound.
var deleteExpiredScript = goredis.NewScript(`
local tokens = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[3])
local deleted = 0
for _, token in ipairs(tokens) do
  local key = ARGV[1] .. token
  local identity = redis.call("HGET", key, "identity_id")
  if identity then
    redis.call("SREM", ARGV[2] .. identity, token)
  end
  deleted = deleted + redis.call("DEL", key)
  redis.call("ZREM", KEYS[1], token)
end
return deleted
`)
