package verification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisRecord is the JSON document stored per address. Timestamps are unix
// seconds so the Lua scripts can compare them directly.
type redisRecord struct {
	State      int    `json:"state"`
	Code       string `json:"code,omitempty"`
	Issued     int64  `json:"issued,omitempty"`
	CodeExp    int64  `json:"codeExp,omitempty"`
	LastIssued int64  `json:"lastIssued,omitempty"`
	VerExp     int64  `json:"verExp,omitempty"`
}

// requestCodeScript performs the cooldown check and the new-code write in one
// step. Returns 0 on success or the remaining cooldown in seconds.
//
// KEYS[1] record key
// ARGV[1] now (unix seconds)
// ARGV[2] cooldown seconds
// ARGV[3] new code
// ARGV[4] code TTL seconds
var requestCodeScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local cooldown = tonumber(ARGV[2])
local data = redis.call('GET', KEYS[1])
if data then
  local rec = cjson.decode(data)
  if rec.lastIssued and now - rec.lastIssued < cooldown then
    return rec.lastIssued + cooldown - now
  end
end
local ttl = tonumber(ARGV[4])
local rec = {state=1, code=ARGV[3], issued=now, codeExp=now+ttl, lastIssued=now}
redis.call('SET', KEYS[1], cjson.encode(rec), 'EX', ttl)
return 0
`)

// confirmCodeScript validates a submitted code. Returns one of
// "ok" | "not_found" | "expired" | "mismatch".
//
// KEYS[1] record key
// ARGV[1] now (unix seconds)
// ARGV[2] submitted code
// ARGV[3] cooldown seconds
// ARGV[4] verified TTL seconds
var confirmCodeScript = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then return 'not_found' end
local rec = cjson.decode(data)
local now = tonumber(ARGV[1])
if rec.state ~= 1 then return 'not_found' end
if now > rec.codeExp then
  local remain = rec.lastIssued + tonumber(ARGV[3]) - now
  if remain > 0 then
    redis.call('SET', KEYS[1], cjson.encode({state=0, lastIssued=rec.lastIssued}), 'EX', remain)
  else
    redis.call('DEL', KEYS[1])
  end
  return 'expired'
end
if rec.code ~= ARGV[2] then return 'mismatch' end
local verTTL = tonumber(ARGV[4])
redis.call('SET', KEYS[1], cjson.encode({state=2, lastIssued=rec.lastIssued, verExp=now+verTTL}), 'EX', verTTL)
return 'ok'
`)

// consumeScript is the atomic check-and-clear. Returns 1 exactly once per
// verification; the record is demoted to an Unset placeholder that lives out
// the remaining cooldown so re-issuance stays throttled.
//
// KEYS[1] record key
// ARGV[1] now (unix seconds)
// ARGV[2] cooldown seconds
var consumeScript = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then return 0 end
local rec = cjson.decode(data)
local now = tonumber(ARGV[1])
if rec.state ~= 2 or now > rec.verExp then return 0 end
local remain = rec.lastIssued + tonumber(ARGV[2]) - now
if remain > 0 then
  redis.call('SET', KEYS[1], cjson.encode({state=0, lastIssued=rec.lastIssued}), 'EX', remain)
else
  redis.call('DEL', KEYS[1])
end
return 1
`)

// RedisStore backs the verification workflow with Redis so multiple API
// instances share one view. Atomicity comes from the scripts above rather
// than process-local locking.
type RedisStore struct {
	client redis.UniversalClient
	prefix string

	now     func() time.Time
	genCode func() string

	cooldown    time.Duration
	codeTTL     time.Duration
	verifiedTTL time.Duration
}

// RedisOption customizes a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisClock replaces the wall clock.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) { s.now = now }
}

// WithRedisCodeGenerator replaces the random code source.
func WithRedisCodeGenerator(gen func() string) RedisOption {
	return func(s *RedisStore) { s.genCode = gen }
}

// NewRedisStore creates a RedisStore with the default windows. Keys are
// namespaced under prefix (default "verify").
func NewRedisStore(client redis.UniversalClient, prefix string, opts ...RedisOption) *RedisStore {
	if prefix == "" {
		prefix = "verify"
	}
	s := &RedisStore{
		client:      client,
		prefix:      prefix,
		now:         time.Now,
		genCode:     GenerateCode,
		cooldown:    DefaultCooldown,
		codeTTL:     DefaultCodeTTL,
		verifiedTTL: DefaultVerifiedTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(address string) string {
	return s.prefix + ":" + Normalize(address)
}

// RequestCode implements Store.
func (s *RedisStore) RequestCode(ctx context.Context, address string) (string, error) {
	code := s.genCode()
	res, err := requestCodeScript.Run(ctx, s.client,
		[]string{s.key(address)},
		s.now().Unix(),
		int(s.cooldown.Seconds()),
		code,
		int(s.codeTTL.Seconds()),
	).Int64()
	if err != nil {
		return "", err
	}
	if res > 0 {
		return "", &RateLimitError{RetryAfter: time.Duration(res) * time.Second}
	}
	return code, nil
}

// ConfirmCode implements Store.
func (s *RedisStore) ConfirmCode(ctx context.Context, address, code string) error {
	res, err := confirmCodeScript.Run(ctx, s.client,
		[]string{s.key(address)},
		s.now().Unix(),
		code,
		int(s.cooldown.Seconds()),
		int(s.verifiedTTL.Seconds()),
	).Text()
	if err != nil {
		return err
	}
	switch res {
	case "ok":
		return nil
	case "expired":
		return ErrExpired
	case "mismatch":
		return ErrMismatch
	default:
		return ErrNotFound
	}
}

// CheckVerified implements Store. A plain read is enough for the
// non-consuming peek.
func (s *RedisStore) CheckVerified(ctx context.Context, address string) (bool, error) {
	data, err := s.client.Get(ctx, s.key(address)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return false, err
	}
	return rec.State == 2 && s.now().Unix() <= rec.VerExp, nil
}

// ConsumeVerification implements Store.
func (s *RedisStore) ConsumeVerification(ctx context.Context, address string) (bool, error) {
	res, err := consumeScript.Run(ctx, s.client,
		[]string{s.key(address)},
		s.now().Unix(),
		int(s.cooldown.Seconds()),
	).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
