// Package redis keeps pending verification codes in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coursehub/integration-api/internal/domain"
	rdb "github.com/redis/go-redis/v9"
)

const keyPrefix = "otp:"

// consumeScript deletes the record only when its code matches ARGV[1] and
// returns the deleted JSON, or nil.
var consumeScript = rdb.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then
  return false
end
if cjson.decode(v).code ~= ARGV[1] then
  return false
end
redis.call("DEL", KEYS[1])
return v
`)

// OTPRepo stores one JSON-encoded record per email under "otp:<email>",
// expiring at the record's PurgeAt.
type OTPRepo struct {
	client rdb.Cmdable
	now    func() time.Time
}

func NewClient(addr string, db int) *rdb.Client {
	return rdb.NewClient(&rdb.Options{Addr: addr, DB: db})
}

func NewOTPRepo(client rdb.Cmdable) *OTPRepo {
	return &OTPRepo{client: client, now: time.Now}
}

func otpKey(email string) string { return keyPrefix + email }

func (r *OTPRepo) Put(ctx context.Context, rec *domain.OTPRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal otp record: %w", err)
	}
	var ttl time.Duration
	if rec.PurgeAt > 0 {
		ttl = time.Unix(rec.PurgeAt, 0).Sub(r.now())
		if ttl <= 0 {
			// already past retention; go-redis would store a negative TTL without expiry
			return r.client.Del(ctx, otpKey(rec.Email)).Err()
		}
	}
	return r.client.Set(ctx, otpKey(rec.Email), b, ttl).Err()
}

func (r *OTPRepo) Get(ctx context.Context, email string) (*domain.OTPRecord, error) {
	b, err := r.client.Get(ctx, otpKey(email)).Bytes()
	if errors.Is(err, rdb.Nil) {
		return nil, fmt.Errorf("otp record not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var rec domain.OTPRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal otp record: %w", err)
	}
	return &rec, nil
}

func (r *OTPRepo) DeleteByEmail(ctx context.Context, email string) error {
	return r.client.Del(ctx, otpKey(email)).Err()
}

// Consume runs the compare and delete server-side so concurrent callers
// cannot both remove the same code.
func (r *OTPRepo) Consume(ctx context.Context, email, code string) (*domain.OTPRecord, error) {
	v, err := consumeScript.Run(ctx, r.client, []string{otpKey(email)}, code).Text()
	if errors.Is(err, rdb.Nil) {
		return nil, domain.ErrInvalidCode
	}
	if err != nil {
		return nil, fmt.Errorf("consume otp record: %w", err)
	}
	var rec domain.OTPRecord
	if err := json.Unmarshal([]byte(v), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal otp record: %w", err)
	}
	return &rec, nil
}
