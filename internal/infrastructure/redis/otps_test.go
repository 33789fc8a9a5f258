package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/coursehub/integration-api/internal/domain"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient records the commands the repo issues. Unimplemented methods
// panic through the nil embedded interface.
type fakeClient struct {
	rdb.Cmdable
	setKey  string
	setTTL  time.Duration
	deleted []string
	evalSHA string
	evalKey []string
	evalArg []interface{}
	evalVal interface{}
}

func (f *fakeClient) Set(ctx context.Context, key string, _ interface{}, ttl time.Duration) *rdb.StatusCmd {
	f.setKey, f.setTTL = key, ttl
	cmd := rdb.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeClient) Del(ctx context.Context, keys ...string) *rdb.IntCmd {
	f.deleted = append(f.deleted, keys...)
	cmd := rdb.NewIntCmd(ctx)
	cmd.SetVal(int64(len(keys)))
	return cmd
}

func (f *fakeClient) EvalSha(ctx context.Context, sha string, keys []string, args ...interface{}) *rdb.Cmd {
	f.evalSHA, f.evalKey, f.evalArg = sha, keys, args
	cmd := rdb.NewCmd(ctx)
	if f.evalVal == nil {
		cmd.SetErr(rdb.Nil)
	} else {
		cmd.SetVal(f.evalVal)
	}
	return cmd
}

func TestOTPKey(t *testing.T) {
	assert.Equal(t, "otp:a@b.com", otpKey("a@b.com"))
}

func TestOTPRepo_UnreachableServer_IsNotNotFound(t *testing.T) {
	client := rdb.NewClient(&rdb.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	defer client.Close()

	_, err := NewOTPRepo(client).Get(context.Background(), "a@b.com")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}

func TestOTPRepo_Put_ExpiresAtPurge(t *testing.T) {
	f := &fakeClient{}
	repo := NewOTPRepo(f)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	err := repo.Put(context.Background(), &domain.OTPRecord{Email: "a@b.com", Code: "123456", PurgeAt: now.Add(time.Hour).Unix()})
	require.NoError(t, err)
	assert.Equal(t, "otp:a@b.com", f.setKey)
	assert.Equal(t, time.Hour, f.setTTL)
	assert.Empty(t, f.deleted)
}

func TestOTPRepo_Put_PastRetentionDeletesInsteadOfWriting(t *testing.T) {
	f := &fakeClient{}
	repo := NewOTPRepo(f)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	err := repo.Put(context.Background(), &domain.OTPRecord{
		Email:     "a@b.com",
		Code:      "123456",
		ExpiresAt: now.Add(-2 * time.Hour),
		PurgeAt:   now.Add(-time.Minute).Unix(),
	})
	require.NoError(t, err)
	assert.Empty(t, f.setKey, "a record past retention must not be written")
	assert.Equal(t, []string{"otp:a@b.com"}, f.deleted)
}

func TestOTPRepo_Consume_Match(t *testing.T) {
	raw, err := json.Marshal(&domain.OTPRecord{Email: "a@b.com", Code: "123456"})
	require.NoError(t, err)
	f := &fakeClient{evalVal: string(raw)}

	rec, err := NewOTPRepo(f).Consume(context.Background(), "a@b.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, "123456", rec.Code)
	assert.Equal(t, consumeScript.Hash(), f.evalSHA)
	assert.Equal(t, []string{"otp:a@b.com"}, f.evalKey)
	assert.Equal(t, []interface{}{"123456"}, f.evalArg)
}

func TestOTPRepo_Consume_NoMatchIsInvalidCode(t *testing.T) {
	_, err := NewOTPRepo(&fakeClient{}).Consume(context.Background(), "a@b.com", "123456")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}
