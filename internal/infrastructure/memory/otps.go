// Package memory is a process-local verification code store for development
// and single-instance deployments.
package memory

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/coursehub/integration-api/internal/domain"
	gocache "github.com/patrickmn/go-cache"
)

type OTPRepo struct {
	// mu serialises writers so Consume's compare and delete see one record.
	mu  sync.Mutex
	c   *gocache.Cache
	now func() time.Time
}

func NewOTPRepo() *OTPRepo {
	return &OTPRepo{c: gocache.New(gocache.NoExpiration, time.Minute), now: time.Now}
}

func (r *OTPRepo) Put(_ context.Context, rec *domain.OTPRecord) error {
	cp := *rec
	r.mu.Lock()
	defer r.mu.Unlock()
	ttl := gocache.NoExpiration
	if rec.PurgeAt > 0 {
		ttl = time.Unix(rec.PurgeAt, 0).Sub(r.now())
		if ttl <= 0 {
			// already past retention
			r.c.Delete(rec.Email)
			return nil
		}
	}
	r.c.Set(rec.Email, &cp, ttl)
	return nil
}

func (r *OTPRepo) Get(_ context.Context, email string) (*domain.OTPRecord, error) {
	v, ok := r.c.Get(email)
	if !ok {
		return nil, fmt.Errorf("otp record not found: %w", domain.ErrNotFound)
	}
	cp := *v.(*domain.OTPRecord)
	return &cp, nil
}

func (r *OTPRepo) DeleteByEmail(_ context.Context, email string) error {
	r.mu.Lock()
	r.c.Delete(email)
	r.mu.Unlock()
	return nil
}

func (r *OTPRepo) Consume(_ context.Context, email, code string) (*domain.OTPRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.c.Get(email)
	if !ok {
		return nil, domain.ErrInvalidCode
	}
	rec := v.(*domain.OTPRecord)
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return nil, domain.ErrInvalidCode
	}
	r.c.Delete(email)
	cp := *rec
	return &cp, nil
}
