// Package throttle limits LLM calls to a requests-per-minute quota.
package throttle

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
)

// DefaultBackoff is how long calls pause after the provider reports a rate limit.
const DefaultBackoff = 30 * time.Second

// Limiter is a token bucket with a backoff window opened by rate-limit
// responses. One Limiter may guard several services sharing a quota.
type Limiter struct {
	bucket  *rate.Limiter
	backoff time.Duration

	mu      sync.Mutex
	retryAt time.Time
	now     func() time.Time
}

// NewLimiter returns a limiter allowing rpm requests per minute, or nil
// when rpm is not positive.
func NewLimiter(rpm int) *Limiter {
	if rpm <= 0 {
		return nil
	}
	return &Limiter{
		bucket:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		backoff: DefaultBackoff,
		now:     time.Now,
	}
}

// Wait blocks until a request may be sent.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if d := retryAt.Sub(l.now()); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return l.bucket.Wait(ctx)
}

// Observe opens a backoff window when err reports a rate limit.
func (l *Limiter) Observe(err error) {
	if !errors.Is(err, domain.ErrRateLimited) {
		return
	}
	l.mu.Lock()
	l.retryAt = l.now().Add(l.backoff)
	l.mu.Unlock()
}

// Wrap returns svc guarded by l. A nil Limiter returns svc unchanged.
func (l *Limiter) Wrap(svc driven.LLMService) driven.LLMService {
	if l == nil || svc == nil {
		return svc
	}
	return &LLMService{next: svc, limiter: l}
}

// Wrap returns svc limited to rpm requests per minute.
func Wrap(svc driven.LLMService, rpm int) driven.LLMService {
	return NewLimiter(rpm).Wrap(svc)
}

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// LLMService delegates to another service once the limiter allows.
type LLMService struct {
	next    driven.LLMService
	limiter *Limiter
}

// Generate waits for the limiter then delegates.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	out, err := s.next.Generate(ctx, prompt, opts)
	s.limiter.Observe(err)
	return out, err
}

// Chat waits for the limiter then delegates.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	out, err := s.next.Chat(ctx, messages, opts)
	s.limiter.Observe(err)
	return out, err
}

// ModelName returns the wrapped model name.
func (s *LLMService) ModelName() string { return s.next.ModelName() }

// Ping is not throttled.
func (s *LLMService) Ping(ctx context.Context) error { return s.next.Ping(ctx) }

// Close closes the wrapped service.
func (s *LLMService) Close() error { return s.next.Close() }
