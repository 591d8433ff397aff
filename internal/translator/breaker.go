package translator

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker wraps an Engine with a circuit breaker so a misbehaving
// translation API sheds load instead of tying up every worker slot.
type Breaker struct {
	inner Engine
	cb    *gobreaker.CircuitBreaker
}

func NewBreaker(inner Engine) *Breaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "translation-engine",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Breaker{inner: inner, cb: cb}
}

func (b *Breaker) TranslateText(ctx context.Context, content, sourceLang, targetLang string) (string, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.inner.TranslateText(ctx, content, sourceLang, targetLang)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (b *Breaker) TranslateDocument(ctx context.Context, data []byte, filename, sourceLang, targetLang, formality string) ([]byte, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.inner.TranslateDocument(ctx, data, filename, sourceLang, targetLang, formality)
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}
