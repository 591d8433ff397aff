package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lingodoc/platform/internal/pricing"
)

// Quotes expire after a day; a checkout against a stale reference must
// re-quote.
const quoteTTL = 24 * time.Hour

// QuoteRecord is a priced file snapshot cached under its billing
// reference until the buyer checks out.
type QuoteRecord struct {
	UserID uint64        `json:"user_id"`
	FileID uint64        `json:"file_id"`
	Quote  pricing.Quote `json:"quote"`
}

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Close() error { return s.rdb.Close() }

func quoteKey(billingReference string) string {
	return "quote:" + billingReference
}

func (s *Store) SaveQuote(ctx context.Context, billingReference string, rec QuoteRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, quoteKey(billingReference), b, quoteTTL).Err()
}

// GetQuote returns redis.Nil when the reference is unknown or expired.
func (s *Store) GetQuote(ctx context.Context, billingReference string) (QuoteRecord, error) {
	b, err := s.rdb.Get(ctx, quoteKey(billingReference)).Bytes()
	if err != nil {
		return QuoteRecord{}, err
	}
	var rec QuoteRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return QuoteRecord{}, err
	}
	return rec, nil
}

func (s *Store) DeleteQuote(ctx context.Context, billingReference string) error {
	return s.rdb.Del(ctx, quoteKey(billingReference)).Err()
}
