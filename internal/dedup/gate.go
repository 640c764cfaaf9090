// Package dedup decides whether a scraped document or feed URL has been seen.
//
// Content identity is SHA-256 over "url:raw_text"; the seen-hash set only grows.
// Feed URLs are tracked separately under keys that expire after the agency's
// scrape-frequency window.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	infralogger "github.com/jonesrussell/north-cloud/cadence/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

const (
	// SeenHashesKey is the set holding every admitted content hash.
	SeenHashesKey = "cadence:seen_hashes"
	urlKeyPrefix  = "cadence:url:"
)

// Gate applies the admission policy over a Store.
type Gate struct {
	store  Store
	logger infralogger.Logger
}

// NewGate creates a gate. Pass a FailoverStore to get degraded-mode behaviour
// when Redis is down.
func NewGate(store Store, log infralogger.Logger) *Gate {
	return &Gate{store: store, logger: log}
}

// ContentHash is the dedup key of doc.
func ContentHash(doc *domain.RawDocument) string {
	return domain.ContentHash(doc.URL, doc.RawText)
}

// URLKey is the TTL key for a feed URL.
func URLKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return urlKeyPrefix + hex.EncodeToString(sum[:])
}

// IsDuplicate reports whether doc's hash is already in the seen set.
// It never writes.
func (g *Gate) IsDuplicate(ctx context.Context, doc *domain.RawDocument) (bool, error) {
	hash := ContentHash(doc)
	seen, err := g.store.IsMember(ctx, SeenHashesKey, hash)
	if err != nil {
		return false, fmt.Errorf("check content hash: %w", err)
	}
	if seen {
		g.logger.Debug("Duplicate document skipped",
			infralogger.String("doc_hash", hash),
			infralogger.String("url", doc.URL),
		)
	}
	return seen, nil
}

// MarkSeen records doc's hash. Call it only after the document was queued.
func (g *Gate) MarkSeen(ctx context.Context, doc *domain.RawDocument) error {
	if err := g.store.AddMember(ctx, SeenHashesKey, ContentHash(doc)); err != nil {
		return fmt.Errorf("mark content hash: %w", err)
	}
	return nil
}

// URLRecentlyFetched reports whether url was marked within its window.
// A non-positive window never suppresses a fetch.
func (g *Gate) URLRecentlyFetched(ctx context.Context, url string, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, nil
	}
	ok, err := g.store.Exists(ctx, URLKey(url))
	if err != nil {
		return false, fmt.Errorf("check feed url: %w", err)
	}
	return ok, nil
}

// MarkURLFetched starts url's window. A non-positive window is a no-op.
func (g *Gate) MarkURLFetched(ctx context.Context, url string, window time.Duration) error {
	if window <= 0 {
		return nil
	}
	if err := g.store.SetWithTTL(ctx, URLKey(url), window); err != nil {
		return fmt.Errorf("mark feed url: %w", err)
	}
	return nil
}
