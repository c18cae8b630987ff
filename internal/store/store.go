package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/headliner-hq/headliner/internal/domain"
)

var articlesBucket = []byte("articles")

// ErrNotFound is returned by Get when no record exists for the key.
var ErrNotFound = errors.New("article record not found")

// DocumentKey derives the store's primary key from a source URL. It is a
// pure function of the URL, so repeated ingestion of the same URL always
// resolves to the same record.
func DocumentKey(url string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(sum[:])
}

// Presence describes what the store knows about a URL.
type Presence struct {
	Present  bool
	Complete bool
}

// Store persists article records in an embedded bbolt database.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and ensures the
// articles bucket exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is empty")
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, bErr := tx.CreateBucketIfNotExists(articlesBucket)
		return bErr
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create articles bucket: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Exists reports whether a record for the URL is already persisted and
// whether it is complete. An incomplete record (empty description) is
// eligible for reprocessing on the next run.
func (s *Store) Exists(ctx context.Context, url string) (Presence, error) {
	if err := ctx.Err(); err != nil {
		return Presence{}, err
	}

	rec, err := s.Get(ctx, url)
	if errors.Is(err, ErrNotFound) {
		return Presence{}, nil
	}
	if err != nil {
		return Presence{}, err
	}
	return Presence{Present: true, Complete: rec.Complete()}, nil
}

// Get returns the record persisted for the URL, or ErrNotFound.
func (s *Store) Get(ctx context.Context, url string) (domain.ArticleRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ArticleRecord{}, err
	}

	var rec domain.ArticleRecord
	key := []byte(DocumentKey(url))

	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(articlesBucket).Get(key)
		if raw == nil {
			return ErrNotFound
		}
		if uErr := json.Unmarshal(raw, &rec); uErr != nil {
			return fmt.Errorf("decode record: %w", uErr)
		}
		return nil
	})
	if err != nil {
		return domain.ArticleRecord{}, err
	}
	return rec, nil
}

// Upsert writes the record under its document key with merge semantics:
// non-empty incoming fields overwrite, everything else keeps the stored
// value. The merge runs inside a single write transaction, so concurrent
// writers targeting the same key interleave safely.
func (s *Store) Upsert(ctx context.Context, rec domain.ArticleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(rec.URL) == "" {
		return errors.New("record url is empty")
	}

	rec.DocumentKey = DocumentKey(rec.URL)
	key := []byte(rec.DocumentKey)

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(articlesBucket)

		merged := rec
		if raw := bucket.Get(key); raw != nil {
			var existing domain.ArticleRecord
			if uErr := json.Unmarshal(raw, &existing); uErr != nil {
				return fmt.Errorf("decode existing record: %w", uErr)
			}
			merged = mergeRecords(existing, rec)
		}

		now := s.now().UTC()
		if merged.CreatedAt.IsZero() {
			merged.CreatedAt = now
		}
		merged.UpdatedAt = now

		payload, mErr := json.Marshal(merged)
		if mErr != nil {
			return fmt.Errorf("encode record: %w", mErr)
		}
		return bucket.Put(key, payload)
	})
}

// mergeRecords overlays non-empty fields of incoming onto existing.
func mergeRecords(existing, incoming domain.ArticleRecord) domain.ArticleRecord {
	out := existing
	if incoming.Title != "" {
		out.Title = incoming.Title
	}
	if incoming.Description != "" {
		out.Description = incoming.Description
	}
	if incoming.ImageURL != "" {
		out.ImageURL = incoming.ImageURL
	}
	if incoming.Category != "" {
		out.Category = incoming.Category
	}
	if incoming.Source != "" {
		out.Source = incoming.Source
	}
	if incoming.ScrapedText != "" {
		out.ScrapedText = incoming.ScrapedText
	}
	if !incoming.PublishedAt.IsZero() {
		out.PublishedAt = incoming.PublishedAt
	}
	return out
}
