package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// FeedStore is the durability port for the global recent-orders feed.
// Implementations persist the whole bounded, most-recent-first list.
type FeedStore interface {
	Load() ([]Record, error)
	Save(records []Record) error
}

// FileFeedStore persists the feed as a JSON array written wholesale to a
// single file. Adequate at this write volume for a single instance; not
// safe for concurrent multi-process deployment.
type FileFeedStore struct {
	path string
}

func NewFileFeedStore(path string) *FileFeedStore {
	return &FileFeedStore{path: path}
}

func (f *FileFeedStore) Load() ([]Record, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read orders feed %q: %w", f.path, err)
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parse orders feed %q: %w", f.path, err)
	}
	return records, nil
}

func (f *FileFeedStore) Save(records []Record) error {
	if len(records) > FeedLimit {
		records = records[:FeedLimit]
	}
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode orders feed: %w", err)
	}
	if err := os.WriteFile(f.path, raw, 0o644); err != nil {
		return fmt.Errorf("write orders feed %q: %w", f.path, err)
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
