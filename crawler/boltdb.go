package crawler

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2/storage"
	bolt "go.etcd.io/bbolt"
)

var (
	visitedBucket = []byte("visited")
	cookiesBucket = []byte("cookies")
	pagesBucket   = []byte("pages")
)

// CrawlLedger persists crawl state in a bbolt file: colly's visited set and
// cookies, plus a record of every page that made it into the store.
type CrawlLedger struct {
	db *bolt.DB
}

// LedgerEntry describes one ingested page.
type LedgerEntry struct {
	URL        string    `json:"url"`
	Chunks     int       `json:"chunks"`
	IngestedAt time.Time `json:"ingested_at"`
}

func OpenLedger(path string) (*CrawlLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for ledger: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{visitedBucket, cookiesBucket, pagesBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &CrawlLedger{db: db}, nil
}

// Init implements storage.Storage. The database is opened by OpenLedger.
func (l *CrawlLedger) Init() error {
	if l.db == nil {
		return fmt.Errorf("ledger is not open")
	}
	return nil
}

func (l *CrawlLedger) Visited(requestID uint64) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(visitedBucket).Put(requestKey(requestID), []byte("1"))
	})
}

func (l *CrawlLedger) IsVisited(requestID uint64) (bool, error) {
	var visited bool
	err := l.db.View(func(tx *bolt.Tx) error {
		visited = tx.Bucket(visitedBucket).Get(requestKey(requestID)) != nil
		return nil
	})
	return visited, err
}

func (l *CrawlLedger) Cookies(u *url.URL) string {
	var cookies string
	l.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(cookiesBucket).Get([]byte(u.Host)); v != nil {
			cookies = string(v)
		}
		return nil
	})
	return cookies
}

func (l *CrawlLedger) SetCookies(u *url.URL, cookies string) {
	l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cookiesBucket).Put([]byte(u.Host), []byte(cookies))
	})
}

// MarkIngested records that url was chunked and stored.
func (l *CrawlLedger) MarkIngested(pageURL string, chunks int) error {
	entry, err := json.Marshal(LedgerEntry{
		URL:        pageURL,
		Chunks:     chunks,
		IngestedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(pagesBucket).Put([]byte(pageURL), entry)
	})
}

func (l *CrawlLedger) Ingested(pageURL string) (*LedgerEntry, bool, error) {
	var entry *LedgerEntry
	err := l.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(pagesBucket).Get([]byte(pageURL))
		if v == nil {
			return nil
		}
		entry = &LedgerEntry{}
		return json.Unmarshal(v, entry)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read ledger entry: %w", err)
	}
	return entry, entry != nil, nil
}

// Clear forgets everything, including ingested pages.
func (l *CrawlLedger) Clear() error {
	return l.resetBuckets(visitedBucket, cookiesBucket, pagesBucket)
}

// ResetVisited forgets colly's visited set but keeps cookies and ingested
// pages. Call it at the start of a run so pages that were fetched but failed
// to ingest last time are fetched again.
func (l *CrawlLedger) ResetVisited() error {
	return l.resetBuckets(visitedBucket)
}

func (l *CrawlLedger) resetBuckets(buckets ...[]byte) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if err := tx.DeleteBucket(b); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(b); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *CrawlLedger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

func requestKey(id uint64) []byte {
	return []byte(strconv.FormatUint(id, 10))
}

var _ storage.Storage = (*CrawlLedger)(nil)
