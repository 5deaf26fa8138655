// Package sources fetches per-layer GeoJSON payloads from the dashboard's
// backend services, with a disk-backed response cache so restarting the
// viewer doesn't re-download every municipal extract.
package sources

import (
	"log"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
)

// Cache stores raw layer payloads in badger, zstd-compressed. Entries carry
// a TTL so stale extracts get refetched instead of served forever.
type Cache struct {
	db  *badger.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
	ttl time.Duration
}

func OpenCache(path string, ttl time.Duration) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	// Decrease logging verbosity
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, err
	}

	return &Cache{db: db, enc: enc, dec: dec, ttl: ttl}, nil
}

func (c *Cache) Close() error {
	_ = c.enc.Close()
	c.dec.Close()
	return c.db.Close()
}

// Get returns the cached payload for a layer, or false on a miss. Expired
// entries count as misses.
func (c *Cache) Get(layer string) ([]byte, bool) {
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(layer))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := c.dec.DecodeAll(val, nil)
			if err != nil {
				return err
			}
			out = decoded
			return nil
		})
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			log.Printf("Cache read for layer %q failed: %v", layer, err)
		}
		return nil, false
	}
	return out, true
}

// Set stores a payload under the layer key with the cache's TTL.
func (c *Cache) Set(layer string, payload []byte) error {
	compressed := c.enc.EncodeAll(payload, nil)
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(layer), compressed)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
}
