// Package respcache persists accepted search responses in a Pebble
// key/value store so coordinators can be re-seeded without refetching.
//
// Entries are keyed by coordinator name and a hash of the canonical JSON
// encoding of the call parameters, and carry an optional TTL. Writes go
// through a single writer goroutine; reads hit Pebble directly.
package respcache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	jsoniter "github.com/json-iterator/go"
	"github.com/zeebo/xxh3"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	entryVersion = 1
	entryPrefix  = "r|"

	// value layout: 1 byte version, 8 bytes expiry unixnano (0 = none), payload
	entryHeaderSize = 9
)

var (
	entryLower = []byte(entryPrefix)
	entryUpper = []byte{entryPrefix[0], entryPrefix[1] + 1}
)

var errCacheClosed = errors.New("respcache: cache is closed")

const (
	defaultCacheSizeBytes  = int64(8 << 20)
	defaultBloomFilterBits = 10
	defaultWriteQueueDepth = 64
)

// Options controls Pebble tuning and entry lifetime. Zero fields are
// replaced with defaults; a zero TTL keeps entries forever.
type Options struct {
	TTL                   time.Duration
	CacheSizeBytes        int64
	BloomFilterBitsPerKey int
	WriteQueueDepth       int
}

func sanitizeOptions(opts Options) Options {
	if opts.CacheSizeBytes <= 0 {
		opts.CacheSizeBytes = defaultCacheSizeBytes
	}
	if opts.BloomFilterBitsPerKey <= 0 {
		opts.BloomFilterBitsPerKey = defaultBloomFilterBits
	}
	if opts.WriteQueueDepth <= 0 {
		opts.WriteQueueDepth = defaultWriteQueueDepth
	}
	return opts
}

type writeKind int

const (
	writePut writeKind = iota
	writeDelete
	writePurge
)

type writeRequest struct {
	kind  writeKind
	key   []byte
	value []byte
	resp  chan writeResult
}

type writeResult struct {
	removed int
	err     error
}

// Cache is a persistent response cache backed by Pebble
type Cache struct {
	db     *pebble.DB
	cache  *pebble.Cache
	ttl    time.Duration
	writes chan writeRequest
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// Open opens or creates the cache at path
func Open(path string, opts Options) (*Cache, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("respcache: path is empty")
	}
	opts = sanitizeOptions(opts)

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("respcache: ensure directory: %w", err)
	}

	pebbleOpts := &pebble.Options{
		Cache: pebble.NewCache(opts.CacheSizeBytes),
	}
	filter := bloom.FilterPolicy(opts.BloomFilterBitsPerKey)
	pebbleOpts.Levels = make([]pebble.LevelOptions, 7)
	for i := range pebbleOpts.Levels {
		pebbleOpts.Levels[i] = pebble.LevelOptions{
			FilterPolicy: filter,
			FilterType:   pebble.TableFilter,
		}
	}

	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		pebbleOpts.Cache.Unref()
		return nil, fmt.Errorf("respcache: open: %w", err)
	}

	c := &Cache{
		db:     db,
		cache:  pebbleOpts.Cache,
		ttl:    opts.TTL,
		writes: make(chan writeRequest, opts.WriteQueueDepth),
		done:   make(chan struct{}),
	}
	go c.writeLoop()
	return c, nil
}

// Close drains the writer and releases Pebble resources
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	if c.closeWriter() {
		<-c.done
	}
	err := c.db.Close()
	if c.cache != nil {
		c.cache.Unref()
		c.cache = nil
	}
	return err
}

// Put stores the response for one operation and parameter set. The write is
// durable when Put returns.
func (c *Cache) Put(op string, params any, response any) error {
	if c == nil || c.db == nil {
		return errors.New("respcache: cache is not initialized")
	}

	key, err := entryKey(op, params)
	if err != nil {
		return err
	}
	payload, err := jsonAPI.Marshal(response)
	if err != nil {
		return fmt.Errorf("respcache: encode response: %w", err)
	}

	var expiresAt int64
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl).UnixNano()
	}

	value := make([]byte, entryHeaderSize+len(payload))
	value[0] = entryVersion
	binary.BigEndian.PutUint64(value[1:entryHeaderSize], uint64(expiresAt))
	copy(value[entryHeaderSize:], payload)

	resp := make(chan writeResult, 1)
	if err := c.enqueue(writeRequest{kind: writePut, key: key, value: value, resp: resp}); err != nil {
		return err
	}
	result := <-resp
	return result.err
}

// Get loads a cached response into out. It reports a miss for unknown or
// expired entries; expired entries are deleted in the background.
func (c *Cache) Get(op string, params any, out any) (bool, error) {
	if c == nil || c.db == nil {
		return false, errors.New("respcache: cache is not initialized")
	}

	key, err := entryKey(op, params)
	if err != nil {
		return false, err
	}

	value, closer, err := c.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("respcache: get: %w", err)
	}
	defer closer.Close()

	payload, expired, err := decodeEntry(value, time.Now())
	if err != nil {
		return false, err
	}
	if expired {
		// Lazy delete; a concurrent Close just drops it
		_ = c.enqueue(writeRequest{kind: writeDelete, key: key})
		return false, nil
	}

	if err := jsonAPI.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("respcache: decode response: %w", err)
	}
	return true, nil
}

// Purge removes all expired entries and reports how many were dropped
func (c *Cache) Purge() (int, error) {
	if c == nil || c.db == nil {
		return 0, errors.New("respcache: cache is not initialized")
	}
	resp := make(chan writeResult, 1)
	if err := c.enqueue(writeRequest{kind: writePurge, resp: resp}); err != nil {
		return 0, err
	}
	result := <-resp
	return result.removed, result.err
}

func (c *Cache) enqueue(req writeRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errCacheClosed
	}
	c.writes <- req
	return nil
}

func (c *Cache) closeWriter() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.writes)
	return true
}

func (c *Cache) writeLoop() {
	defer close(c.done)
	for req := range c.writes {
		result := writeResult{}
		switch req.kind {
		case writePut:
			result.err = c.db.Set(req.key, req.value, pebble.Sync)
		case writeDelete:
			result.err = c.db.Delete(req.key, pebble.NoSync)
		case writePurge:
			result.removed, result.err = c.applyPurge()
		default:
			result.err = fmt.Errorf("respcache: unknown write request")
		}
		if req.resp != nil {
			req.resp <- result
		}
	}
}

func (c *Cache) applyPurge() (int, error) {
	iter, err := c.db.NewIter(&pebble.IterOptions{
		LowerBound: entryLower,
		UpperBound: entryUpper,
	})
	if err != nil {
		return 0, fmt.Errorf("respcache: purge iterator: %w", err)
	}
	defer iter.Close()

	batch := c.db.NewBatch()
	defer batch.Close()

	now := time.Now()
	removed := 0
	for iter.First(); iter.Valid(); iter.Next() {
		_, expired, err := decodeEntry(iter.Value(), now)
		if err != nil || !expired {
			continue
		}
		if err := batch.Delete(iter.Key(), nil); err != nil {
			return removed, fmt.Errorf("respcache: purge delete: %w", err)
		}
		removed++
	}
	if err := iter.Error(); err != nil {
		return removed, fmt.Errorf("respcache: purge iterate: %w", err)
	}
	if removed > 0 {
		if err := batch.Commit(pebble.Sync); err != nil {
			return 0, fmt.Errorf("respcache: purge commit: %w", err)
		}
	}
	return removed, nil
}

// entryKey builds "r|{op}|{hash}" where the hash covers the canonical JSON
// encoding of params. ConfigCompatibleWithStandardLibrary sorts map keys, so
// equal parameters always hash alike.
func entryKey(op string, params any) ([]byte, error) {
	canonical, err := jsonAPI.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("respcache: encode params: %w", err)
	}
	sum := xxh3.Hash128(canonical).Bytes()

	key := make([]byte, 0, len(entryPrefix)+len(op)+1+len(sum))
	key = append(key, entryPrefix...)
	key = append(key, op...)
	key = append(key, '|')
	key = append(key, sum[:]...)
	return key, nil
}

func decodeEntry(value []byte, now time.Time) ([]byte, bool, error) {
	if len(value) < entryHeaderSize || value[0] != entryVersion {
		return nil, false, errors.New("respcache: invalid entry encoding")
	}
	expiresAt := int64(binary.BigEndian.Uint64(value[1:entryHeaderSize]))
	if expiresAt > 0 && now.UnixNano() >= expiresAt {
		return nil, true, nil
	}
	return value[entryHeaderSize:], false, nil
}
