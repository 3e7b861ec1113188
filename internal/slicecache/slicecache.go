// Package slicecache is the process-wide, in-memory slice result
// cache: an LRU keyed by a canonical request fingerprint, with TTL
// expiry and hit/miss/eviction stats — the teacher's tiered
// query/view/negative cache (internal/storage.Cache) collapsed to one
// in-process tier since the core owns no persistent state. Entries
// may optionally be stored zstd-compressed.
package slicecache

import (
	"container/list"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"slicecore/internal/model"
)

// FingerprintInput is every field the spec's canonical fingerprint
// draws from (§4.G): repoId, versionId, sorted entrySymbols, taskText,
// stackTrace, failingTestPath, sorted editedFiles, budget, cardDetail,
// minConfidence, and a hash of knownCardEtags.
type FingerprintInput struct {
	RepoID          string
	VersionID       string
	EntrySymbols    []string
	TaskText        string
	StackTrace      []string
	FailingTestPath string
	EditedFiles     []string
	Budget          model.Budget
	CardDetail      model.DetailLevel
	MinConfidence   float64
	KnownCardEtags  map[string]string
}

// Key canonicalizes fp into a stable cache key: arrays sorted, absent
// vs empty normalized, map contributing only its canonical hash.
func Key(fp FingerprintInput) string {
	var b strings.Builder
	b.WriteString(fp.RepoID)
	b.WriteByte('|')
	b.WriteString(fp.VersionID)
	b.WriteByte('|')
	writeSorted(&b, fp.EntrySymbols)
	b.WriteByte('|')
	b.WriteString(fp.TaskText)
	b.WriteByte('|')
	writeSorted(&b, fp.StackTrace)
	b.WriteByte('|')
	b.WriteString(fp.FailingTestPath)
	b.WriteByte('|')
	writeSorted(&b, fp.EditedFiles)
	b.WriteByte('|')
	b.WriteString(string(fp.CardDetail))
	b.WriteByte('|')
	writeFloat(&b, fp.MinConfidence)
	b.WriteByte('|')
	writeInt(&b, fp.Budget.MaxCards)
	b.WriteByte('|')
	writeInt(&b, fp.Budget.MaxEstimatedTokens)
	b.WriteByte('|')
	b.WriteString(hashKnownEtags(fp.KnownCardEtags))
	return b.String()
}

func writeSorted(b *strings.Builder, ss []string) {
	sorted := model.SortedUniqueStrings(ss)
	b.WriteString(strings.Join(sorted, ","))
}

func writeFloat(b *strings.Builder, f float64) {
	b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
}

func writeInt(b *strings.Builder, n int) {
	b.WriteString(strconv.Itoa(n))
}

func hashKnownEtags(known map[string]string) string {
	if len(known) == 0 {
		return ""
	}
	keys := make([]string, 0, len(known))
	for k := range known {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(known[k])
		b.WriteByte(';')
	}
	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// Stats reports cumulative cache counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	CurrentSize int
}

// HitRate is hits / (hits + misses), or 0 with no lookups yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry struct {
	key        string
	payload    []byte
	compressed bool
	expiresAt  time.Time
}

// Cache is a single-tier, size-bounded, TTL-expiring LRU of
// *model.GraphSlice values held as encoded payloads. Each Get decodes
// a fresh copy; no slice value is shared between the cache and its
// callers.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	compress   bool

	ll    *list.List
	items map[string]*list.Element

	hits, misses, evictions int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New builds a Cache bounded at maxEntries with the given TTL.
// Compress, if true, stores entries zstd-compressed.
func New(maxEntries int, ttl time.Duration, compress bool) *Cache {
	c := &Cache{
		maxEntries: maxEntries,
		ttl:        ttl,
		compress:   compress,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
	}
	if compress {
		enc, _ := zstd.NewWriter(nil)
		dec, _ := zstd.NewReader(nil)
		c.encoder = enc
		c.decoder = dec
	}
	return c
}

// Get returns the cached slice for key, if present and unexpired.
func (c *Cache) Get(key string) (*model.GraphSlice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		c.ll.Remove(el)
		delete(c.items, key)
		c.misses++
		return nil, false
	}

	c.ll.MoveToFront(el)
	c.hits++

	slice, err := c.decode(e)
	if err != nil {
		return nil, false
	}
	return slice, true
}

// Set stores slice under key, evicting the least-recently-used entry
// if the cache is at capacity.
func (c *Cache) Set(key string, slice *model.GraphSlice) error {
	payload, compressed, err := c.encode(slice)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*entry).payload = payload
		el.Value.(*entry).compressed = compressed
		el.Value.(*entry).expiresAt = time.Now().Add(c.ttl)
		return nil
	}

	e := &entry{key: key, payload: payload, compressed: compressed, expiresAt: time.Now().Add(c.ttl)}
	el := c.ll.PushFront(e)
	c.items[key] = el

	if c.maxEntries > 0 && c.ll.Len() > c.maxEntries {
		c.evictOldest()
	}
	return nil
}

func (c *Cache) evictOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).key)
	c.evictions++
}

// Stats returns a snapshot of cumulative counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		CurrentSize: c.ll.Len(),
	}
}

func (c *Cache) encode(slice *model.GraphSlice) ([]byte, bool, error) {
	data, err := json.Marshal(slice)
	if err != nil {
		return nil, false, err
	}
	if !c.compress {
		return data, false, nil
	}
	return c.encoder.EncodeAll(data, nil), true, nil
}

func (c *Cache) decode(e *entry) (*model.GraphSlice, error) {
	data := e.payload
	if e.compressed {
		decoded, err := c.decoder.DecodeAll(e.payload, nil)
		if err != nil {
			return nil, err
		}
		data = decoded
	}
	var slice model.GraphSlice
	if err := json.Unmarshal(data, &slice); err != nil {
		return nil, err
	}
	return &slice, nil
}
