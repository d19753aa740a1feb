package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coocood/freecache"

	"github.com/claude/freecoach/internal/models"
)

const (
	megabyte = 1024 * 1024

	// DefaultCacheSizeMB and DefaultCacheTTL apply when the config leaves
	// them unset.
	DefaultCacheSizeMB = 16
	DefaultCacheTTL    = 5 * time.Minute

	studentListKey = 0
)

// Cache is a caller-owned read-through cache in front of a DataSource.
// Entries expire after the TTL, and Invalidate must be called after any
// write to a student's records so the next read goes to the source.
//
// Invalidation bumps a per-student generation that is part of every key,
// so stale entries become unreachable at once and age out of freecache.
type Cache struct {
	src   DataSource
	cache *freecache.Cache
	ttl   int
	log   *slog.Logger

	mu     sync.Mutex
	global uint64
	gens   map[int64]uint64
}

// Compile-time check: Cache satisfies DataSource and PaymentLister.
var (
	_ DataSource    = (*Cache)(nil)
	_ PaymentLister = (*Cache)(nil)
)

// NewCache wraps src. sizeMB and ttl fall back to the defaults when <= 0.
func NewCache(src DataSource, sizeMB int, ttl time.Duration, log *slog.Logger) *Cache {
	if sizeMB <= 0 {
		sizeMB = DefaultCacheSizeMB
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = slog.Default()
	}
	secs := int(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	return &Cache{
		src:   src,
		cache: freecache.NewCache(sizeMB * megabyte),
		ttl:   secs,
		log:   log,
		gens:  make(map[int64]uint64),
	}
}

// Invalidate drops everything cached for one student, and the student
// list, which nests each student's plans and payments.
func (c *Cache) Invalidate(studentID int64) {
	c.mu.Lock()
	c.gens[studentID]++
	c.gens[studentListKey]++
	c.mu.Unlock()
}

// InvalidateAll drops every entry, including the student list.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.global++
	clear(c.gens)
	c.mu.Unlock()
	c.cache.Clear()
}

// HitCount and MissCount expose the underlying lookup counters.
func (c *Cache) HitCount() int64  { return c.cache.HitCount() }
func (c *Cache) MissCount() int64 { return c.cache.MissCount() }

// EntryCount is the number of live entries.
func (c *Cache) EntryCount() int64 { return c.cache.EntryCount() }

func (c *Cache) key(studentID int64, kind string, extra string) []byte {
	c.mu.Lock()
	g, s := c.global, c.gens[studentID]
	c.mu.Unlock()
	return fmt.Appendf(nil, "%d.%d::%s::%d::%s", g, s, kind, studentID, extra)
}

func (c *Cache) lookup(key []byte, out any) bool {
	b, err := c.cache.Get(key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		c.log.Warn("dropping unreadable cache entry", "key", string(key), "error", err)
		c.cache.Del(key)
		return false
	}
	return true
}

func (c *Cache) store(key []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("encoding cache entry", "key", string(key), "error", err)
		return
	}
	if err := c.cache.Set(key, b, c.ttl); err != nil {
		c.log.Debug("cache set failed", "key", string(key), "error", err)
	}
}

func (c *Cache) ListStudents(ctx context.Context) ([]models.Student, error) {
	key := c.key(studentListKey, "students", "")
	var out []models.Student
	if c.lookup(key, &out) {
		return out, nil
	}
	out, err := c.src.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	c.store(key, out)
	return out, nil
}

func (c *Cache) GetStudent(ctx context.Context, studentID int64) (*models.Student, error) {
	key := c.key(studentID, "student", "")
	var st models.Student
	if c.lookup(key, &st) {
		return &st, nil
	}
	out, err := c.src.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	c.store(key, out)
	return out, nil
}

func (c *Cache) ListPlans(ctx context.Context, studentID int64) ([]models.WorkoutPlan, error) {
	key := c.key(studentID, "plans", "")
	var out []models.WorkoutPlan
	if c.lookup(key, &out) {
		return out, nil
	}
	out, err := c.src.ListPlans(ctx, studentID)
	if err != nil {
		return nil, err
	}
	c.store(key, out)
	return out, nil
}

func (c *Cache) ListSessions(ctx context.Context, studentID int64, from, to time.Time) ([]models.Session, error) {
	key := c.key(studentID, "sessions", rangeKey(from, to))
	var out []models.Session
	if c.lookup(key, &out) {
		return out, nil
	}
	out, err := c.src.ListSessions(ctx, studentID, from, to)
	if err != nil {
		return nil, err
	}
	c.store(key, out)
	return out, nil
}

func (c *Cache) ListPayments(ctx context.Context, studentID int64) ([]models.Payment, error) {
	key := c.key(studentID, "payments", "")
	var out []models.Payment
	if c.lookup(key, &out) {
		return out, nil
	}
	out, err := c.src.ListPayments(ctx, studentID)
	if err != nil {
		return nil, err
	}
	c.store(key, out)
	return out, nil
}

// ListAllPayments forwards to the wrapped source when it is a
// PaymentLister and returns errors.ErrUnsupported otherwise. The result is
// cached with the student list, so any invalidation drops it.
func (c *Cache) ListAllPayments(ctx context.Context) ([]models.Payment, error) {
	pl, ok := c.src.(PaymentLister)
	if !ok {
		return nil, fmt.Errorf("listing all payments: %w", errors.ErrUnsupported)
	}
	key := c.key(studentListKey, "all-payments", "")
	var out []models.Payment
	if c.lookup(key, &out) {
		return out, nil
	}
	out, err := pl.ListAllPayments(ctx)
	if err != nil {
		return nil, err
	}
	c.store(key, out)
	return out, nil
}

func rangeKey(from, to time.Time) string {
	return fmt.Sprintf("%d-%d", unixOrZero(from), unixOrZero(to))
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
