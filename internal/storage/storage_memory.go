package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"imgpub/internal/domain/models"
)

// StorageMemory keeps links and gateway settings in maps.
//
// Inserts made inside a transaction take the code immediately, so a second
// transaction inserting the same code sees a conflict just as it would with a
// unique index. Rollback releases the codes and restores rewritten targets.
type StorageMemory struct {
	links   map[string]models.ShortLink
	configs map[string]models.GatewayConfig
	mu      sync.Mutex

	// emit receives every committed change; it is called with mu held.
	emit func(models.JournalEntry)
}

// NewStorageMemory creates an empty StorageMemory.
func NewStorageMemory() *StorageMemory {
	return &StorageMemory{
		links:   make(map[string]models.ShortLink),
		configs: make(map[string]models.GatewayConfig),
	}
}

func (s *StorageMemory) record(e models.JournalEntry) {
	if s.emit != nil {
		s.emit(e)
	}
}

// BeginTx starts a transaction.
func (s *StorageMemory) BeginTx(ctx context.Context) (LinkTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryTx{s: s, oldTargets: make(map[string]string)}, nil
}

// FindLink returns the link stored under code.
func (s *StorageMemory) FindLink(_ context.Context, code string) (models.ShortLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[code]
	if !ok {
		return models.ShortLink{}, ErrNotFound
	}
	return link, nil
}

// ListLinksByOwner returns the owner's links, newest first.
func (s *StorageMemory) ListLinksByOwner(_ context.Context, ownerID string, limit, offset int) ([]models.ShortLink, int, error) {
	s.mu.Lock()
	owned := make([]models.ShortLink, 0)
	for _, link := range s.links {
		if link.OwnerID == ownerID {
			owned = append(owned, link)
		}
	}
	s.mu.Unlock()

	sortNewestFirst(owned)
	total := len(owned)
	if offset >= total {
		return []models.ShortLink{}, total, nil
	}
	owned = owned[offset:]
	if limit > 0 && limit < len(owned) {
		owned = owned[:limit]
	}
	return owned, total, nil
}

// DeleteLink removes the link; an empty ownerID matches any owner.
func (s *StorageMemory) DeleteLink(_ context.Context, code, ownerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[code]
	if !ok || (ownerID != "" && link.OwnerID != ownerID) {
		return false, nil
	}
	delete(s.links, code)
	s.record(models.JournalEntry{Op: "delete", Link: link})
	return true, nil
}

// AllLinks returns every stored link ordered by code.
func (s *StorageMemory) AllLinks(_ context.Context) ([]models.ShortLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	links := make([]models.ShortLink, 0, len(s.links))
	for _, link := range s.links {
		links = append(links, link)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].Code < links[j].Code })
	return links, nil
}

// DeleteAllLinks removes every link and reports how many there were.
func (s *StorageMemory) DeleteAllLinks(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.links))
	s.links = make(map[string]models.ShortLink)
	s.record(models.JournalEntry{Op: "clear"})
	return n, nil
}

// FindConfig returns the setting stored under key.
func (s *StorageMemory) FindConfig(_ context.Context, key string) (models.GatewayConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[key]
	if !ok {
		return models.GatewayConfig{}, ErrNotFound
	}
	return cfg, nil
}

// UpsertConfig stores value under key.
func (s *StorageMemory) UpsertConfig(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := models.GatewayConfig{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	s.configs[key] = cfg
	s.record(models.JournalEntry{Op: "config", Config: &cfg})
	return nil
}

// Ping always succeeds.
func (s *StorageMemory) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *StorageMemory) Close() error {
	return nil
}

// apply replays a journal entry without recording it.
func (s *StorageMemory) apply(e models.JournalEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Op {
	case "put", "target":
		s.links[e.Link.Code] = e.Link
	case "delete":
		delete(s.links, e.Link.Code)
	case "clear":
		s.links = make(map[string]models.ShortLink)
	case "config":
		if e.Config != nil {
			s.configs[e.Config.Key] = *e.Config
		}
	}
}

// snapshot returns the entries that rebuild the current state.
func (s *StorageMemory) snapshot() []models.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]models.JournalEntry, 0, len(s.links)+len(s.configs))
	for _, cfg := range s.configs {
		cfg := cfg
		entries = append(entries, models.JournalEntry{Op: "config", Config: &cfg})
	}
	for _, link := range s.links {
		entries = append(entries, models.JournalEntry{Op: "put", Link: link})
	}
	return entries
}

func sortNewestFirst(links []models.ShortLink) {
	sort.Slice(links, func(i, j int) bool {
		if !links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].CreatedAt.After(links[j].CreatedAt)
		}
		return links[i].Code < links[j].Code
	})
}

type memoryTx struct {
	s          *StorageMemory
	inserted   []string
	oldTargets map[string]string
	entries    []models.JournalEntry
	done       bool
}

func (tx *memoryTx) CodeExists(_ context.Context, code string) (bool, error) {
	if tx.done {
		return false, ErrTxDone
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	_, ok := tx.s.links[code]
	return ok, nil
}

func (tx *memoryTx) InsertLink(_ context.Context, link models.ShortLink) (bool, error) {
	if tx.done {
		return false, ErrTxDone
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	if _, ok := tx.s.links[link.Code]; ok {
		return false, nil
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	tx.s.links[link.Code] = link
	tx.inserted = append(tx.inserted, link.Code)
	tx.entries = append(tx.entries, models.JournalEntry{Op: "put", Link: link})
	return true, nil
}

func (tx *memoryTx) LinksWithTargetContaining(_ context.Context, substr string) ([]models.ShortLink, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	substr = strings.ToLower(substr)
	var links []models.ShortLink
	for _, link := range tx.s.links {
		if strings.Contains(strings.ToLower(link.Target), substr) {
			links = append(links, link)
		}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].Code < links[j].Code })
	return links, nil
}

func (tx *memoryTx) UpdateTarget(_ context.Context, code, target string) error {
	if tx.done {
		return ErrTxDone
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	link, ok := tx.s.links[code]
	if !ok {
		return ErrNotFound
	}
	if _, seen := tx.oldTargets[code]; !seen {
		tx.oldTargets[code] = link.Target
	}
	link.Target = target
	tx.s.links[code] = link
	tx.entries = append(tx.entries, models.JournalEntry{Op: "target", Link: link})
	return nil
}

func (tx *memoryTx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true

	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	for _, e := range tx.entries {
		tx.s.record(e)
	}
	return nil
}

func (tx *memoryTx) Rollback() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true

	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	for _, code := range tx.inserted {
		delete(tx.s.links, code)
	}
	for code, target := range tx.oldTargets {
		if link, ok := tx.s.links[code]; ok {
			link.Target = target
			tx.s.links[code] = link
		}
	}
	return nil
}
