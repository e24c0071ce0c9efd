package cache

import (
	"fmt"
	"sync"

	"github.com/weberc2/blockfs/pkg/device"
	. "github.com/weberc2/blockfs/pkg/types"
)

// Manager owns up to `limit` resident Blocks for a single device. Slots
// are kept in insertion order; when the pool is full the first slot no
// caller currently pins is written back (if modified) and replaced. A
// full pool with every slot pinned is a bug in the calling code and
// panics.
//
// Keying slots by block id alone is only sound because a Manager serves
// exactly one device.
type Manager struct {
	mutex  sync.Mutex
	device device.BlockDevice
	limit  int
	slots  []*slot
}

type slot struct {
	block *Block
	pins  int
}

func NewManager(dev device.BlockDevice, limit int) *Manager {
	if limit < 1 {
		panic("cache limit must be positive")
	}
	return &Manager{device: dev, limit: limit}
}

// Block pins the cached copy of the given block for the duration of f,
// loading it from the device on a miss. Calls nest: f may pin further
// blocks, as long as fewer than `limit` are pinned at once.
func (m *Manager) Block(id BlockID, f func(b *Block) error) error {
	s, err := m.acquire(id)
	if err != nil {
		return err
	}
	defer m.release(s)
	return f(s.block)
}

func (m *Manager) acquire(id BlockID) (*slot, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, s := range m.slots {
		if s.block.id == id {
			s.pins++
			return s, nil
		}
	}

	if len(m.slots) >= m.limit {
		if err := m.evict(); err != nil {
			return nil, fmt.Errorf("caching block `%d`: %w", id, err)
		}
	}

	b, err := newBlock(id, m.device)
	if err != nil {
		return nil, err
	}
	s := &slot{block: b, pins: 1}
	m.slots = append(m.slots, s)
	return s, nil
}

// evict scans insertion order for the first unpinned slot, writes it back
// if modified, and drops it. Called with the manager lock held.
func (m *Manager) evict() error {
	for i, s := range m.slots {
		if s.pins == 0 {
			if err := s.block.sync(); err != nil {
				return fmt.Errorf("evicting block `%d`: %w", s.block.id, err)
			}
			m.slots = append(m.slots[:i], m.slots[i+1:]...)
			return nil
		}
	}
	panic("block cache exhausted: every slot is pinned")
}

func (m *Manager) release(s *slot) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if s.pins < 1 {
		panic("releasing unpinned cache slot")
	}
	s.pins--
}

// SyncAll writes back every modified resident block and clears the
// flags. Idempotent: a second call with no intervening modifications
// performs no device writes.
func (m *Manager) SyncAll() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, s := range m.slots {
		if err := s.block.sync(); err != nil {
			return fmt.Errorf("syncing cache: %w", err)
		}
	}
	return nil
}

// Close flushes the cache. The manager must not be used afterwards.
func (m *Manager) Close() error { return m.SyncAll() }
