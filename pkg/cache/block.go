package cache

import (
	"fmt"
	"sync"

	"github.com/weberc2/blockfs/pkg/device"
	. "github.com/weberc2/blockfs/pkg/types"
)

// Block is one resident cache slot: a block's in-memory buffer plus a
// modified flag that defers the writeback.
type Block struct {
	mutex    sync.Mutex
	id       BlockID
	device   device.BlockDevice
	data     [BlockSize]byte
	modified bool
}

func newBlock(id BlockID, dev device.BlockDevice) (*Block, error) {
	b := &Block{id: id, device: dev}
	if err := dev.ReadBlock(id, b.data[:]); err != nil {
		return nil, fmt.Errorf("loading block `%d` into cache: %w", id, err)
	}
	return b, nil
}

func (b *Block) ID() BlockID { return b.id }

// Read invokes f on the byte window [offset, offset+size) of the cached
// buffer with the slot locked. The window must not escape f.
func (b *Block) Read(offset, size int, f func(p []byte)) {
	b.checkBounds(offset, size)
	b.mutex.Lock()
	defer b.mutex.Unlock()
	f(b.data[offset : offset+size])
}

// Modify is Read's mutating form: it marks the slot modified so the next
// sync writes it back.
func (b *Block) Modify(offset, size int, f func(p []byte)) {
	b.checkBounds(offset, size)
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.modified = true
	f(b.data[offset : offset+size])
}

func (b *Block) checkBounds(offset, size int) {
	if offset < 0 || size < 0 || offset+size > BlockSize {
		panic(fmt.Sprintf(
			"record window [%d, %d) escapes block `%d`",
			offset,
			offset+size,
			b.id,
		))
	}
}

func (b *Block) sync() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if !b.modified {
		return nil
	}
	if err := b.device.WriteBlock(b.id, b.data[:]); err != nil {
		return fmt.Errorf("writing back block `%d`: %w", b.id, err)
	}
	b.modified = false
	return nil
}
