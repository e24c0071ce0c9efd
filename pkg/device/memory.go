package device

import (
	"fmt"

	. "github.com/weberc2/blockfs/pkg/types"
)

// Memory is an in-memory block device for tests.
type Memory struct {
	data []byte
}

func NewMemory(blocks uint32) *Memory {
	return &Memory{data: make([]byte, int(blocks)*BlockSize)}
}

func (d *Memory) Blocks() uint32 { return uint32(len(d.data) / BlockSize) }

func (d *Memory) ReadBlock(id BlockID, buf []byte) error {
	start := int(id) * BlockSize
	if start+BlockSize > len(d.data) {
		return fmt.Errorf("reading block `%d`: %w", id, OutOfRangeErr)
	}
	copy(buf[:BlockSize], d.data[start:start+BlockSize])
	return nil
}

func (d *Memory) WriteBlock(id BlockID, buf []byte) error {
	start := int(id) * BlockSize
	if start+BlockSize > len(d.data) {
		return fmt.Errorf("writing block `%d`: %w", id, OutOfRangeErr)
	}
	copy(d.data[start:start+BlockSize], buf[:BlockSize])
	return nil
}
