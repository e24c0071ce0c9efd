package inode

import (
	"fmt"

	"github.com/weberc2/blockfs/pkg/cache"
	. "github.com/weberc2/blockfs/pkg/types"
)

// ReadAt copies up to len(buf) content bytes starting at offset into buf,
// clamped to the inode's size, and returns the count. Reading at or past
// the end returns 0.
func ReadAt(
	cm *cache.Manager,
	di *DiskInode,
	offset int,
	buf []byte,
) (int, error) {
	start := offset
	end := start + len(buf)
	if end > int(di.Size) {
		end = int(di.Size)
	}
	if start >= end {
		return 0, nil
	}

	innerBlock := uint32(start / BlockSize)
	read := 0
	for {
		blockEnd := (start/BlockSize + 1) * BlockSize
		if blockEnd > end {
			blockEnd = end
		}
		n := blockEnd - start

		id, err := BlockIDAt(cm, di, innerBlock)
		if err != nil {
			return read, fmt.Errorf(
				"reading `%d` bytes at offset `%d`: %w",
				len(buf),
				offset,
				err,
			)
		}
		err = cm.Block(id, func(b *cache.Block) error {
			b.Read(start%BlockSize, n, func(p []byte) {
				copy(buf[read:read+n], p)
			})
			return nil
		})
		if err != nil {
			return read, fmt.Errorf(
				"reading `%d` bytes at offset `%d`: %w",
				len(buf),
				offset,
				err,
			)
		}

		read += n
		if blockEnd == end {
			return read, nil
		}
		innerBlock++
		start = blockEnd
	}
}

// WriteAt copies buf into the inode's content starting at offset and
// returns the count, clamped to the inode's size: the caller must grow
// the inode first so that offset+len(buf) fits. Writing from beyond the
// size is a caller bug and panics.
func WriteAt(
	cm *cache.Manager,
	di *DiskInode,
	offset int,
	buf []byte,
) (int, error) {
	start := offset
	end := start + len(buf)
	if end > int(di.Size) {
		end = int(di.Size)
	}
	if start > end {
		panic(fmt.Sprintf(
			"writing at offset `%d` beyond inode size `%d`",
			offset,
			di.Size,
		))
	}
	if start == end {
		return 0, nil
	}

	innerBlock := uint32(start / BlockSize)
	written := 0
	for {
		blockEnd := (start/BlockSize + 1) * BlockSize
		if blockEnd > end {
			blockEnd = end
		}
		n := blockEnd - start

		id, err := BlockIDAt(cm, di, innerBlock)
		if err != nil {
			return written, fmt.Errorf(
				"writing `%d` bytes at offset `%d`: %w",
				len(buf),
				offset,
				err,
			)
		}
		err = cm.Block(id, func(b *cache.Block) error {
			b.Modify(start%BlockSize, n, func(p []byte) {
				copy(p, buf[written:written+n])
			})
			return nil
		})
		if err != nil {
			return written, fmt.Errorf(
				"writing `%d` bytes at offset `%d`: %w",
				len(buf),
				offset,
				err,
			)
		}

		written += n
		if blockEnd == end {
			return written, nil
		}
		innerBlock++
		start = blockEnd
	}
}
