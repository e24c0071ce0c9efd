package alloc

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/weberc2/blockfs/pkg/cache"
	"github.com/weberc2/blockfs/pkg/encode"
	. "github.com/weberc2/blockfs/pkg/types"
)

const (
	ExhaustedErr ConstError = "bitmap exhausted"
)

// Bitmap allocates bit indices out of a run of contiguous bitmap blocks.
// It holds no state of its own beyond the region bounds; the bits live in
// the block cache.
type Bitmap struct {
	startBlock BlockID
	blocks     uint32
}

func New(startBlock BlockID, blocks uint32) Bitmap {
	return Bitmap{startBlock: startBlock, blocks: blocks}
}

// Maximum is the bitmap's capacity in bits.
func (bm Bitmap) Maximum() uint32 { return bm.blocks * BlockBits }

// Alloc sets and returns the lowest clear bit: lowest block, then lowest
// word within the block, then lowest bit within the word. Returns
// ExhaustedErr when every bit is set.
func (bm Bitmap) Alloc(cm *cache.Manager) (uint32, error) {
	for i := uint32(0); i < bm.blocks; i++ {
		found := -1
		err := cm.Block(bm.startBlock+BlockID(i), func(b *cache.Block) error {
			b.Read(0, BlockSize, func(p []byte) {
				var words BitmapBlock
				encode.DecodeBitmapBlock(&words, (*[BlockSize]byte)(p))
				for w := 0; w < BlockWords; w++ {
					if words[w] != ^uint64(0) {
						inner := bits.TrailingZeros64(^words[w])
						found = w*64 + inner
						return
					}
				}
			})
			if found < 0 {
				return nil
			}
			// set just the word holding the found bit
			b.Modify((found/64)*8, 8, func(p []byte) {
				word := binary.LittleEndian.Uint64(p)
				binary.LittleEndian.PutUint64(p, word|1<<uint(found%64))
			})
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("allocating bit: %w", err)
		}
		if found >= 0 {
			return i*BlockBits + uint32(found), nil
		}
	}
	return 0, ExhaustedErr
}

// Dealloc clears the given bit. Freeing a clear bit is a double free and
// panics.
func (bm Bitmap) Dealloc(cm *cache.Manager, bit uint32) error {
	if bit >= bm.Maximum() {
		panic(fmt.Sprintf("freeing bit `%d` beyond bitmap capacity", bit))
	}
	blockIndex, wordIndex, innerIndex := decompose(bit)
	err := cm.Block(bm.startBlock+BlockID(blockIndex), func(b *cache.Block) error {
		b.Modify(int(wordIndex)*8, 8, func(p []byte) {
			word := binary.LittleEndian.Uint64(p)
			if word&(1<<innerIndex) == 0 {
				panic(fmt.Sprintf("freeing unallocated bit `%d`", bit))
			}
			binary.LittleEndian.PutUint64(p, word&^(1<<innerIndex))
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("freeing bit `%d`: %w", bit, err)
	}
	return nil
}

// decompose splits a global bit index into (block, word, bit-in-word).
func decompose(bit uint32) (uint32, uint32, uint32) {
	blockIndex := bit / BlockBits
	bit %= BlockBits
	return blockIndex, bit / 64, bit % 64
}
