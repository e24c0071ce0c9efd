package inode

import (
	"fmt"

	"github.com/weberc2/blockfs/pkg/cache"
	"github.com/weberc2/blockfs/pkg/encode"
	. "github.com/weberc2/blockfs/pkg/types"
)

func readIndirect(
	cm *cache.Manager,
	block BlockID,
	index uint32,
) (BlockID, error) {
	var id BlockID
	err := cm.Block(block, func(b *cache.Block) error {
		b.Read(int(index)*BlockPointerSize, BlockPointerSize, func(p []byte) {
			id = encode.DecodeBlockID((*[BlockPointerSize]byte)(p))
		})
		return nil
	})
	if err != nil {
		return BlockNil, fmt.Errorf(
			"reading pointer `%d` of indirect block `%d`: %w",
			index,
			block,
			err,
		)
	}
	return id, nil
}

// modifyIndirect decodes the indirect block, applies f, and re-encodes.
// f may itself pin further cache blocks.
func modifyIndirect(
	cm *cache.Manager,
	block BlockID,
	f func(ind *IndirectBlock) error,
) error {
	return cm.Block(block, func(b *cache.Block) error {
		var ind IndirectBlock
		b.Read(0, BlockSize, func(p []byte) {
			encode.DecodeIndirectBlock(&ind, (*[BlockSize]byte)(p))
		})
		if err := f(&ind); err != nil {
			return err
		}
		b.Modify(0, BlockSize, func(p []byte) {
			encode.EncodeIndirectBlock(&ind, (*[BlockSize]byte)(p))
		})
		return nil
	})
}

// BlockIDAt maps the inner (file-relative) block index to the data-region
// block id recorded in the inode's index structures.
func BlockIDAt(
	cm *cache.Manager,
	di *DiskInode,
	inner uint32,
) (BlockID, error) {
	if inner < DirectBound {
		return di.Direct[inner], nil
	}
	if inner < Indirect1Bound {
		return readIndirect(cm, di.Indirect1, inner-DirectBound)
	}
	last := inner - Indirect1Bound
	row, err := readIndirect(cm, di.Indirect2, last/InodeIndirect1Count)
	if err != nil {
		return BlockNil, err
	}
	return readIndirect(cm, row, last%InodeIndirect1Count)
}
