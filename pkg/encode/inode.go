package encode

import (
	"fmt"

	. "github.com/weberc2/blockfs/pkg/types"
)

func EncodeDiskInode(di *DiskInode, b *[InodeSize]byte) {
	p := b[:]
	putU32(p, inodeSizeStart, di.Size)
	for i := 0; i < InodeDirectCount; i++ {
		putU32(p, inodeDirectStart+i*BlockPointerSize, uint32(di.Direct[i]))
	}
	putU32(p, inodeIndirect1Start, uint32(di.Indirect1))
	putU32(p, inodeIndirect2Start, uint32(di.Indirect2))
	putU32(p, inodeTypeStart, uint32(di.Type))
}

func DecodeDiskInode(di *DiskInode, b *[InodeSize]byte) error {
	p := b[:]

	// validate before mutating the pointee
	t := InodeType(getU32(p, inodeTypeStart))
	if err := t.Validate(); err != nil {
		return fmt.Errorf("decoding inode: %w", err)
	}

	di.Size = getU32(p, inodeSizeStart)
	for i := 0; i < InodeDirectCount; i++ {
		di.Direct[i] = BlockID(getU32(p, inodeDirectStart+i*BlockPointerSize))
	}
	di.Indirect1 = BlockID(getU32(p, inodeIndirect1Start))
	di.Indirect2 = BlockID(getU32(p, inodeIndirect2Start))
	di.Type = t
	return nil
}

const (
	inodeSizeStart = 0
	inodeSizeSize  = 4
	inodeSizeEnd   = inodeSizeStart + inodeSizeSize

	inodeDirectStart = inodeSizeEnd
	inodeDirectSize  = InodeDirectCount * BlockPointerSize
	inodeDirectEnd   = inodeDirectStart + inodeDirectSize

	inodeIndirect1Start = inodeDirectEnd
	inodeIndirect1Size  = BlockPointerSize
	inodeIndirect1End   = inodeIndirect1Start + inodeIndirect1Size

	inodeIndirect2Start = inodeIndirect1End
	inodeIndirect2Size  = BlockPointerSize
	inodeIndirect2End   = inodeIndirect2Start + inodeIndirect2Size

	inodeTypeStart = inodeIndirect2End
	inodeTypeSize  = 4
	inodeTypeEnd   = inodeTypeStart + inodeTypeSize
)
