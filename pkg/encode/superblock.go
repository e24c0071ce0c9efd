package encode

import (
	. "github.com/weberc2/blockfs/pkg/types"
)

func EncodeSuperBlock(sb *SuperBlock, b *[SuperBlockSize]byte) {
	p := b[:]
	putU32(p, superBlockMagicStart, sb.Magic)
	putU32(p, superBlockTotalStart, sb.TotalBlocks)
	putU32(p, superBlockInodeBitmapStart, sb.InodeBitmapBlocks)
	putU32(p, superBlockInodeAreaStart, sb.InodeAreaBlocks)
	putU32(p, superBlockDataBitmapStart, sb.DataBitmapBlocks)
	putU32(p, superBlockDataAreaStart, sb.DataAreaBlocks)
}

func DecodeSuperBlock(sb *SuperBlock, b *[SuperBlockSize]byte) {
	p := b[:]
	sb.Magic = getU32(p, superBlockMagicStart)
	sb.TotalBlocks = getU32(p, superBlockTotalStart)
	sb.InodeBitmapBlocks = getU32(p, superBlockInodeBitmapStart)
	sb.InodeAreaBlocks = getU32(p, superBlockInodeAreaStart)
	sb.DataBitmapBlocks = getU32(p, superBlockDataBitmapStart)
	sb.DataAreaBlocks = getU32(p, superBlockDataAreaStart)
}

const (
	superBlockMagicStart = 0
	superBlockMagicSize  = 4
	superBlockMagicEnd   = superBlockMagicStart + superBlockMagicSize

	superBlockTotalStart = superBlockMagicEnd
	superBlockTotalSize  = 4
	superBlockTotalEnd   = superBlockTotalStart + superBlockTotalSize

	superBlockInodeBitmapStart = superBlockTotalEnd
	superBlockInodeBitmapSize  = 4
	superBlockInodeBitmapEnd   = superBlockInodeBitmapStart + superBlockInodeBitmapSize

	superBlockInodeAreaStart = superBlockInodeBitmapEnd
	superBlockInodeAreaSize  = 4
	superBlockInodeAreaEnd   = superBlockInodeAreaStart + superBlockInodeAreaSize

	superBlockDataBitmapStart = superBlockInodeAreaEnd
	superBlockDataBitmapSize  = 4
	superBlockDataBitmapEnd   = superBlockDataBitmapStart + superBlockDataBitmapSize

	superBlockDataAreaStart = superBlockDataBitmapEnd
	superBlockDataAreaSize  = 4
	superBlockDataAreaEnd   = superBlockDataAreaStart + superBlockDataAreaSize

	SuperBlockSize = superBlockDataAreaEnd
)
