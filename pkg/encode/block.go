package encode

import (
	. "github.com/weberc2/blockfs/pkg/types"
)

func EncodeIndirectBlock(ind *IndirectBlock, b *[BlockSize]byte) {
	p := b[:]
	for i := 0; i < InodeIndirect1Count; i++ {
		putU32(p, i*BlockPointerSize, uint32(ind[i]))
	}
}

func DecodeIndirectBlock(ind *IndirectBlock, b *[BlockSize]byte) {
	p := b[:]
	for i := 0; i < InodeIndirect1Count; i++ {
		ind[i] = BlockID(getU32(p, i*BlockPointerSize))
	}
}

func EncodeBitmapBlock(bm *BitmapBlock, b *[BlockSize]byte) {
	p := b[:]
	for i := 0; i < BlockWords; i++ {
		putU64(p, i*8, bm[i])
	}
}

func DecodeBitmapBlock(bm *BitmapBlock, b *[BlockSize]byte) {
	p := b[:]
	for i := 0; i < BlockWords; i++ {
		bm[i] = getU64(p, i*8)
	}
}
