package encode

import (
	"encoding/binary"

	. "github.com/weberc2/blockfs/pkg/types"
)

func putU32(b []byte, start int, u uint32) {
	binary.LittleEndian.PutUint32(b[start:start+4], u)
}

func getU32(b []byte, start int) uint32 {
	return binary.LittleEndian.Uint32(b[start : start+4])
}

func putU64(b []byte, start int, u uint64) {
	binary.LittleEndian.PutUint64(b[start:start+8], u)
}

func getU64(b []byte, start int) uint64 {
	return binary.LittleEndian.Uint64(b[start : start+8])
}

func EncodeBlockID(id BlockID, p *[BlockPointerSize]byte) {
	binary.LittleEndian.PutUint32((*p)[:], uint32(id))
}

func DecodeBlockID(p *[BlockPointerSize]byte) BlockID {
	return BlockID(binary.LittleEndian.Uint32((*p)[:]))
}
