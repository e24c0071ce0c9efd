package device

import (
	. "github.com/weberc2/blockfs/pkg/types"
)

// BlockDevice is anything that can read and write fixed-size blocks by
// 0-based index. Buffers passed to either method are exactly BlockSize
// bytes; addressing a block beyond the device is a caller error surfaced
// as OutOfRangeErr.
type BlockDevice interface {
	ReadBlock(id BlockID, buf []byte) error
	WriteBlock(id BlockID, buf []byte) error
}

const (
	OutOfRangeErr ConstError = "block out of range"
)
