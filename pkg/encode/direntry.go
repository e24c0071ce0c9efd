package encode

import (
	. "github.com/weberc2/blockfs/pkg/types"
)

func EncodeDirEntry(entry *DirEntry, b *[DirEntrySize]byte) {
	p := b[:]
	copy(p[dirEntryNameStart:dirEntryNameEnd], entry.Name[:])
	p[dirEntryPadStart] = 0
	putU32(p, dirEntryInodeIDStart, uint32(entry.InodeID))
}

func DecodeDirEntry(entry *DirEntry, b *[DirEntrySize]byte) {
	p := b[:]
	copy(entry.Name[:], p[dirEntryNameStart:dirEntryNameEnd])
	entry.InodeID = InodeID(getU32(p, dirEntryInodeIDStart))
}

const (
	dirEntryNameStart = 0
	dirEntryNameSize  = NameLengthLimit
	dirEntryNameEnd   = dirEntryNameStart + dirEntryNameSize

	dirEntryPadStart = dirEntryNameEnd
	dirEntryPadSize  = 1
	dirEntryPadEnd   = dirEntryPadStart + dirEntryPadSize

	dirEntryInodeIDStart = dirEntryPadEnd
	dirEntryInodeIDSize  = 4
	dirEntryInodeIDEnd   = dirEntryInodeIDStart + dirEntryInodeIDSize
)
