package types

// BlockID addresses a block on the device, 0-based.
type BlockID uint32

// InodeID indexes into the inode area; inode 0 is the root directory.
type InodeID uint32

type ConstError string

func (err ConstError) Error() string { return string(err) }

const (
	// BlockSize is the unit of device I/O, in bytes.
	BlockSize = 512

	// BlockBits is the number of allocation bits a bitmap block carries.
	BlockBits = BlockSize * 8

	// BlockWords is the number of u64 words in a bitmap block.
	BlockWords = BlockSize / 8

	// BlockPointerSize is the on-disk size of a block id.
	BlockPointerSize = 4

	// CacheLimit bounds the number of resident block-cache slots.
	CacheLimit = 16

	// Magic identifies a formatted container in block 0.
	Magic uint32 = 0x3b800001

	// BlockNil marks an unallocated slot in an index structure. This
	// doubles as a valid block id only for block 0, which is always the
	// superblock; the data area never starts at block 0.
	BlockNil BlockID = 0

	InodeDirectCount    = 28
	InodeIndirect1Count = BlockSize / BlockPointerSize
	InodeIndirect2Count = InodeIndirect1Count * InodeIndirect1Count

	DirectBound    = InodeDirectCount
	Indirect1Bound = DirectBound + InodeIndirect1Count
	Indirect2Bound = Indirect1Bound + InodeIndirect2Count

	// InodeSize is the on-disk size of a DiskInode.
	InodeSize = 128

	// InodesPerBlock is how many DiskInode slots pack into one block.
	InodesPerBlock = BlockSize / InodeSize

	NameLengthLimit = 27
	DirEntrySize    = 32

	InodeRoot InodeID = 0
)

// IndirectBlock is a block interpreted as 128 block ids.
type IndirectBlock [InodeIndirect1Count]BlockID

// BitmapBlock is a block interpreted as 64 groups of 64 allocation bits;
// bit k of the block is bit k%64 of word k/64.
type BitmapBlock [BlockWords]uint64
