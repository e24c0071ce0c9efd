package fs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/weberc2/blockfs/pkg/alloc"
	"github.com/weberc2/blockfs/pkg/cache"
	"github.com/weberc2/blockfs/pkg/device"
	"github.com/weberc2/blockfs/pkg/encode"
	"github.com/weberc2/blockfs/pkg/inode"
	. "github.com/weberc2/blockfs/pkg/types"
)

const (
	BadMagicErr     ConstError = "bad filesystem magic"
	TooSmallErr     ConstError = "container too small"
	OutOfInodesErr  ConstError = "out of inodes"
	OutOfSpaceErr   ConstError = "file system full"
	NotFoundErr     ConstError = "no such file or directory"
	ExistsErr       ConstError = "file exists"
	NotDirectoryErr ConstError = "not a directory"
	NotFileErr      ConstError = "not a file"
	DirNotEmptyErr  ConstError = "directory not empty"
)

// FileSystem owns the container's region layout, both bitmaps, and the
// block cache. Inode handles share it read-only; every mutating
// operation serializes on its mutex.
type FileSystem struct {
	mutex          sync.Mutex
	cache          *cache.Manager
	inodeBitmap    alloc.Bitmap
	dataBitmap     alloc.Bitmap
	inodeAreaStart BlockID
	dataAreaStart  BlockID
}

// Format lays out and initializes a filesystem on dev: zeroes the
// container, writes the superblock, and creates the root directory as
// inode 0. The inode area is sized to the inode bitmap's capacity (one
// 128-byte slot per bit); each data bitmap block covers 4096 data blocks
// plus itself, so the data region gets one bitmap block per 4097 blocks.
func Format(
	dev device.BlockDevice,
	totalBlocks uint32,
	inodeBitmapBlocks uint32,
) (*FileSystem, error) {
	if inodeBitmapBlocks < 1 {
		return nil, fmt.Errorf(
			"formatting with `%d` inode bitmap blocks: %w",
			inodeBitmapBlocks,
			TooSmallErr,
		)
	}
	inodeBitmap := alloc.New(1, inodeBitmapBlocks)
	inodeCount := inodeBitmap.Maximum()
	inodeAreaBlocks := (inodeCount*InodeSize + BlockSize - 1) / BlockSize
	inodeTotal := inodeBitmapBlocks + inodeAreaBlocks
	if totalBlocks < 1+inodeTotal+2 {
		return nil, fmt.Errorf(
			"formatting `%d` blocks (inode regions need `%d`): %w",
			totalBlocks,
			inodeTotal,
			TooSmallErr,
		)
	}
	dataTotal := totalBlocks - 1 - inodeTotal
	dataBitmapBlocks := (dataTotal + 4096) / 4097
	dataAreaBlocks := dataTotal - dataBitmapBlocks

	cm := cache.NewManager(dev, CacheLimit)
	fs := &FileSystem{
		cache:          cm,
		inodeBitmap:    inodeBitmap,
		dataBitmap:     alloc.New(BlockID(1+inodeTotal), dataBitmapBlocks),
		inodeAreaStart: BlockID(1 + inodeBitmapBlocks),
		dataAreaStart:  BlockID(1 + inodeTotal + dataBitmapBlocks),
	}

	for i := uint32(0); i < totalBlocks; i++ {
		err := cm.Block(BlockID(i), func(b *cache.Block) error {
			b.Modify(0, BlockSize, func(p []byte) {
				for j := range p {
					p[j] = 0
				}
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("formatting: zeroing block `%d`: %w", i, err)
		}
	}

	sb := SuperBlock{
		Magic:             Magic,
		TotalBlocks:       totalBlocks,
		InodeBitmapBlocks: inodeBitmapBlocks,
		InodeAreaBlocks:   inodeAreaBlocks,
		DataBitmapBlocks:  dataBitmapBlocks,
		DataAreaBlocks:    dataAreaBlocks,
	}
	err := cm.Block(0, func(b *cache.Block) error {
		b.Modify(0, encode.SuperBlockSize, func(p []byte) {
			encode.EncodeSuperBlock(&sb, (*[encode.SuperBlockSize]byte)(p))
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("formatting: writing superblock: %w", err)
	}

	root, err := fs.allocInode()
	if err != nil {
		return nil, fmt.Errorf("formatting: allocating root inode: %w", err)
	}
	if root != InodeRoot {
		panic(fmt.Sprintf("fresh inode bitmap allocated inode `%d`", root))
	}
	if err := fs.initDiskInode(InodeRoot, InodeTypeDirectory); err != nil {
		return nil, fmt.Errorf("formatting: initializing root inode: %w", err)
	}

	if err := cm.SyncAll(); err != nil {
		return nil, fmt.Errorf("formatting: %w", err)
	}
	return fs, nil
}

// Open reconstructs the filesystem from the superblock of a previously
// formatted container.
func Open(dev device.BlockDevice) (*FileSystem, error) {
	cm := cache.NewManager(dev, CacheLimit)
	var sb SuperBlock
	err := cm.Block(0, func(b *cache.Block) error {
		b.Read(0, encode.SuperBlockSize, func(p []byte) {
			encode.DecodeSuperBlock(&sb, (*[encode.SuperBlockSize]byte)(p))
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("opening filesystem: %w", err)
	}
	if !sb.IsValid() {
		return nil, fmt.Errorf(
			"opening filesystem: magic `%#x`: %w",
			sb.Magic,
			BadMagicErr,
		)
	}
	inodeTotal := sb.InodeBitmapBlocks + sb.InodeAreaBlocks
	return &FileSystem{
		cache:          cm,
		inodeBitmap:    alloc.New(1, sb.InodeBitmapBlocks),
		dataBitmap:     alloc.New(BlockID(1+inodeTotal), sb.DataBitmapBlocks),
		inodeAreaStart: BlockID(1 + sb.InodeBitmapBlocks),
		dataAreaStart:  BlockID(1 + inodeTotal + sb.DataBitmapBlocks),
	}, nil
}

// Root returns a handle on inode 0, always the root directory.
func (fs *FileSystem) Root() *Inode { return fs.inodeAt(InodeRoot) }

// SyncAll flushes every modified cached block to the device.
func (fs *FileSystem) SyncAll() error { return fs.cache.SyncAll() }

// Close flushes the cache; the filesystem must not be used afterwards.
func (fs *FileSystem) Close() error { return fs.cache.Close() }

// diskInodePos locates an inode slot: 4 inodes pack into each block of
// the inode area.
func (fs *FileSystem) diskInodePos(id InodeID) (BlockID, int) {
	blockID := fs.inodeAreaStart + BlockID(uint32(id)/InodesPerBlock)
	return blockID, int(uint32(id)%InodesPerBlock) * InodeSize
}

func (fs *FileSystem) dataBlockID(bit uint32) BlockID {
	return fs.dataAreaStart + BlockID(bit)
}

func (fs *FileSystem) allocInode() (InodeID, error) {
	bit, err := fs.inodeBitmap.Alloc(fs.cache)
	if err != nil {
		if errors.Is(err, alloc.ExhaustedErr) {
			return 0, OutOfInodesErr
		}
		return 0, fmt.Errorf("allocating inode: %w", err)
	}
	return InodeID(bit), nil
}

func (fs *FileSystem) deallocInode(id InodeID) error {
	if err := fs.inodeBitmap.Dealloc(fs.cache, uint32(id)); err != nil {
		return fmt.Errorf("freeing inode `%d`: %w", id, err)
	}
	return nil
}

func (fs *FileSystem) allocData() (BlockID, error) {
	bit, err := fs.dataBitmap.Alloc(fs.cache)
	if err != nil {
		if errors.Is(err, alloc.ExhaustedErr) {
			return BlockNil, OutOfSpaceErr
		}
		return BlockNil, fmt.Errorf("allocating data block: %w", err)
	}
	// the data bitmap has more bits than the data area has blocks; a bit
	// past the area is handed back and the volume counts as full
	var sb SuperBlock
	if err := fs.cache.Block(0, func(b *cache.Block) error {
		b.Read(0, encode.SuperBlockSize, func(p []byte) {
			encode.DecodeSuperBlock(&sb, (*[encode.SuperBlockSize]byte)(p))
		})
		return nil
	}); err != nil {
		return BlockNil, fmt.Errorf("allocating data block: %w", err)
	}
	if bit >= sb.DataAreaBlocks {
		if err := fs.dataBitmap.Dealloc(fs.cache, bit); err != nil {
			return BlockNil, fmt.Errorf("allocating data block: %w", err)
		}
		return BlockNil, OutOfSpaceErr
	}
	return fs.dataBlockID(bit), nil
}

// deallocData zeroes the freed block before returning its bit so stale
// index or directory bytes never resurface on reallocation.
func (fs *FileSystem) deallocData(id BlockID) error {
	err := fs.cache.Block(id, func(b *cache.Block) error {
		b.Modify(0, BlockSize, func(p []byte) {
			for i := range p {
				p[i] = 0
			}
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("freeing data block `%d`: %w", id, err)
	}
	if err := fs.dataBitmap.Dealloc(fs.cache, uint32(id-fs.dataAreaStart)); err != nil {
		return fmt.Errorf("freeing data block `%d`: %w", id, err)
	}
	return nil
}

func (fs *FileSystem) initDiskInode(id InodeID, t InodeType) error {
	blockID, offset := fs.diskInodePos(id)
	return fs.cache.Block(blockID, func(b *cache.Block) error {
		b.Modify(offset, InodeSize, func(p []byte) {
			var di DiskInode
			di.Initialize(t)
			encode.EncodeDiskInode(&di, (*[InodeSize]byte)(p))
		})
		return nil
	})
}

// increaseSize grows di toward newSize, allocating data and index blocks
// from the data bitmap. When the bitmap cannot cover newSize it grows to
// the largest block-aligned size it can, returns that size, and reports
// OutOfSpaceErr; the caller decides whether a short grow is acceptable.
func (fs *FileSystem) increaseSize(
	di *DiskInode,
	newSize uint32,
) (uint32, error) {
	if newSize <= di.Size {
		return di.Size, nil
	}
	needed := di.BlocksNumNeeded(newSize)
	blocks := make([]BlockID, 0, needed)
	short := false
	for uint32(len(blocks)) < needed {
		id, err := fs.allocData()
		if err != nil {
			if !errors.Is(err, OutOfSpaceErr) {
				return di.Size, err
			}
			short = true
			break
		}
		blocks = append(blocks, id)
	}

	if !short {
		if err := inode.IncreaseSize(fs.cache, di, newSize, blocks); err != nil {
			return di.Size, err
		}
		return newSize, nil
	}

	// find the largest whole-block size the partial allocation covers
	have := uint32(len(blocks))
	bestBlocks := di.DataBlocks()
	for d := bestBlocks + 1; d <= DataBlocksFor(newSize); d++ {
		if TotalBlocks(d*BlockSize)-TotalBlocks(di.Size) > have {
			break
		}
		bestBlocks = d
	}
	reached := bestBlocks * BlockSize
	if reached < di.Size {
		reached = di.Size
	}
	cost := TotalBlocks(reached) - TotalBlocks(di.Size)
	for _, id := range blocks[cost:] {
		if err := fs.deallocData(id); err != nil {
			return di.Size, err
		}
	}
	if reached > di.Size {
		if err := inode.IncreaseSize(fs.cache, di, reached, blocks[:cost]); err != nil {
			return di.Size, err
		}
	}
	return reached, fmt.Errorf(
		"growing inode from `%d` to `%d` bytes: %w",
		reached,
		newSize,
		OutOfSpaceErr,
	)
}
