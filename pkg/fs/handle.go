package fs

import (
	"errors"
	"fmt"

	"github.com/weberc2/blockfs/pkg/cache"
	"github.com/weberc2/blockfs/pkg/encode"
	"github.com/weberc2/blockfs/pkg/inode"
	. "github.com/weberc2/blockfs/pkg/types"
)

// Inode is a live handle on one on-disk inode: the position of its
// DiskInode slot plus the filesystem it belongs to. Handles are freely
// shareable and never outlive the filesystem.
type Inode struct {
	blockID     BlockID
	blockOffset int
	fs          *FileSystem
}

func (fs *FileSystem) inodeAt(id InodeID) *Inode {
	blockID, offset := fs.diskInodePos(id)
	return &Inode{blockID: blockID, blockOffset: offset, fs: fs}
}

// readDiskInode decodes the handle's DiskInode and invokes f on it. The
// decoded copy must not escape f.
func (ino *Inode) readDiskInode(f func(di *DiskInode) error) error {
	return ino.fs.cache.Block(ino.blockID, func(b *cache.Block) error {
		var di DiskInode
		var decodeErr error
		b.Read(ino.blockOffset, InodeSize, func(p []byte) {
			decodeErr = encode.DecodeDiskInode(&di, (*[InodeSize]byte)(p))
		})
		if decodeErr != nil {
			return decodeErr
		}
		return f(&di)
	})
}

// modifyDiskInode is readDiskInode's mutating form: when f succeeds the
// (possibly updated) DiskInode is re-encoded into the cached slot.
func (ino *Inode) modifyDiskInode(f func(di *DiskInode) error) error {
	return ino.fs.cache.Block(ino.blockID, func(b *cache.Block) error {
		var di DiskInode
		var decodeErr error
		b.Read(ino.blockOffset, InodeSize, func(p []byte) {
			decodeErr = encode.DecodeDiskInode(&di, (*[InodeSize]byte)(p))
		})
		if decodeErr != nil {
			return decodeErr
		}
		if err := f(&di); err != nil {
			return err
		}
		b.Modify(ino.blockOffset, InodeSize, func(p []byte) {
			encode.EncodeDiskInode(&di, (*[InodeSize]byte)(p))
		})
		return nil
	})
}

func (ino *Inode) Type() (InodeType, error) {
	ino.fs.mutex.Lock()
	defer ino.fs.mutex.Unlock()
	var t InodeType
	err := ino.readDiskInode(func(di *DiskInode) error {
		t = di.Type
		return nil
	})
	return t, err
}

func (ino *Inode) IsDir() (bool, error) {
	t, err := ino.Type()
	return t == InodeTypeDirectory, err
}

// Size returns content bytes for files, entry-count × 32 for directories.
func (ino *Inode) Size() (uint32, error) {
	ino.fs.mutex.Lock()
	defer ino.fs.mutex.Unlock()
	var size uint32
	err := ino.readDiskInode(func(di *DiskInode) error {
		size = di.Size
		return nil
	})
	return size, err
}

// List returns the names of every entry in the directory.
func (ino *Inode) List() ([]string, error) {
	ino.fs.mutex.Lock()
	defer ino.fs.mutex.Unlock()
	var names []string
	err := ino.readDiskInode(func(di *DiskInode) error {
		if !di.IsDir() {
			return fmt.Errorf("listing entries: %w", NotDirectoryErr)
		}
		count := di.Size / DirEntrySize
		for i := uint32(0); i < count; i++ {
			entry, err := readEntry(ino.fs.cache, di, i)
			if err != nil {
				return fmt.Errorf("listing entries: %w", err)
			}
			names = append(names, entry.NameString())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Find resolves a child by name and returns a handle on it.
func (ino *Inode) Find(name string) (*Inode, error) {
	ino.fs.mutex.Lock()
	defer ino.fs.mutex.Unlock()
	var child *Inode
	err := ino.readDiskInode(func(di *DiskInode) error {
		if !di.IsDir() {
			return fmt.Errorf("finding `%s`: %w", name, NotDirectoryErr)
		}
		_, id, found, err := findEntry(ino.fs.cache, di, name)
		if err != nil {
			return fmt.Errorf("finding `%s`: %w", name, err)
		}
		if !found {
			return fmt.Errorf("finding `%s`: %w", name, NotFoundErr)
		}
		child = ino.fs.inodeAt(id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return child, nil
}

// Create allocates a fresh inode of the given type and links it into the
// directory under name.
func (ino *Inode) Create(name string, t InodeType) (*Inode, error) {
	ino.fs.mutex.Lock()
	defer ino.fs.mutex.Unlock()
	var child *Inode
	err := ino.modifyDiskInode(func(di *DiskInode) error {
		if !di.IsDir() {
			return fmt.Errorf("creating `%s`: %w", name, NotDirectoryErr)
		}
		entry, err := NewDirEntry(name, 0)
		if err != nil {
			return fmt.Errorf("creating entry: %w", err)
		}
		if _, _, found, err := findEntry(ino.fs.cache, di, name); err != nil {
			return fmt.Errorf("creating `%s`: %w", name, err)
		} else if found {
			return fmt.Errorf("creating `%s`: %w", name, ExistsErr)
		}

		id, err := ino.fs.allocInode()
		if err != nil {
			return fmt.Errorf("creating `%s`: %w", name, err)
		}
		if err := ino.fs.initDiskInode(id, t); err != nil {
			return fmt.Errorf("creating `%s`: %w", name, err)
		}

		count := di.Size / DirEntrySize
		oldSize := di.Size
		reached, err := ino.fs.increaseSize(di, (count+1)*DirEntrySize)
		if err != nil {
			// a directory cannot hold a partial entry; undo
			if reached > oldSize {
				if freed, shrinkErr := inode.DecreaseSize(
					ino.fs.cache,
					di,
					oldSize,
				); shrinkErr == nil {
					for _, freedID := range freed {
						if deallocErr := ino.fs.deallocData(freedID); deallocErr != nil {
							return fmt.Errorf("creating `%s`: %w", name, deallocErr)
						}
					}
				}
			}
			if deallocErr := ino.fs.deallocInode(id); deallocErr != nil {
				return fmt.Errorf("creating `%s`: %w", name, deallocErr)
			}
			return fmt.Errorf("creating `%s`: %w", name, err)
		}

		entry.InodeID = id
		if err := writeEntry(ino.fs.cache, di, count, &entry); err != nil {
			return fmt.Errorf("creating `%s`: %w", name, err)
		}
		child = ino.fs.inodeAt(id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ino.fs.SyncAll(); err != nil {
		return nil, err
	}
	return child, nil
}

// Read copies file content at offset into buf and returns the count;
// reading at or past the end returns 0.
func (ino *Inode) Read(offset int, buf []byte) (int, error) {
	ino.fs.mutex.Lock()
	defer ino.fs.mutex.Unlock()
	n := 0
	err := ino.readDiskInode(func(di *DiskInode) error {
		if !di.IsFile() {
			return fmt.Errorf("reading at offset `%d`: %w", offset, NotFileErr)
		}
		var err error
		n, err = inode.ReadAt(ino.fs.cache, di, offset, buf)
		return err
	})
	return n, err
}

// Write copies buf into the file at offset, growing it as needed. When
// the data bitmap cannot cover the whole write it writes what fits and
// returns the short count alongside OutOfSpaceErr.
func (ino *Inode) Write(offset int, buf []byte) (int, error) {
	ino.fs.mutex.Lock()
	defer ino.fs.mutex.Unlock()
	n := 0
	var spaceErr error
	err := ino.modifyDiskInode(func(di *DiskInode) error {
		if !di.IsFile() {
			return fmt.Errorf("writing at offset `%d`: %w", offset, NotFileErr)
		}
		if newSize := uint32(offset + len(buf)); newSize > di.Size {
			if _, err := ino.fs.increaseSize(di, newSize); err != nil {
				if !isOutOfSpace(err) {
					return err
				}
				spaceErr = err
			}
		}
		if offset >= int(di.Size) && len(buf) > 0 {
			// the grow fell short of even reaching offset
			return nil
		}
		var err error
		n, err = inode.WriteAt(ino.fs.cache, di, offset, buf)
		return err
	})
	if err != nil {
		return n, err
	}
	if err := ino.fs.SyncAll(); err != nil {
		return n, err
	}
	return n, spaceErr
}

// Clear truncates the inode's content to zero and returns every data and
// index block it held to the data bitmap. The inode itself stays
// allocated and linked.
func (ino *Inode) Clear() error {
	ino.fs.mutex.Lock()
	defer ino.fs.mutex.Unlock()
	if err := ino.clearContent(); err != nil {
		return err
	}
	return ino.fs.SyncAll()
}

func (ino *Inode) clearContent() error {
	return ino.modifyDiskInode(func(di *DiskInode) error {
		size := di.Size
		freed, err := inode.ClearSize(ino.fs.cache, di)
		if err != nil {
			return fmt.Errorf("clearing content: %w", err)
		}
		if uint32(len(freed)) != TotalBlocks(size) {
			panic(fmt.Sprintf(
				"clearing `%d` bytes freed `%d` of `%d` blocks",
				size,
				len(freed),
				TotalBlocks(size),
			))
		}
		for _, id := range freed {
			if err := ino.fs.deallocData(id); err != nil {
				return fmt.Errorf("clearing content: %w", err)
			}
		}
		return nil
	})
}

// Remove unlinks and destroys the named child: its content is cleared,
// its inode bit freed, and its directory entry removed (remaining
// entries shift left one slot). Non-empty directories are refused.
func (ino *Inode) Remove(name string) error {
	ino.fs.mutex.Lock()
	defer ino.fs.mutex.Unlock()
	err := ino.modifyDiskInode(func(di *DiskInode) error {
		if !di.IsDir() {
			return fmt.Errorf("removing `%s`: %w", name, NotDirectoryErr)
		}
		index, id, found, err := findEntry(ino.fs.cache, di, name)
		if err != nil {
			return fmt.Errorf("removing `%s`: %w", name, err)
		}
		if !found {
			return fmt.Errorf("removing `%s`: %w", name, NotFoundErr)
		}

		if err := ino.fs.destroyInode(id); err != nil {
			return fmt.Errorf("removing `%s`: %w", name, err)
		}

		count := di.Size / DirEntrySize
		for i := index + 1; i < count; i++ {
			entry, err := readEntry(ino.fs.cache, di, i)
			if err != nil {
				return fmt.Errorf("removing `%s`: %w", name, err)
			}
			if err := writeEntry(ino.fs.cache, di, i-1, &entry); err != nil {
				return fmt.Errorf("removing `%s`: %w", name, err)
			}
		}

		freed, err := inode.DecreaseSize(
			ino.fs.cache,
			di,
			(count-1)*DirEntrySize,
		)
		if err != nil {
			return fmt.Errorf("removing `%s`: %w", name, err)
		}
		for _, freedID := range freed {
			if err := ino.fs.deallocData(freedID); err != nil {
				return fmt.Errorf("removing `%s`: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return ino.fs.SyncAll()
}

// destroyInode clears an inode's content and frees its bitmap bit.
// Directories must be empty.
func (fs *FileSystem) destroyInode(id InodeID) error {
	handle := fs.inodeAt(id)
	err := handle.readDiskInode(func(di *DiskInode) error {
		if di.IsDir() && di.Size > 0 {
			return DirNotEmptyErr
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := handle.clearContent(); err != nil {
		return err
	}
	return fs.deallocInode(id)
}

// Rename rewrites the named entry in place; content and inode id are
// untouched.
func (ino *Inode) Rename(oldName, newName string) error {
	ino.fs.mutex.Lock()
	defer ino.fs.mutex.Unlock()
	err := ino.readDiskInode(func(di *DiskInode) error {
		if !di.IsDir() {
			return fmt.Errorf(
				"renaming `%s` to `%s`: %w",
				oldName,
				newName,
				NotDirectoryErr,
			)
		}
		if _, _, found, err := findEntry(ino.fs.cache, di, newName); err != nil {
			return fmt.Errorf("renaming `%s` to `%s`: %w", oldName, newName, err)
		} else if found {
			return fmt.Errorf(
				"renaming `%s` to `%s`: %w",
				oldName,
				newName,
				ExistsErr,
			)
		}
		index, id, found, err := findEntry(ino.fs.cache, di, oldName)
		if err != nil {
			return fmt.Errorf("renaming `%s` to `%s`: %w", oldName, newName, err)
		}
		if !found {
			return fmt.Errorf(
				"renaming `%s` to `%s`: %w",
				oldName,
				newName,
				NotFoundErr,
			)
		}
		entry, err := NewDirEntry(newName, id)
		if err != nil {
			return fmt.Errorf("renaming `%s` to `%s`: %w", oldName, newName, err)
		}
		if err := writeEntry(ino.fs.cache, di, index, &entry); err != nil {
			return fmt.Errorf("renaming `%s` to `%s`: %w", oldName, newName, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return ino.fs.SyncAll()
}

func readEntry(
	cm *cache.Manager,
	di *DiskInode,
	index uint32,
) (DirEntry, error) {
	var buf [DirEntrySize]byte
	n, err := inode.ReadAt(cm, di, int(index)*DirEntrySize, buf[:])
	if err != nil {
		return DirEntry{}, fmt.Errorf(
			"reading directory entry `%d`: %w",
			index,
			err,
		)
	}
	if n != DirEntrySize {
		panic(fmt.Sprintf(
			"directory entry `%d` read `%d` of `%d` bytes",
			index,
			n,
			DirEntrySize,
		))
	}
	var entry DirEntry
	encode.DecodeDirEntry(&entry, &buf)
	return entry, nil
}

func writeEntry(
	cm *cache.Manager,
	di *DiskInode,
	index uint32,
	entry *DirEntry,
) error {
	var buf [DirEntrySize]byte
	encode.EncodeDirEntry(entry, &buf)
	n, err := inode.WriteAt(cm, di, int(index)*DirEntrySize, buf[:])
	if err != nil {
		return fmt.Errorf("writing directory entry `%d`: %w", index, err)
	}
	if n != DirEntrySize {
		panic(fmt.Sprintf(
			"directory entry `%d` wrote `%d` of `%d` bytes",
			index,
			n,
			DirEntrySize,
		))
	}
	return nil
}

func isOutOfSpace(err error) bool { return errors.Is(err, OutOfSpaceErr) }

// findEntry scans the directory for name, returning the entry's index
// and inode id.
func findEntry(
	cm *cache.Manager,
	di *DiskInode,
	name string,
) (uint32, InodeID, bool, error) {
	count := di.Size / DirEntrySize
	for i := uint32(0); i < count; i++ {
		entry, err := readEntry(cm, di, i)
		if err != nil {
			return 0, 0, false, err
		}
		if entry.NameString() == name {
			return i, entry.InodeID, true, nil
		}
	}
	return 0, 0, false, nil
}
