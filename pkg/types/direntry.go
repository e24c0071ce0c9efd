package types

import "fmt"

// DirEntry is one 32-byte directory record: a NUL-terminated name of up
// to 27 bytes, one reserved pad byte, and the child's inode id.
type DirEntry struct {
	Name    [NameLengthLimit]byte
	InodeID InodeID
}

func NewDirEntry(name string, ino InodeID) (DirEntry, error) {
	entry := DirEntry{InodeID: ino}
	if err := entry.SetName(name); err != nil {
		return DirEntry{}, err
	}
	return entry, nil
}

func (e *DirEntry) SetName(name string) error {
	if len(name) > NameLengthLimit {
		return fmt.Errorf(
			"directory entry name `%s` (`%d` bytes): %w",
			name,
			len(name),
			NameTooLongErr,
		)
	}
	e.Name = [NameLengthLimit]byte{}
	copy(e.Name[:], name)
	return nil
}

// NameString returns the name bytes up to the first NUL.
func (e *DirEntry) NameString() string {
	for i, b := range e.Name {
		if b == 0 {
			return string(e.Name[:i])
		}
	}
	return string(e.Name[:])
}

const (
	NameTooLongErr ConstError = "name too long"
)
