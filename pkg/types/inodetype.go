package types

import "fmt"

// InodeType is the on-disk file kind discriminant.
type InodeType uint32

const (
	InodeTypeFile InodeType = iota
	InodeTypeDirectory
)

func (t InodeType) String() string {
	switch t {
	case InodeTypeFile:
		return "File"
	case InodeTypeDirectory:
		return "Directory"
	default:
		panic(fmt.Sprintf("invalid inode type: `%d`", uint32(t)))
	}
}

func (t InodeType) Validate() error {
	if t > InodeTypeDirectory {
		return fmt.Errorf(
			"validating inode type `%d`: %w",
			uint32(t),
			InvalidInodeTypeErr,
		)
	}
	return nil
}

const (
	InvalidInodeTypeErr ConstError = "invalid inode type"
)
