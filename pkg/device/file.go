package device

import (
	"fmt"
	"os"

	. "github.com/weberc2/blockfs/pkg/types"
)

// File binds a host file to the block-device contract; block id maps to
// file offset id × BlockSize.
type File struct {
	file   *os.File
	blocks uint32
}

// CreateFile creates (or truncates) the container at path and sizes it to
// hold exactly `blocks` blocks.
func CreateFile(path string, blocks uint32) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating container `%s`: %w", path, err)
	}
	if err := f.Truncate(int64(blocks) * BlockSize); err != nil {
		f.Close()
		return nil, fmt.Errorf(
			"sizing container `%s` to `%d` blocks: %w",
			path,
			blocks,
			err,
		)
	}
	return &File{file: f, blocks: blocks}, nil
}

// OpenFile opens an existing container; its block count is derived from
// the file size.
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening container `%s`: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sizing container `%s`: %w", path, err)
	}
	return &File{file: f, blocks: uint32(info.Size() / BlockSize)}, nil
}

func (d *File) Blocks() uint32 { return d.blocks }

func (d *File) ReadBlock(id BlockID, buf []byte) error {
	if uint32(id) >= d.blocks {
		return fmt.Errorf(
			"reading block `%d` of `%d`: %w",
			id,
			d.blocks,
			OutOfRangeErr,
		)
	}
	if _, err := d.file.ReadAt(buf[:BlockSize], int64(id)*BlockSize); err != nil {
		return fmt.Errorf("reading block `%d`: %w", id, err)
	}
	return nil
}

func (d *File) WriteBlock(id BlockID, buf []byte) error {
	if uint32(id) >= d.blocks {
		return fmt.Errorf(
			"writing block `%d` of `%d`: %w",
			id,
			d.blocks,
			OutOfRangeErr,
		)
	}
	if _, err := d.file.WriteAt(buf[:BlockSize], int64(id)*BlockSize); err != nil {
		return fmt.Errorf("writing block `%d`: %w", id, err)
	}
	return nil
}

func (d *File) Close() error { return d.file.Close() }
