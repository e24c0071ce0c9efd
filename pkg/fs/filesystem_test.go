package fs

import (
	"errors"
	"testing"

	"github.com/weberc2/blockfs/pkg/device"
	"github.com/weberc2/blockfs/pkg/encode"
	. "github.com/weberc2/blockfs/pkg/types"
)

func TestFormat(t *testing.T) {
	dev := device.NewMemory(8192)

	// dirty the whole container so formatting has something to erase
	junk := make([]byte, BlockSize)
	for i := range junk {
		junk[i] = 0xaa
	}
	for i := BlockID(0); i < 8192; i++ {
		if err := dev.WriteBlock(i, junk); err != nil {
			t.Fatalf("WriteBlock(): unexpected err: %v", err)
		}
	}

	fsys, err := Format(dev, 8192, 1)
	if err != nil {
		t.Fatalf("Format(): unexpected err: %v", err)
	}

	// the superblock on the device matches the formatted geometry
	var block [BlockSize]byte
	if err := dev.ReadBlock(0, block[:]); err != nil {
		t.Fatalf("ReadBlock(): unexpected err: %v", err)
	}
	var sb SuperBlock
	var sbBytes [encode.SuperBlockSize]byte
	copy(sbBytes[:], block[:encode.SuperBlockSize])
	encode.DecodeSuperBlock(&sb, &sbBytes)

	wanted := SuperBlock{
		Magic:             0x3b800001,
		TotalBlocks:       8192,
		InodeBitmapBlocks: 1,
		InodeAreaBlocks:   1024,
		DataBitmapBlocks:  2,
		DataAreaBlocks:    7164,
	}
	if sb != wanted {
		t.Fatalf("superblock: wanted `%+v`; found `%+v`", wanted, sb)
	}
	if 1+sb.InodeBitmapBlocks+sb.InodeAreaBlocks+sb.DataBitmapBlocks+
		sb.DataAreaBlocks != sb.TotalBlocks {
		t.Fatal("region sizes do not sum to the block count")
	}

	// the data area starts above block 0 so nil block ids stay unambiguous
	if fsys.dataAreaStart == 0 {
		t.Fatal("data area starts at block 0")
	}

	// every block was touched: no formatting leftovers anywhere
	for i := BlockID(0); i < 8192; i++ {
		if err := dev.ReadBlock(i, block[:]); err != nil {
			t.Fatalf("ReadBlock(): unexpected err: %v", err)
		}
		for _, b := range block {
			if b == 0xaa {
				t.Fatalf("block `%d` still holds preformat bytes", i)
			}
		}
	}

	// the root is an empty directory
	root := fsys.Root()
	isDir, err := root.IsDir()
	if err != nil {
		t.Fatalf("IsDir(): unexpected err: %v", err)
	}
	if !isDir {
		t.Fatal("root: wanted a directory")
	}
	size, err := root.Size()
	if err != nil {
		t.Fatalf("Size(): unexpected err: %v", err)
	}
	if size != 0 {
		t.Fatalf("root size: wanted `0`; found `%d`", size)
	}
	names, err := root.List()
	if err != nil {
		t.Fatalf("List(): unexpected err: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("root entries: wanted none; found `%v`", names)
	}
}

func TestOpen(t *testing.T) {
	dev := device.NewMemory(8192)
	if _, err := Format(dev, 8192, 1); err != nil {
		t.Fatalf("Format(): unexpected err: %v", err)
	}

	fsys, err := Open(dev)
	if err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	if fsys.inodeAreaStart != 2 {
		t.Fatalf(
			"inode area start: wanted `2`; found `%d`",
			fsys.inodeAreaStart,
		)
	}
	if fsys.dataAreaStart != 1028 {
		t.Fatalf(
			"data area start: wanted `1028`; found `%d`",
			fsys.dataAreaStart,
		)
	}

	names, err := fsys.Root().List()
	if err != nil {
		t.Fatalf("List(): unexpected err: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("root entries: wanted none; found `%v`", names)
	}
}

func TestOpenBadMagic(t *testing.T) {
	if _, err := Open(device.NewMemory(64)); !errors.Is(err, BadMagicErr) {
		t.Fatalf("wanted BadMagicErr; found `%v`", err)
	}
}

func TestOpenSurvivesRestart(t *testing.T) {
	dev := device.NewMemory(8192)
	fsys, err := Format(dev, 8192, 1)
	if err != nil {
		t.Fatalf("Format(): unexpected err: %v", err)
	}
	file, err := fsys.Root().Create("persisted", InodeTypeFile)
	if err != nil {
		t.Fatalf("Create(): unexpected err: %v", err)
	}
	if _, err := file.Write(0, []byte("still here")); err != nil {
		t.Fatalf("Write(): unexpected err: %v", err)
	}
	if err := fsys.Close(); err != nil {
		t.Fatalf("Close(): unexpected err: %v", err)
	}

	reopened, err := Open(dev)
	if err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	found, err := reopened.Root().Find("persisted")
	if err != nil {
		t.Fatalf("Find(): unexpected err: %v", err)
	}
	buf := make([]byte, 32)
	n, err := found.Read(0, buf)
	if err != nil {
		t.Fatalf("Read(): unexpected err: %v", err)
	}
	if string(buf[:n]) != "still here" {
		t.Fatalf("content: wanted `still here`; found `%s`", buf[:n])
	}
}

func TestFormatTooSmall(t *testing.T) {
	// 1 inode bitmap block forces 1025 inode-region blocks
	if _, err := Format(device.NewMemory(64), 64, 1); !errors.Is(
		err,
		TooSmallErr,
	) {
		t.Fatalf("wanted TooSmallErr; found `%v`", err)
	}
}
