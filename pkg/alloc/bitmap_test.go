package alloc

import (
	"errors"
	"testing"

	"github.com/weberc2/blockfs/pkg/cache"
	"github.com/weberc2/blockfs/pkg/device"
	. "github.com/weberc2/blockfs/pkg/types"
)

func newTestManager() *cache.Manager {
	return cache.NewManager(device.NewMemory(16), CacheLimit)
}

func TestAllocOrdering(t *testing.T) {
	cm := newTestManager()
	bm := New(0, 2)

	// fresh bitmap hands out ascending bits
	for wanted := uint32(0); wanted < 10; wanted++ {
		found, err := bm.Alloc(cm)
		if err != nil {
			t.Fatalf("Alloc(): unexpected err: %v", err)
		}
		if found != wanted {
			t.Fatalf("Alloc(): wanted bit `%d`; found `%d`", wanted, found)
		}
	}

	// freed bits are reused lowest-first
	if err := bm.Dealloc(cm, 7); err != nil {
		t.Fatalf("Dealloc(): unexpected err: %v", err)
	}
	if err := bm.Dealloc(cm, 3); err != nil {
		t.Fatalf("Dealloc(): unexpected err: %v", err)
	}
	for _, wanted := range []uint32{3, 7, 10} {
		found, err := bm.Alloc(cm)
		if err != nil {
			t.Fatalf("Alloc(): unexpected err: %v", err)
		}
		if found != wanted {
			t.Fatalf("Alloc(): wanted bit `%d`; found `%d`", wanted, found)
		}
	}
}

func TestAllocCrossesWords(t *testing.T) {
	cm := newTestManager()
	bm := New(0, 1)

	for i := uint32(0); i < 100; i++ {
		found, err := bm.Alloc(cm)
		if err != nil {
			t.Fatalf("Alloc(): unexpected err: %v", err)
		}
		if found != i {
			t.Fatalf("Alloc(): wanted bit `%d`; found `%d`", i, found)
		}
	}
}

func TestAllocCrossesBlocks(t *testing.T) {
	cm := newTestManager()
	bm := New(0, 2)

	for i := uint32(0); i < BlockBits; i++ {
		if _, err := bm.Alloc(cm); err != nil {
			t.Fatalf("Alloc(): unexpected err: %v", err)
		}
	}
	found, err := bm.Alloc(cm)
	if err != nil {
		t.Fatalf("Alloc(): unexpected err: %v", err)
	}
	if found != BlockBits {
		t.Fatalf(
			"first bit of second block: wanted `%d`; found `%d`",
			BlockBits,
			found,
		)
	}
}

func TestAllocExhausted(t *testing.T) {
	cm := newTestManager()
	bm := New(0, 1)

	if bm.Maximum() != BlockBits {
		t.Fatalf("Maximum(): wanted `%d`; found `%d`", BlockBits, bm.Maximum())
	}
	for i := uint32(0); i < bm.Maximum(); i++ {
		if _, err := bm.Alloc(cm); err != nil {
			t.Fatalf("Alloc(): unexpected err: %v", err)
		}
	}
	if _, err := bm.Alloc(cm); !errors.Is(err, ExhaustedErr) {
		t.Fatalf("wanted ExhaustedErr; found `%v`", err)
	}

	// freeing any bit makes that bit allocatable again
	if err := bm.Dealloc(cm, 4095); err != nil {
		t.Fatalf("Dealloc(): unexpected err: %v", err)
	}
	found, err := bm.Alloc(cm)
	if err != nil {
		t.Fatalf("Alloc(): unexpected err: %v", err)
	}
	if found != 4095 {
		t.Fatalf("Alloc(): wanted bit `4095`; found `%d`", found)
	}
}

func TestDeallocDoubleFreePanics(t *testing.T) {
	cm := newTestManager()
	bm := New(0, 1)

	bit, err := bm.Alloc(cm)
	if err != nil {
		t.Fatalf("Alloc(): unexpected err: %v", err)
	}
	if err := bm.Dealloc(cm, bit); err != nil {
		t.Fatalf("Dealloc(): unexpected err: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("wanted panic on double free")
		}
	}()
	_ = bm.Dealloc(cm, bit)
}

func TestBitmapPersists(t *testing.T) {
	mem := device.NewMemory(16)
	cm := cache.NewManager(mem, CacheLimit)
	bm := New(3, 1)

	for i := 0; i < 5; i++ {
		if _, err := bm.Alloc(cm); err != nil {
			t.Fatalf("Alloc(): unexpected err: %v", err)
		}
	}
	if err := cm.SyncAll(); err != nil {
		t.Fatalf("SyncAll(): unexpected err: %v", err)
	}

	// a fresh cache over the same device sees the allocated bits
	found, err := bm.Alloc(cache.NewManager(mem, CacheLimit))
	if err != nil {
		t.Fatalf("Alloc(): unexpected err: %v", err)
	}
	if found != 5 {
		t.Fatalf("Alloc(): wanted bit `5`; found `%d`", found)
	}
}
