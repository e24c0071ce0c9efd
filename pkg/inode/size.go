package inode

import (
	"fmt"

	"github.com/weberc2/blockfs/pkg/cache"
	. "github.com/weberc2/blockfs/pkg/types"
)

// IncreaseSize grows the inode to newSize, wiring the caller-allocated
// block ids into the index structures. newBlocks must hold exactly
// BlocksNumNeeded(newSize) ids, in consumption order: direct slots, the
// indirect1 block when the direct slots overflow, indirect1 entries, the
// indirect2 block when indirect1 overflows, then per row of indirect2 the
// row block followed by its entries. A length mismatch is an accounting
// bug and panics.
func IncreaseSize(
	cm *cache.Manager,
	di *DiskInode,
	newSize uint32,
	newBlocks []BlockID,
) error {
	if newSize < di.Size {
		panic("increasing to a smaller size")
	}
	next := 0
	take := func() BlockID {
		if next >= len(newBlocks) {
			panic(fmt.Sprintf(
				"growing to `%d` bytes: consumed all `%d` supplied blocks",
				newSize,
				len(newBlocks),
			))
		}
		id := newBlocks[next]
		next++
		return id
	}

	if err := increase(cm, di, di.DataBlocks(), DataBlocksFor(newSize), take); err != nil {
		return fmt.Errorf("growing inode to `%d` bytes: %w", newSize, err)
	}
	if next != len(newBlocks) {
		panic(fmt.Sprintf(
			"growing to `%d` bytes: consumed `%d` of `%d` supplied blocks",
			newSize,
			next,
			len(newBlocks),
		))
	}
	di.Size = newSize
	return nil
}

func increase(
	cm *cache.Manager,
	di *DiskInode,
	curr, total uint32,
	take func() BlockID,
) error {
	for curr < total && curr < InodeDirectCount {
		di.Direct[curr] = take()
		curr++
	}
	if total <= InodeDirectCount {
		return nil
	}
	if curr == InodeDirectCount {
		di.Indirect1 = take()
	}
	curr -= InodeDirectCount
	total -= InodeDirectCount

	if curr < total && curr < InodeIndirect1Count {
		err := modifyIndirect(cm, di.Indirect1, func(ind *IndirectBlock) error {
			for curr < total && curr < InodeIndirect1Count {
				ind[curr] = take()
				curr++
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	if total <= InodeIndirect1Count {
		return nil
	}
	if curr == InodeIndirect1Count {
		di.Indirect2 = take()
	}
	curr -= InodeIndirect1Count
	total -= InodeIndirect1Count

	a0, b0 := curr/InodeIndirect1Count, curr%InodeIndirect1Count
	a1, b1 := total/InodeIndirect1Count, total%InodeIndirect1Count
	return modifyIndirect(cm, di.Indirect2, func(ind2 *IndirectBlock) error {
		for a0 < a1 || (a0 == a1 && b0 < b1) {
			if b0 == 0 {
				ind2[a0] = take()
			}
			err := modifyIndirect(cm, ind2[a0], func(row *IndirectBlock) error {
				row[b0] = take()
				return nil
			})
			if err != nil {
				return err
			}
			b0++
			if b0 == InodeIndirect1Count {
				b0 = 0
				a0++
			}
		}
		return nil
	})
}

// DecreaseSize truncates the inode to newSize and returns every freed
// block id: the data blocks past the new size plus any index blocks no
// longer needed, in the order direct…, indirect1, its entries…,
// indirect2, then per row its entries followed by the row block (the grow
// path takes a row block before its entries). Freed slots are zeroed. The caller owns
// returning the ids to the data bitmap.
func DecreaseSize(
	cm *cache.Manager,
	di *DiskInode,
	newSize uint32,
) ([]BlockID, error) {
	if newSize > di.Size {
		panic("decreasing to a larger size")
	}
	oldBlocks := di.DataBlocks()
	newBlocks := DataBlocksFor(newSize)
	var freed []BlockID

	for i := newBlocks; i < oldBlocks && i < InodeDirectCount; i++ {
		freed = append(freed, di.Direct[i])
		di.Direct[i] = BlockNil
	}

	if oldBlocks > InodeDirectCount {
		if newBlocks <= InodeDirectCount {
			freed = append(freed, di.Indirect1)
		}
		lo := uint32(0)
		if newBlocks > InodeDirectCount {
			lo = newBlocks - InodeDirectCount
		}
		hi := min32(oldBlocks, Indirect1Bound) - InodeDirectCount
		if hi > lo {
			err := modifyIndirect(cm, di.Indirect1, func(ind *IndirectBlock) error {
				for j := lo; j < hi; j++ {
					freed = append(freed, ind[j])
					ind[j] = BlockNil
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf(
					"truncating inode to `%d` bytes: %w",
					newSize,
					err,
				)
			}
		}
		if newBlocks <= InodeDirectCount {
			di.Indirect1 = BlockNil
		}
	}

	if oldBlocks > Indirect1Bound {
		if newBlocks <= Indirect1Bound {
			freed = append(freed, di.Indirect2)
		}
		oldRem := oldBlocks - Indirect1Bound
		newRem := uint32(0)
		if newBlocks > Indirect1Bound {
			newRem = newBlocks - Indirect1Bound
		}
		rows := (oldRem + InodeIndirect1Count - 1) / InodeIndirect1Count
		err := modifyIndirect(cm, di.Indirect2, func(ind2 *IndirectBlock) error {
			for r := uint32(0); r < rows; r++ {
				rowStart := r * InodeIndirect1Count
				lo := uint32(0)
				if newRem > rowStart {
					lo = min32(newRem-rowStart, InodeIndirect1Count)
				}
				hi := min32(oldRem-rowStart, InodeIndirect1Count)
				if hi > lo {
					err := modifyIndirect(cm, ind2[r], func(row *IndirectBlock) error {
						for j := lo; j < hi; j++ {
							freed = append(freed, row[j])
							row[j] = BlockNil
						}
						return nil
					})
					if err != nil {
						return err
					}
				}
				// the row block itself goes once it holds no live entries
				if lo == 0 && hi > 0 {
					freed = append(freed, ind2[r])
					ind2[r] = BlockNil
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf(
				"truncating inode to `%d` bytes: %w",
				newSize,
				err,
			)
		}
		if newBlocks <= Indirect1Bound {
			di.Indirect2 = BlockNil
		}
	}

	di.Size = newSize
	return freed, nil
}

// ClearSize truncates to zero; the returned vector has exactly
// TotalBlocks(size) ids.
func ClearSize(cm *cache.Manager, di *DiskInode) ([]BlockID, error) {
	return DecreaseSize(cm, di, 0)
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
