// Package fat implements the allocation table: one 16-bit "next" entry per
// data block, linking each file's blocks into an EOC-terminated chain.
//
// Every entry access reads (and for updates, rewrites) the whole owning table
// block through the volume's scratch buffer; nothing is cached.
package fat

import (
	"errors"
	"fmt"

	"github.com/mit-pdos/go-fatfs/addr"
	"github.com/mit-pdos/go-fatfs/buf"
	"github.com/mit-pdos/go-fatfs/common"
	"github.com/mit-pdos/go-fatfs/disk"
	"github.com/mit-pdos/go-fatfs/util"
)

var (
	ErrFull   = errors.New("allocation table full")
	ErrBadNum = errors.New("data block out of range")
)

type Fat struct {
	dev       *disk.Device
	buf       *buf.Buf
	nblocks   uint64 // allocation table blocks
	ndata     uint64 // data blocks covered by the table
	dataStart common.Bnum
	zero      disk.Block
}

func MkFat(dev *disk.Device, b *buf.Buf, nblocks uint64, ndata uint64, dataStart common.Bnum) *Fat {
	f := &Fat{
		dev:       dev,
		buf:       b,
		nblocks:   nblocks,
		ndata:     ndata,
		dataStart: dataStart,
		zero:      make(disk.Block, disk.BlockSize),
	}
	return f
}

func (f *Fat) NData() uint64 {
	return f.ndata
}

func (f *Fat) check(d common.Dnum) error {
	if uint64(d) >= f.ndata {
		return fmt.Errorf("%w: %d/%d", ErrBadNum, d, f.ndata)
	}
	return nil
}

// Get returns the entry for data block d.
func (f *Fat) Get(d common.Dnum) (common.Dnum, error) {
	if err := f.check(d); err != nil {
		return 0, err
	}
	a := addr.MkFatAddr(d)
	if err := f.buf.Load(f.dev, a.Blkno); err != nil {
		return 0, fmt.Errorf("reading fat block %d: %w", a.Blkno, err)
	}
	return f.buf.U16Get(a.Off), nil
}

// Set stores v as the entry for data block d.
func (f *Fat) Set(d common.Dnum, v common.Dnum) error {
	if err := f.check(d); err != nil {
		return err
	}
	a := addr.MkFatAddr(d)
	if err := f.buf.Load(f.dev, a.Blkno); err != nil {
		return fmt.Errorf("reading fat block %d: %w", a.Blkno, err)
	}
	f.buf.U16Put(a.Off, v)
	util.DPrintf(10, "fat set %d = %#x\n", d, v)
	if err := f.buf.WriteBack(f.dev); err != nil {
		return fmt.Errorf("writing fat block %d: %w", a.Blkno, err)
	}
	return nil
}

// FindFree returns the lowest free data block.
func (f *Fat) FindFree() (common.Dnum, error) {
	for i := uint64(0); i < f.nblocks; i++ {
		blkno := common.FATSTART + i
		if err := f.buf.Load(f.dev, blkno); err != nil {
			return 0, fmt.Errorf("reading fat block %d: %w", blkno, err)
		}
		for ent := uint64(0); ent < common.NFATENT; ent++ {
			d := i*common.NFATENT + ent
			if d >= f.ndata {
				return 0, ErrFull
			}
			if f.buf.U16Get(ent*common.FATENTSZ) == common.FREE {
				util.DPrintf(10, "findFree: %d\n", d)
				return common.Dnum(d), nil
			}
		}
	}
	return 0, ErrFull
}

// Used counts the non-free entries covering data blocks.
func (f *Fat) Used() (uint64, error) {
	var n uint64
	for i := uint64(0); i < f.nblocks; i++ {
		blkno := common.FATSTART + i
		if err := f.buf.Load(f.dev, blkno); err != nil {
			return 0, fmt.Errorf("reading fat block %d: %w", blkno, err)
		}
		for ent := uint64(0); ent < common.NFATENT; ent++ {
			if i*common.NFATENT+ent >= f.ndata {
				return n, nil
			}
			if f.buf.U16Get(ent*common.FATENTSZ) != common.FREE {
				n += 1
			}
		}
	}
	return n, nil
}

// ChainLength counts the blocks from head to the end of its chain.
func (f *Fat) ChainLength(head common.Dnum) (uint64, error) {
	var n uint64
	d := head
	for d != common.EOC {
		n += 1
		next, err := f.Get(d)
		if err != nil {
			return n, err
		}
		d = next
	}
	return n, nil
}

// Skip follows n links from head, stopping at the last block of the chain if
// it is shorter.
func (f *Fat) Skip(head common.Dnum, n uint64) (common.Dnum, error) {
	d := head
	if d == common.EOC {
		return d, nil
	}
	for i := uint64(0); i < n; i++ {
		next, err := f.Get(d)
		if err != nil {
			return d, err
		}
		if next == common.EOC {
			break
		}
		d = next
	}
	return d, nil
}

// Chain lists the blocks of the chain starting at head, in order.
func (f *Fat) Chain(head common.Dnum) ([]common.Dnum, error) {
	var chain []common.Dnum
	d := head
	for d != common.EOC {
		chain = append(chain, d)
		next, err := f.Get(d)
		if err != nil {
			return chain, err
		}
		d = next
	}
	return chain, nil
}

// clear zeroes data block d
func (f *Fat) clear(d common.Dnum) error {
	return f.dev.Write(addr.DataBlkno(f.dataStart, d), f.zero)
}

// AllocHead allocates a zeroed block as the start of a new chain.
func (f *Fat) AllocHead() (common.Dnum, error) {
	d, err := f.FindFree()
	if err != nil {
		return 0, err
	}
	if err := f.clear(d); err != nil {
		return 0, err
	}
	if err := f.Set(d, common.EOC); err != nil {
		return 0, err
	}
	return d, nil
}

// Extend appends up to n zeroed blocks to the chain starting at head and
// returns how many were appended. Running out of space is not an error; the
// caller sees fewer blocks than it asked for.
func (f *Fat) Extend(head common.Dnum, n uint64) (uint64, error) {
	length, err := f.ChainLength(head)
	if err != nil {
		return 0, err
	}
	if length == 0 {
		return 0, nil
	}
	tail, err := f.Skip(head, length-1)
	if err != nil {
		return 0, err
	}
	var added uint64
	for added < n {
		d, err := f.FindFree()
		if errors.Is(err, ErrFull) {
			break
		}
		if err != nil {
			return added, err
		}
		if err := f.clear(d); err != nil {
			return added, err
		}
		if err := f.Set(tail, d); err != nil {
			return added, err
		}
		if err := f.Set(d, common.EOC); err != nil {
			return added, err
		}
		added += 1
		tail = d
	}
	util.DPrintf(5, "extend %d: %d of %d blocks\n", head, added, n)
	return added, nil
}

// Release frees every block of the chain starting at head.
func (f *Fat) Release(head common.Dnum) error {
	d := head
	for d != common.EOC {
		next, err := f.Get(d)
		if err != nil {
			return err
		}
		if err := f.Set(d, common.FREE); err != nil {
			return err
		}
		d = next
	}
	return nil
}
