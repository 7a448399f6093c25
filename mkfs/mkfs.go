// Package mkfs builds fresh volume images.
package mkfs

import (
	"errors"
	"fmt"

	"github.com/mit-pdos/go-fatfs/addr"
	"github.com/mit-pdos/go-fatfs/buf"
	"github.com/mit-pdos/go-fatfs/common"
	"github.com/mit-pdos/go-fatfs/disk"
	"github.com/mit-pdos/go-fatfs/super"
	"github.com/mit-pdos/go-fatfs/util"
)

var ErrDiskSize = errors.New("disk size does not match layout")

// Format writes an empty volume with dataBlocks data blocks onto d, which
// must be exactly the size the layout calls for. Data blocks are left as
// they are; allocation zeroes them.
func Format(d disk.Disk, dataBlocks uint64) error {
	s, err := super.MkSuper(dataBlocks)
	if err != nil {
		return err
	}
	n, err := d.Size()
	if err != nil {
		return err
	}
	if n != s.NTotal() {
		return fmt.Errorf("%w: have %d blocks, need %d", ErrDiskSize, n, s.NTotal())
	}

	if err := d.Write(common.SUPERBLK, s.Encode()); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}

	b := buf.MkBuf()
	for i := uint64(0); i < s.NFat(); i++ {
		b.Clear()
		b.Blkno = common.FATSTART + i
		if i == 0 {
			// data block 0 is reserved
			b.U16Put(addr.MkFatAddr(0).Off, common.EOC)
		}
		if err := d.Write(b.Blkno, b.Blk); err != nil {
			return fmt.Errorf("writing fat block %d: %w", b.Blkno, err)
		}
	}

	b.Clear()
	if err := d.Write(s.RootDirBlkno(), b.Blk); err != nil {
		return fmt.Errorf("writing root directory: %w", err)
	}
	util.DPrintf(1, "format: %d blocks, %d fat, %d data\n",
		s.NTotal(), s.NFat(), s.NData())
	return d.Barrier()
}

// Create makes a new image file at path holding dataBlocks data blocks.
func Create(path string, dataBlocks uint64) error {
	s, err := super.MkSuper(dataBlocks)
	if err != nil {
		return err
	}
	d, err := disk.CreateFileDisk(path, s.NTotal())
	if err != nil {
		return err
	}
	if err := Format(d, dataBlocks); err != nil {
		d.Close()
		return err
	}
	return d.Close()
}

// NewMemDisk returns a formatted in-memory disk.
func NewMemDisk(dataBlocks uint64) (disk.Disk, error) {
	s, err := super.MkSuper(dataBlocks)
	if err != nil {
		return nil, err
	}
	d := disk.NewMemDisk(s.NTotal())
	if err := Format(d, dataBlocks); err != nil {
		return nil, err
	}
	return d, nil
}
