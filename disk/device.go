package disk

import (
	"errors"
	"fmt"

	"github.com/mit-pdos/go-fatfs/util"
)

var (
	ErrAlreadyOpen = errors.New("disk already open")
	ErrNotOpen     = errors.New("no disk currently open")
)

// Device is the block device a volume is mounted on. The zero value is a
// closed device.
type Device struct {
	d       Disk
	nblocks uint64
}

// Open opens the image file at path.
func (dev *Device) Open(path string) error {
	if dev.d != nil {
		return ErrAlreadyOpen
	}
	d, err := NewFileDisk(path)
	if err != nil {
		return err
	}
	return dev.Attach(d)
}

// Attach opens the device on an already constructed Disk.
func (dev *Device) Attach(d Disk) error {
	if dev.d != nil {
		return ErrAlreadyOpen
	}
	n, err := d.Size()
	if err != nil {
		return fmt.Errorf("sizing disk: %w", err)
	}
	dev.d = d
	dev.nblocks = n
	util.DPrintf(2, "disk open: %d blocks\n", n)
	return nil
}

func (dev *Device) Close() error {
	if dev.d == nil {
		return ErrNotOpen
	}
	err := dev.d.Close()
	dev.d = nil
	dev.nblocks = 0
	return err
}

func (dev *Device) IsOpen() bool {
	return dev.d != nil
}

// Count returns the number of blocks on the device.
func (dev *Device) Count() (uint64, error) {
	if dev.d == nil {
		return 0, ErrNotOpen
	}
	return dev.nblocks, nil
}

func (dev *Device) check(a uint64, b Block) error {
	if dev.d == nil {
		return ErrNotOpen
	}
	if a >= dev.nblocks {
		return fmt.Errorf("%w (%d/%d)", ErrOutOfBounds, a, dev.nblocks)
	}
	if uint64(len(b)) != BlockSize {
		return fmt.Errorf("%w (%d bytes)", ErrBlockSize, len(b))
	}
	return nil
}

// Read transfers block a into b.
func (dev *Device) Read(a uint64, b Block) error {
	if err := dev.check(a, b); err != nil {
		return err
	}
	util.DPrintf(20, "read: %d\n", a)
	return dev.d.ReadTo(a, b)
}

// Write transfers b into block a.
func (dev *Device) Write(a uint64, b Block) error {
	if err := dev.check(a, b); err != nil {
		return err
	}
	util.DPrintf(20, "write: %d\n", a)
	return dev.d.Write(a, b)
}

// Sync issues a barrier on the underlying disk.
func (dev *Device) Sync() error {
	if dev.d == nil {
		return ErrNotOpen
	}
	return dev.d.Barrier()
}
