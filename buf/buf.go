// Package buf manages the scratch block every partial-block access goes
// through. A volume owns exactly one Buf; callers may not hold on to its
// contents across another call that uses it.
package buf

import (
	"encoding/binary"

	"github.com/mit-pdos/go-fatfs/common"
	"github.com/mit-pdos/go-fatfs/disk"
	"github.com/mit-pdos/go-fatfs/util"
)

// A Buf is a block-sized staging area for one disk block
type Buf struct {
	Blkno common.Bnum
	Blk   disk.Block
	dirty bool // has Blk been modified since Load?
}

func MkBuf() *Buf {
	b := &Buf{
		Blk:   make(disk.Block, disk.BlockSize),
		dirty: false,
	}
	return b
}

func (buf *Buf) Clear() {
	for i := range buf.Blk {
		buf.Blk[i] = 0
	}
	buf.dirty = false
}

// Load replaces the contents of buf with block blkno
func (buf *Buf) Load(dev *disk.Device, blkno common.Bnum) error {
	buf.Clear()
	buf.Blkno = blkno
	return dev.Read(blkno, buf.Blk)
}

// WriteBack writes buf to the block it was loaded from, if it was modified
func (buf *Buf) WriteBack(dev *disk.Device) error {
	if !buf.dirty {
		return nil
	}
	err := dev.Write(buf.Blkno, buf.Blk)
	if err == nil {
		buf.dirty = false
	}
	return err
}

// Install copies src into buf at byte offset off
func (buf *Buf) Install(off uint64, src []byte) {
	util.DPrintf(20, "%d: install %d bytes at %d\n", buf.Blkno, len(src), off)
	copy(buf.Blk[off:], src)
	buf.SetDirty()
}

// Extract copies len(dst) bytes of buf starting at off into dst
func (buf *Buf) Extract(off uint64, dst []byte) {
	copy(dst, buf.Blk[off:off+uint64(len(dst))])
}

func (buf *Buf) IsDirty() bool {
	return buf.dirty
}

func (buf *Buf) SetDirty() {
	buf.dirty = true
}

func (buf *Buf) U16Get(off uint64) uint16 {
	return binary.LittleEndian.Uint16(buf.Blk[off : off+2])
}

func (buf *Buf) U16Put(off uint64, v uint16) {
	binary.LittleEndian.PutUint16(buf.Blk[off:off+2], v)
	buf.SetDirty()
}

// WriteDirect writes data into block blkno at off. A write covering the whole
// block skips the read; anything smaller goes through buf so the rest of the
// block is preserved.
func (buf *Buf) WriteDirect(dev *disk.Device, blkno common.Bnum, off uint64, data []byte) error {
	if off == 0 && uint64(len(data)) == disk.BlockSize {
		return dev.Write(blkno, data)
	}
	if err := buf.Load(dev, blkno); err != nil {
		return err
	}
	buf.Install(off, data)
	return buf.WriteBack(dev)
}

// ReadDirect fills dst from block blkno starting at off.
func (buf *Buf) ReadDirect(dev *disk.Device, blkno common.Bnum, off uint64, dst []byte) error {
	if off == 0 && uint64(len(dst)) == disk.BlockSize {
		return dev.Read(blkno, dst)
	}
	if err := buf.Load(dev, blkno); err != nil {
		return err
	}
	buf.Extract(off, dst)
	return nil
}
