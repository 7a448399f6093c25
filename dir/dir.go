// Package dir manages the root directory: a single block of fixed-size file
// records forming a flat namespace.
package dir

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-fatfs/addr"
	"github.com/mit-pdos/go-fatfs/buf"
	"github.com/mit-pdos/go-fatfs/common"
	"github.com/mit-pdos/go-fatfs/disk"
	"github.com/mit-pdos/go-fatfs/util"
)

var (
	ErrInvalidName = errors.New("invalid file name")
	ErrExists      = errors.New("file exists")
	ErrNotFound    = errors.New("no such file")
	ErrFull        = errors.New("root directory full")
	ErrBadSlot     = errors.New("directory slot out of range")
)

// DirEnt is one directory record. Encoded layout (32 bytes):
//
//  name[16]  NUL terminated
//  size      u32
//  head      u16, EOC if the file has no blocks
//  pad[10]
type DirEnt struct {
	Name string
	Size uint32
	Head common.Dnum
}

func (de DirEnt) IsFree() bool {
	return de.Name == ""
}

func decodeDirEnt(b []byte) DirEnt {
	dec := marshal.NewDec(b)
	name := dec.GetBytes(common.NAMELEN)
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	de := DirEnt{Name: string(name)}
	de.Size = dec.GetInt32()
	de.Head = util.GetU16(dec)
	return de
}

func (de DirEnt) encode() []byte {
	enc := marshal.NewEnc(common.DIRENTSZ)
	name := make([]byte, common.NAMELEN)
	copy(name, de.Name)
	enc.PutBytes(name)
	enc.PutInt32(de.Size)
	util.PutU16(enc, de.Head)
	return enc.Finish()
}

// ValidName checks that name fits a record: non-empty, shorter than NAMELEN
// (room for the terminator), and free of '/' and NUL.
func ValidName(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if uint64(len(name))+1 > common.NAMELEN {
		return fmt.Errorf("%w: `%s` is longer than %d bytes",
			ErrInvalidName, name, common.NAMELEN-1)
	}
	if strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("%w: `%s`", ErrInvalidName, name)
	}
	return nil
}

type Dir struct {
	dev   *disk.Device
	buf   *buf.Buf
	blkno common.Bnum
}

func MkDir(dev *disk.Device, b *buf.Buf, blkno common.Bnum) *Dir {
	return &Dir{dev: dev, buf: b, blkno: blkno}
}

func (d *Dir) load() error {
	if err := d.buf.Load(d.dev, d.blkno); err != nil {
		return fmt.Errorf("reading root directory: %w", err)
	}
	return nil
}

func (d *Dir) store() error {
	if err := d.buf.WriteBack(d.dev); err != nil {
		return fmt.Errorf("writing root directory: %w", err)
	}
	return nil
}

// entry decodes slot from the loaded directory block
func (d *Dir) entry(slot uint64) DirEnt {
	a := addr.MkDirAddr(d.blkno, slot)
	return decodeDirEnt(d.buf.Blk[a.Off : a.Off+common.DIRENTSZ])
}

func (d *Dir) put(slot uint64, de DirEnt) {
	a := addr.MkDirAddr(d.blkno, slot)
	d.buf.Install(a.Off, de.encode())
}

// find returns the slot holding name in the loaded directory block
func (d *Dir) find(name string) (uint64, bool) {
	for slot := uint64(0); slot < common.NDIRENT; slot++ {
		if d.entry(slot).Name == name {
			return slot, true
		}
	}
	return 0, false
}

// Create adds an empty file in the first free slot.
func (d *Dir) Create(name string) error {
	if err := ValidName(name); err != nil {
		return err
	}
	if err := d.load(); err != nil {
		return err
	}
	var free uint64
	found := false
	for slot := uint64(0); slot < common.NDIRENT; slot++ {
		de := d.entry(slot)
		if de.Name == name {
			return fmt.Errorf("%w: `%s`", ErrExists, name)
		}
		if !found && de.IsFree() {
			free = slot
			found = true
		}
	}
	if !found {
		return ErrFull
	}
	d.put(free, DirEnt{Name: name, Size: 0, Head: common.EOC})
	util.DPrintf(3, "create %s: slot %d\n", name, free)
	return d.store()
}

// Lookup returns the slot and record for name.
func (d *Dir) Lookup(name string) (uint64, DirEnt, error) {
	if err := ValidName(name); err != nil {
		return 0, DirEnt{}, err
	}
	if err := d.load(); err != nil {
		return 0, DirEnt{}, err
	}
	slot, ok := d.find(name)
	if !ok {
		return 0, DirEnt{}, fmt.Errorf("%w: `%s`", ErrNotFound, name)
	}
	return slot, d.entry(slot), nil
}

// Remove clears the record for name and returns what it held. The caller
// owns releasing the chain.
func (d *Dir) Remove(name string) (DirEnt, error) {
	if err := ValidName(name); err != nil {
		return DirEnt{}, err
	}
	if err := d.load(); err != nil {
		return DirEnt{}, err
	}
	slot, ok := d.find(name)
	if !ok {
		return DirEnt{}, fmt.Errorf("%w: `%s`", ErrNotFound, name)
	}
	de := d.entry(slot)
	d.buf.Install(addr.MkDirAddr(d.blkno, slot).Off, make([]byte, common.DIRENTSZ))
	util.DPrintf(3, "remove %s: slot %d\n", name, slot)
	return de, d.store()
}

// Get returns the record in slot.
func (d *Dir) Get(slot uint64) (DirEnt, error) {
	if slot >= common.NDIRENT {
		return DirEnt{}, fmt.Errorf("%w: %d", ErrBadSlot, slot)
	}
	if err := d.load(); err != nil {
		return DirEnt{}, err
	}
	return d.entry(slot), nil
}

func (d *Dir) update(slot uint64, f func(de *DirEnt)) error {
	if slot >= common.NDIRENT {
		return fmt.Errorf("%w: %d", ErrBadSlot, slot)
	}
	if err := d.load(); err != nil {
		return err
	}
	de := d.entry(slot)
	f(&de)
	d.put(slot, de)
	return d.store()
}

func (d *Dir) SetSize(slot uint64, size uint32) error {
	return d.update(slot, func(de *DirEnt) { de.Size = size })
}

func (d *Dir) SetHead(slot uint64, head common.Dnum) error {
	return d.update(slot, func(de *DirEnt) { de.Head = head })
}

// List returns the records in use, in slot order.
func (d *Dir) List() ([]DirEnt, error) {
	if err := d.load(); err != nil {
		return nil, err
	}
	var ents []DirEnt
	for slot := uint64(0); slot < common.NDIRENT; slot++ {
		de := d.entry(slot)
		if !de.IsFree() {
			ents = append(ents, de)
		}
	}
	return ents, nil
}

// NumFree counts the free slots.
func (d *Dir) NumFree() (uint64, error) {
	if err := d.load(); err != nil {
		return 0, err
	}
	var n uint64
	for slot := uint64(0); slot < common.NDIRENT; slot++ {
		if d.entry(slot).IsFree() {
			n += 1
		}
	}
	return n, nil
}
