// Package fdtable is the bounded table of open file descriptors.
//
// Descriptors opened on the same file share one File (size and head block)
// and each keep their own offset.
package fdtable

import (
	"errors"
	"fmt"

	"github.com/mit-pdos/go-fatfs/common"
)

var (
	ErrFull  = errors.New("descriptor table full")
	ErrBadFd = errors.New("bad file descriptor")
)

type Fd = int

// File is the in-memory state of one open directory record.
type File struct {
	Name string
	Slot uint64 // directory slot
	Size uint64
	Head common.Dnum
	refs uint64
}

type Desc struct {
	inUse bool
	File  *File
	Off   uint64
}

type Table struct {
	descs [common.NOPEN]Desc
	files map[uint64]*File // by directory slot
	nopen uint64
}

func MkTable() *Table {
	return &Table{files: make(map[uint64]*File)}
}

// Add opens a descriptor on the record in slot, taking size and head from
// the record unless the file is already open.
func (t *Table) Add(name string, slot uint64, size uint64, head common.Dnum) (Fd, error) {
	if t.Full() {
		return -1, ErrFull
	}
	for fd := range t.descs {
		if t.descs[fd].inUse {
			continue
		}
		f, ok := t.files[slot]
		if !ok {
			f = &File{Name: name, Slot: slot, Size: size, Head: head}
			t.files[slot] = f
		}
		f.refs += 1
		t.descs[fd] = Desc{inUse: true, File: f, Off: 0}
		t.nopen += 1
		return fd, nil
	}
	return -1, ErrFull
}

func (t *Table) Get(fd Fd) (*Desc, error) {
	if fd < 0 || fd >= len(t.descs) || !t.descs[fd].inUse {
		return nil, fmt.Errorf("%w: %d", ErrBadFd, fd)
	}
	return &t.descs[fd], nil
}

func (t *Table) Remove(fd Fd) error {
	desc, err := t.Get(fd)
	if err != nil {
		return err
	}
	f := desc.File
	f.refs -= 1
	if f.refs == 0 {
		delete(t.files, f.Slot)
	}
	*desc = Desc{}
	t.nopen -= 1
	return nil
}

// IsOpen reports whether any descriptor refers to a file named name.
func (t *Table) IsOpen(name string) bool {
	for _, f := range t.files {
		if f.Name == name {
			return true
		}
	}
	return false
}

func (t *Table) Full() bool {
	return t.nopen == common.NOPEN
}

func (t *Table) NumOpen() uint64 {
	return t.nopen
}
