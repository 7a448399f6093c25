// Package fs is the file system proper: a Volume mounted on one image, with
// a flat namespace of files and descriptor-based positioned I/O.
//
// A Volume is used from one goroutine at a time.
package fs

import (
	"errors"
	"fmt"

	"github.com/mit-pdos/go-fatfs/addr"
	"github.com/mit-pdos/go-fatfs/buf"
	"github.com/mit-pdos/go-fatfs/common"
	"github.com/mit-pdos/go-fatfs/dir"
	"github.com/mit-pdos/go-fatfs/disk"
	"github.com/mit-pdos/go-fatfs/fat"
	"github.com/mit-pdos/go-fatfs/fdtable"
	"github.com/mit-pdos/go-fatfs/super"
	"github.com/mit-pdos/go-fatfs/util"
)

var (
	ErrMounted    = errors.New("volume already mounted")
	ErrNotMounted = errors.New("no volume mounted")
	ErrOpenFiles  = errors.New("files still open")
	ErrFileOpen   = errors.New("file is open")
	ErrNilBuffer  = errors.New("nil buffer")
	ErrBadOffset  = errors.New("offset past end of file")
	ErrOverflow   = errors.New("offset overflow")
)

type Fd = fdtable.Fd

type Volume struct {
	dev     disk.Device
	buf     *buf.Buf
	super   *super.Super
	fat     *fat.Fat
	dir     *dir.Dir
	fds     *fdtable.Table
	mounted bool
}

// Mount returns a Volume mounted on the image at path.
func Mount(path string) (*Volume, error) {
	v := &Volume{}
	if err := v.Mount(path); err != nil {
		return nil, err
	}
	return v, nil
}

// MountDisk returns a Volume mounted on d.
func MountDisk(d disk.Disk) (*Volume, error) {
	v := &Volume{}
	if err := v.MountDisk(d); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Volume) Mount(path string) error {
	if v.mounted {
		return ErrMounted
	}
	if err := v.dev.Open(path); err != nil {
		return fmt.Errorf("mount %s: %w", path, err)
	}
	if err := v.load(); err != nil {
		v.dev.Close()
		return fmt.Errorf("mount %s: %w", path, err)
	}
	return nil
}

// MountDisk mounts an already opened disk. On failure the disk is closed.
func (v *Volume) MountDisk(d disk.Disk) error {
	if v.mounted {
		return ErrMounted
	}
	if err := v.dev.Attach(d); err != nil {
		d.Close()
		return fmt.Errorf("mount: %w", err)
	}
	if err := v.load(); err != nil {
		v.dev.Close()
		return fmt.Errorf("mount: %w", err)
	}
	return nil
}

// load reads and checks the metadata of the open device and sets up the
// in-memory state
func (v *Volume) load() error {
	n, err := v.dev.Count()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: empty image", super.ErrTooSmall)
	}
	b := buf.MkBuf()
	if err := b.Load(&v.dev, common.SUPERBLK); err != nil {
		return fmt.Errorf("reading metadata: %w", err)
	}
	s := super.Decode(b.Blk)
	if err := s.Validate(n); err != nil {
		return err
	}
	v.buf = b
	v.super = s
	v.fat = fat.MkFat(&v.dev, b, s.NFat(), s.NData(), s.DataStartBlkno())
	v.dir = dir.MkDir(&v.dev, b, s.RootDirBlkno())
	v.fds = fdtable.MkTable()
	v.mounted = true
	util.DPrintf(1, "mount: %d blocks, %d data\n", s.NTotal(), s.NData())
	return nil
}

// Unmount flushes and closes the device. It fails while any descriptor is
// open.
func (v *Volume) Unmount() error {
	if !v.mounted {
		return ErrNotMounted
	}
	if v.fds.NumOpen() > 0 {
		return fmt.Errorf("%w: %d descriptors", ErrOpenFiles, v.fds.NumOpen())
	}
	serr := v.dev.Sync()
	cerr := v.dev.Close()
	*v = Volume{}
	if serr != nil {
		return serr
	}
	return cerr
}

func (v *Volume) IsMounted() bool {
	return v.mounted
}

func (v *Volume) checkMounted() error {
	if !v.mounted {
		return ErrNotMounted
	}
	return nil
}

// Info describes the geometry and occupancy of a mounted volume.
type Info struct {
	TotalBlocks uint64 `yaml:"total_blk_count"`
	FatBlocks   uint64 `yaml:"fat_blk_count"`
	RootDir     uint64 `yaml:"rdir_blk"`
	DataStart   uint64 `yaml:"data_blk"`
	DataBlocks  uint64 `yaml:"data_blk_count"`
	FatFree     uint64 `yaml:"fat_free"`
	DirFree     uint64 `yaml:"rdir_free"`
}

func (i Info) String() string {
	return fmt.Sprintf("FS Info:\n"+
		"total_blk_count=%d\n"+
		"fat_blk_count=%d\n"+
		"rdir_blk=%d\n"+
		"data_blk=%d\n"+
		"data_blk_count=%d\n"+
		"fat_free_ratio=%d/%d\n"+
		"rdir_free_ratio=%d/%d\n",
		i.TotalBlocks, i.FatBlocks, i.RootDir, i.DataStart, i.DataBlocks,
		i.FatFree, i.DataBlocks, i.DirFree, common.NDIRENT)
}

func (v *Volume) Info() (Info, error) {
	if err := v.checkMounted(); err != nil {
		return Info{}, err
	}
	used, err := v.fat.Used()
	if err != nil {
		return Info{}, err
	}
	free, err := v.dir.NumFree()
	if err != nil {
		return Info{}, err
	}
	s := v.super
	return Info{
		TotalBlocks: s.NTotal(),
		FatBlocks:   s.NFat(),
		RootDir:     s.RootDirBlkno(),
		DataStart:   s.DataStartBlkno(),
		DataBlocks:  s.NData(),
		FatFree:     s.NData() - used,
		DirFree:     free,
	}, nil
}

func (v *Volume) Create(name string) error {
	if err := v.checkMounted(); err != nil {
		return err
	}
	return v.dir.Create(name)
}

// Delete removes name and frees its blocks. Open files cannot be deleted.
func (v *Volume) Delete(name string) error {
	if err := v.checkMounted(); err != nil {
		return err
	}
	if err := dir.ValidName(name); err != nil {
		return err
	}
	if v.fds.IsOpen(name) {
		return fmt.Errorf("%w: `%s`", ErrFileOpen, name)
	}
	de, err := v.dir.Remove(name)
	if err != nil {
		return err
	}
	return v.fat.Release(de.Head)
}

// EraseAll deletes every file on the volume.
func (v *Volume) EraseAll() error {
	if err := v.checkMounted(); err != nil {
		return err
	}
	if v.fds.NumOpen() > 0 {
		return fmt.Errorf("%w: %d descriptors", ErrOpenFiles, v.fds.NumOpen())
	}
	ents, err := v.dir.List()
	if err != nil {
		return err
	}
	for _, de := range ents {
		if err := v.Delete(de.Name); err != nil {
			return err
		}
	}
	return nil
}

// List returns the files on the volume in directory order.
func (v *Volume) List() ([]dir.DirEnt, error) {
	if err := v.checkMounted(); err != nil {
		return nil, err
	}
	return v.dir.List()
}

func (v *Volume) Open(name string) (Fd, error) {
	if err := v.checkMounted(); err != nil {
		return -1, err
	}
	if v.fds.Full() {
		return -1, fdtable.ErrFull
	}
	slot, de, err := v.dir.Lookup(name)
	if err != nil {
		return -1, err
	}
	fd, err := v.fds.Add(de.Name, slot, uint64(de.Size), de.Head)
	if err != nil {
		return -1, err
	}
	util.DPrintf(3, "open %s: fd %d\n", name, fd)
	return fd, nil
}

func (v *Volume) desc(fd Fd) (*fdtable.Desc, error) {
	if err := v.checkMounted(); err != nil {
		return nil, err
	}
	return v.fds.Get(fd)
}

func (v *Volume) Close(fd Fd) error {
	if err := v.checkMounted(); err != nil {
		return err
	}
	return v.fds.Remove(fd)
}

// Stat returns the size of the file open on fd.
func (v *Volume) Stat(fd Fd) (uint64, error) {
	desc, err := v.desc(fd)
	if err != nil {
		return 0, err
	}
	return desc.File.Size, nil
}

// Seek sets the offset of fd. Seeking to the end of the file is allowed;
// seeking past it is not.
func (v *Volume) Seek(fd Fd, off uint64) error {
	desc, err := v.desc(fd)
	if err != nil {
		return err
	}
	if off > desc.File.Size {
		return fmt.Errorf("%w: %d > %d", ErrBadOffset, off, desc.File.Size)
	}
	desc.Off = off
	return nil
}

func (v *Volume) dataBlkno(d common.Dnum) common.Bnum {
	return addr.DataBlkno(v.super.DataStartBlkno(), d)
}

// Write writes data at the offset of fd, growing the file as needed, and
// returns the number of bytes written. When the volume fills up the write is
// cut short at the last block that could be allocated.
func (v *Volume) Write(fd Fd, data []byte) (uint64, error) {
	desc, err := v.desc(fd)
	if err != nil {
		return 0, err
	}
	if data == nil {
		return 0, ErrNilBuffer
	}
	if len(data) == 0 {
		return 0, nil
	}
	f := desc.File
	off := desc.Off
	if util.SumOverflows(off, uint64(len(data))) {
		return 0, fmt.Errorf("%w: %d+%d", ErrOverflow, off, len(data))
	}

	if f.Head == common.EOC {
		head, err := v.fat.AllocHead()
		if errors.Is(err, fat.ErrFull) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		f.Head = head
		if err := v.dir.SetHead(f.Slot, head); err != nil {
			return 0, err
		}
	}

	end := off + uint64(len(data))
	nblks, err := v.fat.ChainLength(f.Head)
	if err != nil {
		return 0, err
	}
	capacity := nblks * disk.BlockSize
	if end > capacity {
		want := util.RoundUp(end-capacity, disk.BlockSize)
		added, err := v.fat.Extend(f.Head, want)
		if err != nil {
			return 0, err
		}
		capacity += added * disk.BlockSize
		if end > capacity {
			util.DPrintf(1, "write %s: volume full, %d of %d bytes\n",
				f.Name, capacity-off, len(data))
			end = capacity
		}
	}
	if off >= end {
		return 0, nil
	}

	d, err := v.fat.Skip(f.Head, off/disk.BlockSize)
	if err != nil {
		return 0, err
	}
	var n uint64
	for off < end {
		inblk := off % disk.BlockSize
		cnt := util.Min(disk.BlockSize-inblk, end-off)
		if err := v.buf.WriteDirect(&v.dev, v.dataBlkno(d), inblk, data[n:n+cnt]); err != nil {
			return n, fmt.Errorf("writing data block %d: %w", d, err)
		}
		n += cnt
		off += cnt
		desc.Off = off
		if off > f.Size {
			f.Size = off
		}
		if off < end {
			d, err = v.fat.Get(d)
			if err != nil {
				return n, err
			}
		}
	}
	if err := v.dir.SetSize(f.Slot, uint32(f.Size)); err != nil {
		return n, err
	}
	return n, nil
}

// Read fills dst from the offset of fd and returns the number of bytes read,
// which is short at the end of the file.
func (v *Volume) Read(fd Fd, dst []byte) (uint64, error) {
	desc, err := v.desc(fd)
	if err != nil {
		return 0, err
	}
	if dst == nil {
		return 0, ErrNilBuffer
	}
	if len(dst) == 0 {
		return 0, nil
	}
	f := desc.File
	off := desc.Off
	if util.SumOverflows(off, uint64(len(dst))) {
		return 0, fmt.Errorf("%w: %d+%d", ErrOverflow, off, len(dst))
	}
	if f.Head == common.EOC || off >= f.Size {
		return 0, nil
	}
	end := util.Min(off+uint64(len(dst)), f.Size)

	d, err := v.fat.Skip(f.Head, off/disk.BlockSize)
	if err != nil {
		return 0, err
	}
	var n uint64
	for off < end {
		inblk := off % disk.BlockSize
		cnt := util.Min(disk.BlockSize-inblk, end-off)
		if err := v.buf.ReadDirect(&v.dev, v.dataBlkno(d), inblk, dst[n:n+cnt]); err != nil {
			return n, fmt.Errorf("reading data block %d: %w", d, err)
		}
		n += cnt
		off += cnt
		desc.Off = off
		if off < end {
			d, err = v.fat.Get(d)
			if err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Chain lists the data blocks of name in file order.
func (v *Volume) Chain(name string) ([]common.Dnum, error) {
	if err := v.checkMounted(); err != nil {
		return nil, err
	}
	_, de, err := v.dir.Lookup(name)
	if err != nil {
		return nil, err
	}
	return v.fat.Chain(de.Head)
}

// ReadDataBlock copies data block d into dst.
func (v *Volume) ReadDataBlock(d common.Dnum, dst disk.Block) error {
	if err := v.checkMounted(); err != nil {
		return err
	}
	if uint64(d) >= v.super.NData() {
		return fmt.Errorf("%w: %d/%d", fat.ErrBadNum, d, v.super.NData())
	}
	return v.dev.Read(v.dataBlkno(d), dst)
}
