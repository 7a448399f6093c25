package disk

import (
	"fmt"

	goosedisk "github.com/tchajed/goose/machine/disk"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-fatfs/util"
)

var _ Disk = FileDisk{}

// FileDisk is a Disk backed by an image file.
type FileDisk struct {
	fd        int
	numBlocks uint64
}

// NewFileDisk opens an existing image. The image size must be a multiple of
// BlockSize.
func NewFileDisk(path string) (FileDisk, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return FileDisk{}, fmt.Errorf("opening image `%s`: %w", path, err)
	}
	var stat unix.Stat_t
	err = unix.Fstat(fd, &stat)
	if err != nil {
		unix.Close(fd)
		return FileDisk{}, fmt.Errorf("stat image `%s`: %w", path, err)
	}
	if uint64(stat.Size)%BlockSize != 0 {
		unix.Close(fd)
		return FileDisk{}, fmt.Errorf(
			"%w: `%s` is %d bytes",
			ErrImageSize,
			path,
			stat.Size,
		)
	}
	return FileDisk{fd, uint64(stat.Size) / BlockSize}, nil
}

// CreateFileDisk creates (or truncates) path to hold numBlocks zero blocks.
func CreateFileDisk(path string, numBlocks uint64) (FileDisk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_TRUNC, 0644)
	if err != nil {
		return FileDisk{}, fmt.Errorf("creating image `%s`: %w", path, err)
	}
	err = unix.Ftruncate(fd, int64(numBlocks*BlockSize))
	if err != nil {
		unix.Close(fd)
		return FileDisk{}, fmt.Errorf("sizing image `%s`: %w", path, err)
	}
	return FileDisk{fd, numBlocks}, nil
}

func (d FileDisk) ReadTo(a uint64, buf Block) error {
	if uint64(len(buf)) != BlockSize {
		return ErrBlockSize
	}
	if a >= d.numBlocks {
		return fmt.Errorf("%w: read at %d/%d", ErrOutOfBounds, a, d.numBlocks)
	}
	n, err := unix.Pread(d.fd, buf, int64(a*BlockSize))
	if err != nil {
		return fmt.Errorf("reading block %d: %w", a, err)
	}
	if uint64(n) != BlockSize {
		return fmt.Errorf("%w: read %d bytes of block %d", ErrShortIO, n, a)
	}
	return nil
}

func (d FileDisk) Read(a uint64) (Block, error) {
	buf := make([]byte, BlockSize)
	err := d.ReadTo(a, buf)
	return buf, err
}

func (d FileDisk) Write(a uint64, v Block) error {
	if uint64(len(v)) != BlockSize {
		return fmt.Errorf("%w (%d bytes)", ErrBlockSize, len(v))
	}
	if a >= d.numBlocks {
		return fmt.Errorf("%w: write at %d/%d", ErrOutOfBounds, a, d.numBlocks)
	}
	n, err := unix.Pwrite(d.fd, v, int64(a*BlockSize))
	if err != nil {
		return fmt.Errorf("writing block %d: %w", a, err)
	}
	if uint64(n) != BlockSize {
		return fmt.Errorf("%w: wrote %d bytes of block %d", ErrShortIO, n, a)
	}
	return nil
}

func (d FileDisk) Size() (uint64, error) {
	return d.numBlocks, nil
}

func (d FileDisk) Barrier() error {
	// NOTE: on macOS, this flushes to the drive but doesn't actually issue a
	// disk barrier; see https://golang.org/src/internal/poll/fd_fsync_darwin.go
	// for more details. The correct replacement is to issue a fcntl syscall with
	// cmd F_FULLFSYNC.
	err := unix.Fsync(d.fd)
	if err != nil {
		return fmt.Errorf("file sync failed: %w", err)
	}
	return nil
}

func (d FileDisk) Close() error {
	return unix.Close(d.fd)
}

/////////////////////////
/////////////////////////

var _ Disk = MemDisk{}

// MemDisk is a Disk held in memory, mostly for tests.
type MemDisk struct {
	d         goosedisk.Disk
	numBlocks uint64
}

func NewMemDisk(numBlocks uint64) MemDisk {
	return MemDisk{d: goosedisk.NewMemDisk(numBlocks), numBlocks: numBlocks}
}

func (d MemDisk) ReadTo(a uint64, buf Block) error {
	if uint64(len(buf)) != BlockSize {
		return ErrBlockSize
	}
	if a >= d.numBlocks {
		return fmt.Errorf("%w: read at %d/%d", ErrOutOfBounds, a, d.numBlocks)
	}
	copy(buf, d.d.Read(a))
	return nil
}

func (d MemDisk) Read(a uint64) (Block, error) {
	buf := make(Block, BlockSize)
	err := d.ReadTo(a, buf)
	return buf, err
}

func (d MemDisk) Write(a uint64, v Block) error {
	if uint64(len(v)) != BlockSize {
		return fmt.Errorf("%w (%d bytes)", ErrBlockSize, len(v))
	}
	if a >= d.numBlocks {
		return fmt.Errorf("%w: write at %d/%d", ErrOutOfBounds, a, d.numBlocks)
	}
	d.d.Write(a, util.CloneByteSlice(v))
	return nil
}

func (d MemDisk) Size() (uint64, error) {
	return d.numBlocks, nil
}

func (d MemDisk) Barrier() error { return nil }

func (d MemDisk) Close() error { return nil }
