// Package disk provides fixed-size block I/O over a virtual disk image.
//
// A Disk is a raw backend (an image file or memory). A Device wraps one Disk
// and enforces the open/closed state and block bounds the file system relies
// on; it never caches.
package disk

import (
	"errors"

	goosedisk "github.com/tchajed/goose/machine/disk"
)

// Block holds exactly BlockSize bytes.
type Block = goosedisk.Block

const BlockSize uint64 = goosedisk.BlockSize

var (
	ErrImageSize   = errors.New("image size is not a multiple of the block size")
	ErrOutOfBounds = errors.New("block index out of bounds")
	ErrBlockSize   = errors.New("buffer is not block-sized")
	ErrShortIO     = errors.New("short block transfer")
)

// Disk is a raw block backend. Addresses are raw block indices; callers
// keep them below Size() (Device checks this).
type Disk interface {
	// Read returns a fresh copy of block a.
	Read(a uint64) (Block, error)

	// ReadTo fills b with block a.
	ReadTo(a uint64, b Block) error

	Write(a uint64, v Block) error

	// Size is the number of blocks.
	Size() (uint64, error)

	// Barrier returns once every earlier Write is durable.
	Barrier() error

	Close() error
}
