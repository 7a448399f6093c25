package common

import (
	"github.com/tchajed/goose/machine/disk"
)

const (
	// on-disk layout
	SUPERBLK Bnum = 0
	FATSTART Bnum = 1

	FATENTSZ uint64 = 2 // bytes per allocation table entry
	NFATENT  uint64 = disk.BlockSize / FATENTSZ

	DIRENTSZ uint64 = 32 // on-disk size
	NDIRENT  uint64 = disk.BlockSize / DIRENTSZ
	NAMELEN  uint64 = 16 // including the terminating NUL

	NOPEN uint64 = 32 // maximum open descriptors

	MINBLOCKS     uint64 = 4 // super + fat + root dir + one data block
	MAXDATABLOCKS uint64 = 8198
)

// Bnum is a raw block index into the image.
type Bnum = uint64

// Dnum is an index into the data region, and also the value stored in an
// allocation table entry.
type Dnum = uint16

const (
	FREE Dnum = 0
	EOC  Dnum = 0xFFFF
)

// Signature identifies a formatted image.
var Signature = [8]byte{'E', 'C', 'S', '1', '5', '0', 'F', 'S'}
