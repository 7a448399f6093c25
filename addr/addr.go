// Package addr locates on-disk objects: allocation table entries, directory
// records, and data blocks.
package addr

import (
	"github.com/mit-pdos/go-fatfs/common"
)

// Addr identifies the start of a disk object.
//
// Blkno is the raw block number containing the object, and Off is the location
// of the object within the block (expressed as a byte offset). The size of the
// object is determined by the context in which Addr is used.
type Addr struct {
	Blkno common.Bnum
	Off   uint64
}

func MkAddr(blkno common.Bnum, off uint64) Addr {
	return Addr{Blkno: blkno, Off: off}
}

// MkFatAddr returns the location of the allocation table entry for data
// block d.
func MkFatAddr(d common.Dnum) Addr {
	i := uint64(d) / common.NFATENT
	ent := uint64(d) % common.NFATENT
	return MkAddr(common.FATSTART+i, ent*common.FATENTSZ)
}

// MkDirAddr returns the location of directory slot in the root directory
// block rootdir.
func MkDirAddr(rootdir common.Bnum, slot uint64) Addr {
	return MkAddr(rootdir, slot*common.DIRENTSZ)
}

// DataBlkno translates data block d into a raw block index.
func DataBlkno(dataStart common.Bnum, d common.Dnum) common.Bnum {
	return dataStart + common.Bnum(d)
}
