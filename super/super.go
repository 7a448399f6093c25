// Package super describes the on-disk layout of a volume: the metadata block
// and the regions it defines.
//
//  block 0          metadata (this package)
//  blocks 1..F      allocation table, 2048 entries per block
//  block F+1        root directory
//  blocks F+2..     data region, indexed from 0
package super

import (
	"errors"
	"fmt"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-fatfs/common"
	"github.com/mit-pdos/go-fatfs/disk"
	"github.com/mit-pdos/go-fatfs/util"
)

// SUPERSZ is the encoded size of Super; the rest of block 0 is zero.
const SUPERSZ uint64 = 8 + 2 + 2 + 2 + 2 + 1

var (
	ErrSignature  = errors.New("bad signature")
	ErrBlockCount = errors.New("block count does not match device")
	ErrTooSmall   = errors.New("volume too small")
	ErrFatSize    = errors.New("allocation table size does not match data region")
	ErrLayout     = errors.New("inconsistent region layout")
	ErrDataBlocks = errors.New("data block count out of range")
)

type Super struct {
	Signature   [8]byte
	TotalBlocks uint16
	RootDir     uint16
	DataStart   uint16
	DataBlocks  uint16
	FatBlocks   uint8
}

// MkSuper computes the layout of a fresh volume with dataBlocks data blocks.
func MkSuper(dataBlocks uint64) (*Super, error) {
	if dataBlocks < 1 || dataBlocks > common.MAXDATABLOCKS {
		return nil, fmt.Errorf(
			"%w: %d (want 1..%d)",
			ErrDataBlocks,
			dataBlocks,
			common.MAXDATABLOCKS,
		)
	}
	nfat := util.RoundUp(dataBlocks, common.NFATENT)
	s := &Super{
		Signature:   common.Signature,
		TotalBlocks: uint16(1 + nfat + 1 + dataBlocks),
		RootDir:     uint16(1 + nfat),
		DataStart:   uint16(1 + nfat + 1),
		DataBlocks:  uint16(dataBlocks),
		FatBlocks:   uint8(nfat),
	}
	return s, nil
}

// Decode reads the metadata out of block 0. It does not validate.
func Decode(blk disk.Block) *Super {
	dec := marshal.NewDec(blk)
	s := &Super{}
	copy(s.Signature[:], dec.GetBytes(8))
	s.TotalBlocks = util.GetU16(dec)
	s.RootDir = util.GetU16(dec)
	s.DataStart = util.GetU16(dec)
	s.DataBlocks = util.GetU16(dec)
	s.FatBlocks = util.GetU8(dec)
	return s
}

// Encode returns block 0 for s.
func (s *Super) Encode() disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutBytes(s.Signature[:])
	util.PutU16(enc, s.TotalBlocks)
	util.PutU16(enc, s.RootDir)
	util.PutU16(enc, s.DataStart)
	util.PutU16(enc, s.DataBlocks)
	util.PutU8(enc, s.FatBlocks)
	return enc.Finish()
}

// Validate checks s against itself and against a device of nblocks blocks.
func (s *Super) Validate(nblocks uint64) error {
	if s.Signature != common.Signature {
		return fmt.Errorf("%w: %q", ErrSignature, s.Signature[:])
	}
	total := uint64(s.TotalBlocks)
	if total != nblocks {
		return fmt.Errorf("%w: metadata says %d, device has %d",
			ErrBlockCount, total, nblocks)
	}
	if total < common.MINBLOCKS {
		return fmt.Errorf("%w: %d blocks", ErrTooSmall, total)
	}
	ndata := uint64(s.DataBlocks)
	nfat := uint64(s.FatBlocks)
	if ndata < 1 || nfat < 1 {
		return fmt.Errorf("%w: %d data blocks, %d fat blocks",
			ErrTooSmall, ndata, nfat)
	}
	// each of the other two regions needs at least super + root + one block
	if ndata > total-3 || nfat > total-3 {
		return fmt.Errorf("%w: %d data blocks, %d fat blocks in %d",
			ErrLayout, ndata, nfat, total)
	}
	if util.RoundUp(ndata, common.NFATENT) != nfat {
		return fmt.Errorf("%w: %d fat blocks for %d data blocks",
			ErrFatSize, nfat, ndata)
	}
	if uint64(s.RootDir) != 1+nfat || uint64(s.DataStart) != 1+nfat+1 {
		return fmt.Errorf("%w: root dir at %d, data at %d",
			ErrLayout, s.RootDir, s.DataStart)
	}
	return nil
}

func (s *Super) RootDirBlkno() common.Bnum {
	return common.Bnum(s.RootDir)
}

func (s *Super) DataStartBlkno() common.Bnum {
	return common.Bnum(s.DataStart)
}

func (s *Super) NData() uint64 {
	return uint64(s.DataBlocks)
}

func (s *Super) NFat() uint64 {
	return uint64(s.FatBlocks)
}

func (s *Super) NTotal() uint64 {
	return uint64(s.TotalBlocks)
}
