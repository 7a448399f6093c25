package fat

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mit-pdos/go-fatfs/addr"
	"github.com/mit-pdos/go-fatfs/buf"
	"github.com/mit-pdos/go-fatfs/common"
	"github.com/mit-pdos/go-fatfs/disk"
)

const ndata uint64 = 10

// layout: super, one fat block, root dir, then ndata data blocks
const dataStart common.Bnum = 3

type FatSuite struct {
	suite.Suite
	dev *disk.Device
	f   *Fat
}

func (suite *FatSuite) SetupTest() {
	suite.dev = &disk.Device{}
	suite.Require().NoError(suite.dev.Attach(disk.NewMemDisk(3 + ndata)))
	suite.f = MkFat(suite.dev, buf.MkBuf(), 1, ndata, dataStart)
	// data block 0 is reserved, as on a freshly made volume
	suite.Require().NoError(suite.f.Set(0, common.EOC))
}

func TestFat(t *testing.T) {
	suite.Run(t, new(FatSuite))
}

func (suite *FatSuite) TestGetSet() {
	suite.NoError(suite.f.Set(3, 7))
	v, err := suite.f.Get(3)
	suite.NoError(err)
	suite.Equal(common.Dnum(7), v)

	v, err = suite.f.Get(4)
	suite.NoError(err)
	suite.Equal(common.FREE, v)

	_, err = suite.f.Get(common.Dnum(ndata))
	suite.ErrorIs(err, ErrBadNum)
	suite.ErrorIs(suite.f.Set(common.Dnum(ndata), 1), ErrBadNum)
}

func (suite *FatSuite) TestFindFreeSkipsReserved() {
	d, err := suite.f.FindFree()
	suite.NoError(err)
	suite.Equal(common.Dnum(1), d)

	suite.NoError(suite.f.Set(1, common.EOC))
	suite.NoError(suite.f.Set(2, common.EOC))
	d, err = suite.f.FindFree()
	suite.NoError(err)
	suite.Equal(common.Dnum(3), d)
}

func (suite *FatSuite) TestFindFreeFull() {
	for d := uint64(1); d < ndata; d++ {
		suite.NoError(suite.f.Set(common.Dnum(d), common.EOC))
	}
	_, err := suite.f.FindFree()
	suite.ErrorIs(err, ErrFull)

	used, err := suite.f.Used()
	suite.NoError(err)
	suite.Equal(ndata, used)
}

func (suite *FatSuite) TestAllocHeadZeroes() {
	blk := make(disk.Block, disk.BlockSize)
	for i := range blk {
		blk[i] = 0xAA
	}
	suite.NoError(suite.dev.Write(addr.DataBlkno(dataStart, 1), blk))

	d, err := suite.f.AllocHead()
	suite.NoError(err)
	suite.Equal(common.Dnum(1), d)

	suite.NoError(suite.dev.Read(addr.DataBlkno(dataStart, 1), blk))
	suite.Equal(make(disk.Block, disk.BlockSize), blk, "new block is zeroed")

	n, err := suite.f.ChainLength(d)
	suite.NoError(err)
	suite.Equal(uint64(1), n)
}

func (suite *FatSuite) TestExtendAndWalk() {
	head, err := suite.f.AllocHead()
	suite.NoError(err)

	added, err := suite.f.Extend(head, 3)
	suite.NoError(err)
	suite.Equal(uint64(3), added)

	chain, err := suite.f.Chain(head)
	suite.NoError(err)
	suite.Equal([]common.Dnum{1, 2, 3, 4}, chain)

	n, err := suite.f.ChainLength(head)
	suite.NoError(err)
	suite.Equal(uint64(4), n)

	tail, err := suite.f.Get(4)
	suite.NoError(err)
	suite.Equal(common.EOC, tail, "chain is EOC terminated")

	d, err := suite.f.Skip(head, 2)
	suite.NoError(err)
	suite.Equal(common.Dnum(3), d)

	d, err = suite.f.Skip(head, 100)
	suite.NoError(err)
	suite.Equal(common.Dnum(4), d, "skip stops at the last block")

	d, err = suite.f.Skip(common.EOC, 3)
	suite.NoError(err)
	suite.Equal(common.EOC, d)
}

func (suite *FatSuite) TestExtendPartial() {
	head, err := suite.f.AllocHead()
	suite.NoError(err)

	// 1 reserved + 1 head leaves ndata-2 blocks
	added, err := suite.f.Extend(head, ndata)
	suite.NoError(err)
	suite.Equal(ndata-2, added)

	added, err = suite.f.Extend(head, 1)
	suite.NoError(err)
	suite.Equal(uint64(0), added)

	n, err := suite.f.ChainLength(head)
	suite.NoError(err)
	suite.Equal(ndata-1, n)
}

func (suite *FatSuite) TestRelease() {
	head, err := suite.f.AllocHead()
	suite.NoError(err)
	_, err = suite.f.Extend(head, 4)
	suite.NoError(err)

	other, err := suite.f.AllocHead()
	suite.NoError(err)

	suite.NoError(suite.f.Release(head))
	used, err := suite.f.Used()
	suite.NoError(err)
	suite.Equal(uint64(2), used, "reserved block and the other chain remain")

	n, err := suite.f.ChainLength(other)
	suite.NoError(err)
	suite.Equal(uint64(1), n)

	d, err := suite.f.FindFree()
	suite.NoError(err)
	suite.Equal(common.Dnum(1), d, "freed blocks are reused")

	suite.NoError(suite.f.Release(common.EOC), "releasing an empty chain is a no-op")
}

func (suite *FatSuite) TestChainLengthEmpty() {
	n, err := suite.f.ChainLength(common.EOC)
	suite.NoError(err)
	suite.Equal(uint64(0), n)

	chain, err := suite.f.Chain(common.EOC)
	suite.NoError(err)
	suite.Empty(chain)
}

func (suite *FatSuite) TestUsedIgnoresEntriesPastData() {
	// garbage in the unused tail of the last table block
	blk := make(disk.Block, disk.BlockSize)
	suite.Require().NoError(suite.dev.Read(common.FATSTART, blk))
	blk[2*ndata] = 0x01
	blk[2*(ndata+5)] = 0x07
	suite.Require().NoError(suite.dev.Write(common.FATSTART, blk))

	used, err := suite.f.Used()
	suite.NoError(err)
	suite.Equal(uint64(1), used)
}
