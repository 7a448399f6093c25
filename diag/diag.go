// Package diag prints human-readable views of a mounted volume. Nothing here
// modifies the volume.
package diag

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/mit-pdos/go-fatfs/disk"
	"github.com/mit-pdos/go-fatfs/fs"
)

const separator = "\n-----------------------\n"

// HexDump writes data as offset, hex bytes and ASCII columns.
func HexDump(w io.Writer, data []byte) error {
	d := hex.Dumper(w)
	if _, err := d.Write(data); err != nil {
		return err
	}
	return d.Close()
}

// DumpFile hex dumps every block of name, in chain order.
func DumpFile(w io.Writer, v *fs.Volume, name string) error {
	chain, err := v.Chain(name)
	if err != nil {
		return err
	}
	blk := make(disk.Block, disk.BlockSize)
	for _, d := range chain {
		if err := v.ReadDataBlock(d, blk); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data block %d:\n", d); err != nil {
			return err
		}
		if err := HexDump(w, blk); err != nil {
			return err
		}
		if _, err := io.WriteString(w, separator); err != nil {
			return err
		}
	}
	return nil
}

// PrintChain lists the data blocks allocated to name.
func PrintChain(w io.Writer, v *fs.Volume, name string) error {
	chain, err := v.Chain(name)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Allocated blocks for %s:\n", name); err != nil {
		return err
	}
	for _, d := range chain {
		if _, err := fmt.Fprintf(w, "%d\n", d); err != nil {
			return err
		}
	}
	return nil
}

// PrintList writes the directory listing.
func PrintList(w io.Writer, v *fs.Volume) error {
	ents, err := v.List()
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, "FS Ls:\n"); err != nil {
		return err
	}
	for _, de := range ents {
		_, err := fmt.Fprintf(w, "file: %s, size: %d, data_blk: %d\n",
			de.Name, de.Size, de.Head)
		if err != nil {
			return err
		}
	}
	return nil
}
