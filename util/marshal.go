package util

import (
	"encoding/binary"

	"github.com/tchajed/marshal"
)

// The on-disk records pack 8- and 16-bit fields, which marshal has no
// encoders for; these go through PutBytes/GetBytes to keep the cursor.

func PutU16(enc marshal.Enc, v uint16) {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	enc.PutBytes(b)
}

func GetU16(dec marshal.Dec) uint16 {
	return binary.LittleEndian.Uint16(dec.GetBytes(2))
}

func PutU8(enc marshal.Enc, v uint8) {
	enc.PutBytes([]byte{v})
}

func GetU8(dec marshal.Dec) uint8 {
	return dec.GetBytes(1)[0]
}
