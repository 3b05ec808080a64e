package testutil

import (
	"bytes"
	"encoding/binary"
)

// JPEGWithDateTime returns a minimal JPEG whose APP1 segment holds an EXIF
// block with a single DateTime (0x0132) tag. dateTime uses the EXIF layout
// "2006:01:02 15:04:05". The image data itself is empty.
func JPEGWithDateTime(dateTime string) []byte {
	value := append([]byte(dateTime), 0)

	var tiff bytes.Buffer
	le := binary.LittleEndian
	tiff.WriteString("II")
	binary.Write(&tiff, le, uint16(42))
	binary.Write(&tiff, le, uint32(8)) // IFD0 offset

	const valueOffset = 8 + 2 + 12 + 4
	binary.Write(&tiff, le, uint16(1))      // entry count
	binary.Write(&tiff, le, uint16(0x0132)) // DateTime
	binary.Write(&tiff, le, uint16(2))      // ASCII
	binary.Write(&tiff, le, uint32(len(value)))
	binary.Write(&tiff, le, uint32(valueOffset))
	binary.Write(&tiff, le, uint32(0)) // no next IFD
	tiff.Write(value)

	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	segment := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	binary.Write(&out, binary.BigEndian, uint16(len(segment)+2))
	out.Write(segment)
	out.Write([]byte{0xFF, 0xD9})
	return out.Bytes()
}
