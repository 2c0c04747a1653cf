package transport

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"main/pkg/exception"
)

const (
	frameVersion    uint16 = 1
	frameHeaderSize        = 16

	// DefaultMaxFrame bounds a single message; historical descriptors
	// embed whole series, so the ceiling is generous.
	DefaultMaxFrame = 32 << 20
)

var (
	frameMagic = [4]byte{'S', 'R', 'N', '1'}
	crcTable   = crc32.MakeTable(crc32.Castagnoli)
)

// WriteFrame writes one length-prefixed, checksummed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [frameHeaderSize]byte
	copy(header[0:4], frameMagic[:])
	binary.LittleEndian.PutUint16(header[4:6], frameVersion)
	binary.LittleEndian.PutUint16(header[6:8], 0)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	crc := crc32.Update(0, crcTable, header[0:12])
	crc = crc32.Update(crc, crcTable, payload)
	binary.LittleEndian.PutUint32(header[12:16], crc)

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one frame, verifying magic, version, size and
// checksum. maxSize <= 0 falls back to DefaultMaxFrame.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrame
	}
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	if !bytes.Equal(header[0:4], frameMagic[:]) {
		return nil, exception.ErrFrameMagic
	}
	if binary.LittleEndian.Uint16(header[4:6]) != frameVersion {
		return nil, exception.ErrFrameVersion
	}
	payloadLen := int(binary.LittleEndian.Uint32(header[8:12]))
	if payloadLen > maxSize {
		return nil, exception.ErrFrameTooLarge
	}
	want := binary.LittleEndian.Uint32(header[12:16])

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	crc := crc32.Update(0, crcTable, header[0:12])
	crc = crc32.Update(crc, crcTable, payload)
	if crc != want {
		return nil, exception.ErrFrameChecksum
	}
	return payload, nil
}
