package spool

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/xtxerr/sectorq/internal/engine/types"
)

// Record encoding format (binary, little-endian, fixed size):
// - Kind (1 byte)
// - Flags (1 byte)
// - TimestampMs (8 bytes)
// - Value (8 bytes, float64)
// - Code (4 bytes)
const recordSize = 22

// MaxCapacity is the largest sector capacity a spool file can hold. The
// frame count field is a uint16; a larger capacity would truncate it and
// every frame would fail its checksum on read-back.
const MaxCapacity = math.MaxUint16

// encodeRecord encodes one record into buf, which must be at least
// recordSize bytes.
func encodeRecord(buf []byte, r *types.Record) {
	buf[0] = byte(r.Kind)
	buf[1] = r.Flags
	binary.LittleEndian.PutUint64(buf[2:10], uint64(r.TimestampMs))
	binary.LittleEndian.PutUint64(buf[10:18], math.Float64bits(r.Value))
	binary.LittleEndian.PutUint32(buf[18:22], r.Code)
}

// decodeRecord decodes one record from buf.
func decodeRecord(buf []byte) types.Record {
	return types.Record{
		Kind:        types.RecordKind(buf[0]),
		Flags:       buf[1],
		TimestampMs: int64(binary.LittleEndian.Uint64(buf[2:10])),
		Value:       math.Float64frombits(binary.LittleEndian.Uint64(buf[10:18])),
		Code:        binary.LittleEndian.Uint32(buf[18:22]),
	}
}

// encodeFrame encodes up to capacity records as one fixed-size frame.
// The returned slice has length FrameSize(capacity) regardless of count;
// unused record slots are zero.
func encodeFrame(capacity int, recs []types.Record) ([]byte, error) {
	if len(recs) > capacity {
		return nil, fmt.Errorf("frame overflow: %d records, capacity %d", len(recs), capacity)
	}

	buf := make([]byte, FrameSize(capacity))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(recs)))

	off := frameHeaderSize
	for i := range recs {
		encodeRecord(buf[off:off+recordSize], &recs[i])
		off += recordSize
	}

	crc := frameChecksum(buf, len(recs))
	binary.LittleEndian.PutUint32(buf[4:8], crc)

	return buf, nil
}

// decodeFrame decodes a fixed-size frame, verifying the checksum.
func decodeFrame(capacity int, buf []byte) ([]types.Record, error) {
	if len(buf) != FrameSize(capacity) {
		return nil, fmt.Errorf("short frame: %d bytes, want %d", len(buf), FrameSize(capacity))
	}

	count := int(binary.LittleEndian.Uint16(buf[0:2]))
	if count > capacity {
		return nil, fmt.Errorf("frame count %d exceeds capacity %d", count, capacity)
	}

	expected := binary.LittleEndian.Uint32(buf[4:8])
	if actual := frameChecksum(buf, count); actual != expected {
		return nil, fmt.Errorf("frame CRC mismatch: expected %x, got %x", expected, actual)
	}

	recs := make([]types.Record, count)
	off := frameHeaderSize
	for i := 0; i < count; i++ {
		recs[i] = decodeRecord(buf[off : off+recordSize])
		off += recordSize
	}

	return recs, nil
}
