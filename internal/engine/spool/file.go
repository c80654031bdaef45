// Package spool implements the append-only disk files that hold sectors
// flushed from RAM under memory pressure.
//
// File format:
//   - Header: 8 bytes magic + 4 bytes version + 4 bytes sector capacity
//   - Frames: fixed-size, [2 bytes count][2 bytes reserved][4 bytes crc32]
//     [capacity x 22-byte records]
//
// Frames are written in chain order and are readable sequentially, or by
// frame index, without any separate index structure. One file exists per
// (source, sensor) that has ever spilled; it is deleted once every
// spooled record has been read and acknowledged.
package spool

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/xtxerr/sectorq/internal/engine/types"
	"github.com/xtxerr/sectorq/internal/errors"
)

const (
	spoolMagic      = 0x535153504F4F4C01 // "SQSPOOL" + version 1
	spoolVersion    = 1
	headerSize      = 16 // 8 bytes magic + 4 bytes version + 4 bytes capacity
	frameHeaderSize = 8  // 2 bytes count + 2 bytes reserved + 4 bytes crc32
)

// FrameSize returns the fixed on-disk size of one frame for the given
// sector capacity.
func FrameSize(capacity int) int {
	return frameHeaderSize + capacity*recordSize
}

// frameChecksum computes the CRC over the used record area of a frame.
func frameChecksum(frame []byte, count int) uint32 {
	return crc32.ChecksumIEEE(frame[frameHeaderSize : frameHeaderSize+count*recordSize])
}

// Path returns the spool file path for one sensor under dir.
func Path(dir string, source types.Source, sensorID string) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.spool", source, sensorID))
}

// File is one sensor's append-only spool file.
type File struct {
	mu sync.Mutex

	path     string
	f        *os.File
	capacity int
	frames   int64

	// Statistics
	stats FileStats
}

// FileStats holds spool file statistics.
type FileStats struct {
	FramesWritten int64
	FramesRead    int64
	BytesWritten  int64
	Syncs         int64
	CorruptFrames int64
}

// Create creates (or truncates) a spool file and writes its header.
func Create(path string, capacity int) (*File, error) {
	if capacity <= 0 || capacity > MaxCapacity {
		return nil, fmt.Errorf("invalid spool capacity: %d", capacity)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(errors.ErrDiskIO, err.Error())
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDiskIO, "create spool %s: %v", path, err)
	}

	var header [headerSize]byte
	binary.LittleEndian.PutUint64(header[0:8], spoolMagic)
	binary.LittleEndian.PutUint32(header[8:12], spoolVersion)
	binary.LittleEndian.PutUint32(header[12:16], uint32(capacity))

	if _, err := f.Write(header[:]); err != nil {
		f.Close()
		os.Remove(path)
		return nil, errors.Wrapf(errors.ErrDiskIO, "write spool header: %v", err)
	}

	return &File{
		path:     path,
		f:        f,
		capacity: capacity,
	}, nil
}

// Open opens an existing spool file and verifies its header. The frame
// count is derived from the file size.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDiskIO, "open spool %s: %v", path, err)
	}

	var header [headerSize]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		f.Close()
		return nil, errors.Wrapf(errors.ErrDiskIO, "read spool header: %v", err)
	}

	magic := binary.LittleEndian.Uint64(header[0:8])
	if magic != spoolMagic {
		f.Close()
		return nil, fmt.Errorf("invalid spool magic: expected %x, got %x", uint64(spoolMagic), magic)
	}

	version := binary.LittleEndian.Uint32(header[8:12])
	if version != spoolVersion {
		f.Close()
		return nil, fmt.Errorf("unsupported spool version: %d", version)
	}

	capacity := int(binary.LittleEndian.Uint32(header[12:16]))
	if capacity <= 0 || capacity > MaxCapacity {
		f.Close()
		return nil, fmt.Errorf("invalid spool capacity: %d", capacity)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(errors.ErrDiskIO, "stat spool: %v", err)
	}

	frames := (info.Size() - headerSize) / int64(FrameSize(capacity))

	return &File{
		path:     path,
		f:        f,
		capacity: capacity,
		frames:   frames,
	}, nil
}

// AppendFrame appends one sector payload as a frame. The write is
// buffered by the OS; call Sync before freeing the RAM sector.
func (sf *File) AppendFrame(recs []types.Record) error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	frame, err := encodeFrame(sf.capacity, recs)
	if err != nil {
		return err
	}

	off := headerSize + sf.frames*int64(FrameSize(sf.capacity))
	if _, err := sf.f.WriteAt(frame, off); err != nil {
		return errors.Wrapf(errors.ErrDiskIO, "append frame: %v", err)
	}

	sf.frames++
	sf.stats.FramesWritten++
	sf.stats.BytesWritten += int64(len(frame))
	return nil
}

// Truncate discards all frames past the given count. Used to roll back a
// partially written spill run after an append or sync failure.
func (sf *File) Truncate(frames int64) error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if frames < 0 || frames > sf.frames {
		return fmt.Errorf("truncate to %d frames out of range [0,%d]", frames, sf.frames)
	}

	size := headerSize + frames*int64(FrameSize(sf.capacity))
	if err := sf.f.Truncate(size); err != nil {
		return errors.Wrapf(errors.ErrDiskIO, "truncate spool: %v", err)
	}
	sf.frames = frames
	return nil
}

// Sync flushes appended frames durably to disk. Spooled RAM sectors must
// not be freed before Sync returns nil.
func (sf *File) Sync() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if err := sf.f.Sync(); err != nil {
		return errors.Wrapf(errors.ErrDiskIO, "sync spool: %v", err)
	}
	sf.stats.Syncs++
	return nil
}

// ReadFrame reads the frame at the given index, verifying its checksum.
func (sf *File) ReadFrame(idx int64) ([]types.Record, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if idx < 0 || idx >= sf.frames {
		return nil, fmt.Errorf("frame index %d out of range [0,%d)", idx, sf.frames)
	}

	buf := make([]byte, FrameSize(sf.capacity))
	off := headerSize + idx*int64(FrameSize(sf.capacity))
	if _, err := sf.f.ReadAt(buf, off); err != nil {
		return nil, errors.Wrapf(errors.ErrDiskIO, "read frame %d: %v", idx, err)
	}

	recs, err := decodeFrame(sf.capacity, buf)
	if err != nil {
		sf.stats.CorruptFrames++
		return nil, err
	}

	sf.stats.FramesRead++
	return recs, nil
}

// Frames returns the number of frames in the file.
func (sf *File) Frames() int64 {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.frames
}

// Capacity returns the sector capacity the file was created with.
func (sf *File) Capacity() int {
	return sf.capacity
}

// Path returns the file path.
func (sf *File) Path() string {
	return sf.path
}

// Stats returns file statistics.
func (sf *File) Stats() FileStats {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.stats
}

// Close closes the underlying file.
func (sf *File) Close() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if sf.f == nil {
		return nil
	}
	err := sf.f.Close()
	sf.f = nil
	return err
}

// Remove closes and deletes the file. Used once every spooled record has
// been consumed, and when a corrupted sensor is reset.
func (sf *File) Remove() error {
	sf.Close()
	if err := os.Remove(sf.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(errors.ErrDiskIO, "remove spool: %v", err)
	}
	return nil
}
