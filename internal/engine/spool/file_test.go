package spool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xtxerr/sectorq/internal/engine/types"
)

func testRecords(n int, base int64) []types.Record {
	recs := make([]types.Record, n)
	for i := range recs {
		recs[i] = types.Sample(base+int64(i), float64(i))
	}
	return recs
}

func TestFileRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway-temp-01.spool")

	f, err := Create(path, 4)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	for i := 0; i < 3; i++ {
		if err := f.AppendFrame(testRecords(4, int64(i*4+1))); err != nil {
			t.Fatalf("AppendFrame %d: %v", i, err)
		}
	}
	if err := f.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := f.Frames(); got != 3 {
		t.Fatalf("Frames = %d, want 3", got)
	}

	for i := int64(0); i < 3; i++ {
		recs, err := f.ReadFrame(i)
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if len(recs) != 4 {
			t.Fatalf("frame %d: %d records, want 4", i, len(recs))
		}
		if recs[0].TimestampMs != i*4+1 {
			t.Errorf("frame %d: first TimestampMs = %d, want %d", i, recs[0].TimestampMs, i*4+1)
		}
	}

	if _, err := f.ReadFrame(3); err == nil {
		t.Error("ReadFrame past end succeeded")
	}
	if _, err := f.ReadFrame(-1); err == nil {
		t.Error("ReadFrame(-1) succeeded")
	}
}

func TestFileReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosted-x.spool")

	f, err := Create(path, 2)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.AppendFrame(testRecords(2, 1)); err != nil {
		t.Fatalf("AppendFrame: %v", err)
	}
	if err := f.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	f.Close()

	g, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer g.Close()

	if g.Capacity() != 2 {
		t.Errorf("Capacity = %d, want 2", g.Capacity())
	}
	if g.Frames() != 1 {
		t.Errorf("Frames = %d, want 1", g.Frames())
	}

	recs, err := g.ReadFrame(0)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(recs) != 2 || recs[0].TimestampMs != 1 {
		t.Errorf("unexpected frame contents: %+v", recs)
	}
}

func TestCreateRejectsOversizeCapacity(t *testing.T) {
	// The frame count field is a uint16. A capacity past it would
	// truncate on encode and fail every checksum on read-back, so it
	// must never get as far as a file.
	dir := t.TempDir()

	if _, err := Create(filepath.Join(dir, "big.spool"), MaxCapacity+1); err == nil {
		t.Errorf("Create accepted capacity %d", MaxCapacity+1)
	}
	if _, err := Create(filepath.Join(dir, "zero.spool"), 0); err == nil {
		t.Error("Create accepted capacity 0")
	}

	f, err := Create(filepath.Join(dir, "max.spool"), MaxCapacity)
	if err != nil {
		t.Fatalf("Create at capacity %d: %v", MaxCapacity, err)
	}
	f.Close()
}

func TestOpenRejectsBadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.spool")
	if err := os.WriteFile(path, []byte("not a spool file....."), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Error("Open accepted a file with a bad magic")
	}
}

func TestTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "can-y.spool")

	f, err := Create(path, 2)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	for i := 0; i < 3; i++ {
		if err := f.AppendFrame(testRecords(2, int64(i*2+1))); err != nil {
			t.Fatalf("AppendFrame: %v", err)
		}
	}

	if err := f.Truncate(1); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if got := f.Frames(); got != 1 {
		t.Errorf("Frames after truncate = %d, want 1", got)
	}
	if _, err := f.ReadFrame(1); err == nil {
		t.Error("ReadFrame read a truncated frame")
	}
	if _, err := f.ReadFrame(0); err != nil {
		t.Errorf("ReadFrame(0) after truncate: %v", err)
	}

	if err := f.Truncate(5); err == nil {
		t.Error("Truncate past end succeeded")
	}
}

func TestReadFrameDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway-z.spool")

	f, err := Create(path, 2)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	if err := f.AppendFrame(testRecords(2, 1)); err != nil {
		t.Fatalf("AppendFrame: %v", err)
	}
	if err := f.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	// Flip a bit inside the frame's record area on disk.
	raw, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	if _, err := raw.WriteAt([]byte{0xFF}, headerSize+frameHeaderSize+3); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	raw.Close()

	if _, err := f.ReadFrame(0); err == nil {
		t.Error("ReadFrame accepted a corrupted frame")
	}
	if st := f.Stats(); st.CorruptFrames != 1 {
		t.Errorf("CorruptFrames = %d, want 1", st.CorruptFrames)
	}
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway-r.spool")

	f, err := Create(path, 2)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("spool file still exists after Remove")
	}

	// Removing twice is harmless.
	if err := f.Remove(); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}
