package types

import "testing"

func TestParseSource(t *testing.T) {
	tests := []struct {
		in   string
		want Source
		ok   bool
	}{
		{"gateway", SourceGateway, true},
		{"hosted", SourceHosted, true},
		{"can", SourceCAN, true},
		{"CAN", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSource(tt.in)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("ParseSource(%q) = %v, %v", tt.in, got, ok)
			}
		})
	}
}

func TestSourceRoundRobin(t *testing.T) {
	s := SourceGateway
	seen := map[Source]bool{}
	for i := 0; i < NumSources; i++ {
		if !s.Valid() {
			t.Fatalf("source %d invalid", s)
		}
		seen[s] = true
		s = s.Next()
	}
	if len(seen) != NumSources {
		t.Errorf("rotation visited %d sources, want %d", len(seen), NumSources)
	}
	if s != SourceGateway {
		t.Errorf("rotation did not wrap: ended at %v", s)
	}
}

func TestParseRecordKind(t *testing.T) {
	if k, ok := ParseRecordKind("tsd"); !ok || k != KindTSD {
		t.Errorf("ParseRecordKind(tsd) = %v, %v", k, ok)
	}
	if k, ok := ParseRecordKind("evt"); !ok || k != KindEVT {
		t.Errorf("ParseRecordKind(evt) = %v, %v", k, ok)
	}
	if _, ok := ParseRecordKind("gauge"); ok {
		t.Error("ParseRecordKind accepted unknown kind")
	}
}

func TestRecordConstructors(t *testing.T) {
	s := Sample(100, 21.5)
	if s.Kind != KindTSD || !s.Valid() || s.Value != 21.5 {
		t.Errorf("Sample = %+v", s)
	}

	e := Event(200, 7)
	if e.Kind != KindEVT || !e.Valid() || e.Code != 7 {
		t.Errorf("Event = %+v", e)
	}
	if e.TimestampTime().UnixMilli() != 200 {
		t.Errorf("TimestampTime = %v", e.TimestampTime())
	}
}
