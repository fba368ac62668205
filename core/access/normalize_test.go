package access

import (
	"testing"
	"time"
)

func TestNormalizeEventTime(t *testing.T) {
	ref := time.Date(2023, 4, 12, 8, 30, 15, 0, time.UTC)
	refMillis := ref.UnixMilli()

	tests := []struct {
		name string
		in   interface{}
		want time.Time
	}{
		{name: "time.Time", in: ref, want: ref},
		{name: "time pointer", in: &ref, want: ref},
		{name: "nil time pointer", in: (*time.Time)(nil), want: time.Time{}},
		{name: "unix millis int64", in: refMillis, want: ref},
		{name: "unix millis float64", in: float64(refMillis), want: ref},
		{name: "RFC3339", in: "2023-04-12T08:30:15Z", want: ref},
		{name: "RFC3339 with offset", in: "2023-04-12T10:30:15+02:00", want: ref},
		{name: "legacy datetime", in: "2023-04-12 08:30:15", want: ref},
		{name: "legacy date only", in: "2023-04-12", want: time.Date(2023, 4, 12, 0, 0, 0, 0, time.UTC)},
		{name: "garbage string", in: "not a time", want: time.Time{}},
		{name: "unsupported type", in: 42, want: time.Time{}},
		{name: "nil", in: nil, want: time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeEventTime(tt.in); !got.Equal(tt.want) {
				t.Errorf("NormalizeEventTime(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	t.Run("always UTC", func(t *testing.T) {
		local := time.Date(2023, 4, 12, 10, 30, 15, 0, time.FixedZone("EAT", 2*3600))
		got := NormalizeEventTime(local)
		if got.Location() != time.UTC {
			t.Errorf("location = %v, want UTC", got.Location())
		}
		if !got.Equal(ref) {
			t.Errorf("NormalizeEventTime(%v) = %v, want %v", local, got, ref)
		}
	})
}
