package handlers

import "testing"

func TestParseRange(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		total   int64
		want    byteRange
		partial bool
		wantErr bool
	}{
		{name: "absent header serves full payload", header: "", total: 100},
		{name: "bounded span", header: "bytes=10-19", total: 100, want: byteRange{10, 19}, partial: true},
		{name: "open end", header: "bytes=90-", total: 100, want: byteRange{90, 99}, partial: true},
		{name: "end clamped to payload", header: "bytes=90-500", total: 100, want: byteRange{90, 99}, partial: true},
		{name: "suffix form", header: "bytes=-10", total: 100, want: byteRange{90, 99}, partial: true},
		{name: "suffix longer than payload", header: "bytes=-500", total: 100, want: byteRange{0, 99}, partial: true},
		{name: "single byte", header: "bytes=0-0", total: 100, want: byteRange{0, 0}, partial: true},
		{name: "missing unit", header: "10-19", total: 100, wantErr: true},
		{name: "multiple ranges", header: "bytes=0-5,10-19", total: 100, wantErr: true},
		{name: "start past end of payload", header: "bytes=100-", total: 100, wantErr: true},
		{name: "inverted span", header: "bytes=19-10", total: 100, wantErr: true},
		{name: "negative start", header: "bytes=-0", total: 100, wantErr: true},
		{name: "garbage", header: "bytes=abc-def", total: 100, wantErr: true},
		{name: "no dash", header: "bytes=10", total: 100, wantErr: true},
		{name: "suffix of empty payload", header: "bytes=-5", total: 0, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, partial, err := parseRange(tc.header, tc.total)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseRange(%q) succeeded, want error", tc.header)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRange(%q) error = %v", tc.header, err)
			}
			if partial != tc.partial {
				t.Errorf("partial = %v, want %v", partial, tc.partial)
			}
			if partial && got != tc.want {
				t.Errorf("range = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestByteRangeLength(t *testing.T) {
	if got := (byteRange{10, 19}).length(); got != 10 {
		t.Errorf("length() = %d, want 10", got)
	}
	if got := (byteRange{0, 0}).length(); got != 1 {
		t.Errorf("length() = %d, want 1", got)
	}
}
