package executor

import "testing"

func TestParseProgressLine(t *testing.T) {
	cases := []struct {
		line     string
		ok       bool
		outTime  float64
		speed    float64
		hasSpeed bool
	}{
		{"out_time_ms=1500000", true, 1.5, 0, false},
		{"out_time_us=61000000", true, 61, 0, false},
		{"speed=1.25x", true, 0, 1.25, true},
		{"speed= 3x", true, 0, 3, true},
		{"speed=N/A", false, 0, 0, false},
		{"speed=0x", false, 0, 0, false},
		{"out_time_ms=N/A", false, 0, 0, false},
		{"frame=42", false, 0, 0, false},
		{"progress=continue", false, 0, 0, false},
		{"garbage", false, 0, 0, false},
	}
	for _, tc := range cases {
		ev, ok := ParseProgressLine(tc.line)
		if ok != tc.ok {
			t.Errorf("%q: ok=%v want %v", tc.line, ok, tc.ok)
			continue
		}
		if !ok {
			continue
		}
		if ev.HasSpeed != tc.hasSpeed || ev.Speed != tc.speed {
			t.Errorf("%q: speed=%v/%v want %v/%v", tc.line, ev.Speed, ev.HasSpeed, tc.speed, tc.hasSpeed)
		}
		if !tc.hasSpeed && (!ev.HasOutTime || ev.OutTimeSec != tc.outTime) {
			t.Errorf("%q: out time=%v want %v", tc.line, ev.OutTimeSec, tc.outTime)
		}
	}
}

func TestStderrTailKeepsLastLines(t *testing.T) {
	tail := newStderrTail(2)
	_, _ = tail.Write([]byte("one\ntwo\nthr"))
	_, _ = tail.Write([]byte("ee\n"))
	if got := tail.String(); got != "two\nthree" {
		t.Fatalf("unexpected tail %q", got)
	}
}
