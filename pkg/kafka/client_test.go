package kafka

import "testing"

func TestHeadersSorted(t *testing.T) {
	got := headers(map[string]string{"event_type": "job.done", "content_type": "application/json"})
	if len(got) != 2 || got[0].Key != "content_type" || got[1].Key != "event_type" || string(got[1].Value) != "job.done" {
		t.Fatalf("unexpected headers %+v", got)
	}
	if headers(nil) != nil {
		t.Fatalf("expected nil headers for an empty map")
	}
}
