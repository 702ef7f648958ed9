package task

import (
	"context"
	"errors"
	"testing"
)

type recordTask struct {
	name     string
	startErr error
	log      *[]string
}

func (r *recordTask) Name() string { return r.name }

func (r *recordTask) Start(context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}
	*r.log = append(*r.log, "start "+r.name)
	return nil
}

func (r *recordTask) Stop() error {
	*r.log = append(*r.log, "stop "+r.name)
	return nil
}

func TestManagerStopsInReverseOrder(t *testing.T) {
	var log []string
	m := NewManager()
	m.Register(&recordTask{name: "a", log: &log})
	m.Register(&recordTask{name: "b", log: &log})
	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.StopAll()
	want := []string{"start a", "start b", "stop b", "stop a"}
	if len(log) != len(want) {
		t.Fatalf("unexpected log %v", log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("unexpected log %v", log)
		}
	}
}

func TestManagerRollsBackOnFailure(t *testing.T) {
	var log []string
	m := NewManager()
	m.Register(&recordTask{name: "a", log: &log})
	m.Register(&recordTask{name: "b", startErr: errors.New("boom"), log: &log})
	if err := m.StartAll(context.Background()); err == nil {
		t.Fatalf("expected start failure")
	}
	if len(log) != 2 || log[1] != "stop a" {
		t.Fatalf("expected a to be stopped again, got %v", log)
	}
	m.StopAll()
	if len(log) != 2 {
		t.Fatalf("StopAll after failed start should be a no-op, got %v", log)
	}
}
