package mqtt

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sweeney/door-monitor/internal/logger"
)

func TestPendingEmptyTake(t *testing.T) {
	p := newPending(10, logger.Nop())
	if got := p.take(); got != nil {
		t.Errorf("expected nil from empty take, got %d items", len(got))
	}
}

func TestPendingKeepsQueueOrder(t *testing.T) {
	p := newPending(10, logger.Nop())
	for i := 0; i < 5; i++ {
		p.put(fmt.Sprintf("door/status/%d", i), []byte{byte(i)})
	}

	got := p.take()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i, m := range got {
		if want := fmt.Sprintf("door/status/%d", i); m.topic != want {
			t.Errorf("item %d: topic %s, want %s", i, m.topic, want)
		}
		if m.payload[0] != byte(i) {
			t.Errorf("item %d: payload %d, want %d", i, m.payload[0], i)
		}
	}

	if again := p.take(); again != nil {
		t.Errorf("expected nil from second take, got %d items", len(again))
	}
}

func TestPendingLatestPayloadWins(t *testing.T) {
	p := newPending(10, logger.Nop())
	p.put("door/status/hall", []byte("first"))
	p.put("door/status/shed", []byte("other"))
	p.put("door/status/hall", []byte("second"))

	if p.len() != 2 {
		t.Fatalf("expected 2 topics, got %d", p.len())
	}
	got := p.take()
	if got[0].topic != "door/status/hall" || string(got[0].payload) != "second" {
		t.Errorf("first entry: got %s=%s", got[0].topic, got[0].payload)
	}
	if string(got[1].payload) != "other" {
		t.Errorf("second entry: got %s", got[1].payload)
	}
}

func TestPendingOverflowDropsOldestTopic(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := newPending(3, logger.FromCore(core))

	for i := 0; i < 5; i++ {
		p.put(fmt.Sprintf("t/%d", i), nil)
	}

	got := p.take()
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	if got[0].topic != "t/2" || got[2].topic != "t/4" {
		t.Errorf("expected t/2..t/4, got %s..%s", got[0].topic, got[2].topic)
	}
	if n := logs.FilterMessage("publish buffer full, dropping oldest").Len(); n != 1 {
		t.Errorf("expected one overflow warning, got %d", n)
	}
	dropped := logs.FilterMessage("buffered publishes were dropped while disconnected").All()
	if len(dropped) != 1 || dropped[0].ContextMap()["dropped"] != int64(2) {
		t.Errorf("expected a drop summary of 2, got %v", dropped)
	}
}

func TestPendingOverflowWarnsOncePerCycle(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := newPending(2, logger.FromCore(core))

	for cycle := 0; cycle < 2; cycle++ {
		for i := 0; i < 4; i++ {
			p.put(fmt.Sprintf("t/%d", i), nil)
		}
		p.take()
	}
	if n := logs.Len(); n != 2 {
		t.Errorf("expected 2 warnings across two cycles, got %d", n)
	}
}

func TestPendingLen(t *testing.T) {
	p := newPending(10, logger.Nop())
	if p.len() != 0 {
		t.Errorf("expected len 0, got %d", p.len())
	}

	p.put("a", nil)
	p.put("b", nil)
	if p.len() != 2 {
		t.Errorf("expected len 2, got %d", p.len())
	}

	p.take()
	if p.len() != 0 {
		t.Errorf("expected len 0 after take, got %d", p.len())
	}
}
