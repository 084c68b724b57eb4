package timegrid

import (
	"testing"
	"time"
)

func TestNewRejectsBadSteps(t *testing.T) {
	for _, m := range []int{0, -15, 7, 25, 61} {
		if _, err := New(m, 48); err == nil {
			t.Fatalf("expected error for step %d", m)
		}
	}
	if _, err := New(60, 0); err == nil {
		t.Fatalf("expected error for zero horizon")
	}
}

func TestAlignAndStepTime(t *testing.T) {
	g, err := New(15, 48)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	now := time.Date(2026, 3, 14, 11, 38, 12, 0, time.UTC)
	anchor := g.Align(now)
	want := time.Date(2026, 3, 14, 11, 30, 0, 0, time.UTC)
	if !anchor.Equal(want) {
		t.Fatalf("anchor %v want %v", anchor, want)
	}
	if st := g.StepTime(anchor, 3); !st.Equal(want.Add(45 * time.Minute)) {
		t.Fatalf("step time %v", st)
	}
}

func TestAlignFractionalOffsetZone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	g, err := New(60, 24)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	now := time.Date(2026, 5, 10, 12, 40, 7, 0, ist)
	anchor := g.Align(now)
	want := time.Date(2026, 5, 10, 12, 0, 0, 0, ist)
	if !anchor.Equal(want) {
		t.Fatalf("anchor %v want %v", anchor, want)
	}
	if anchor.Minute() != 0 {
		t.Fatalf("anchor %v not on a local step boundary", anchor)
	}
	if s := g.SlotOf(anchor); s != 12 {
		t.Fatalf("slot %d want 12", s)
	}

	half, _ := New(30, 48)
	if got := half.Align(now); got.Minute() != 30 {
		t.Fatalf("half-hour anchor %v want local :30", got)
	}
}

func TestSlotOf(t *testing.T) {
	g, _ := New(15, 48)
	if s := g.SlotsPerDay(); s != 96 {
		t.Fatalf("slots per day %d", s)
	}
	tm := time.Date(2026, 3, 14, 13, 47, 0, 0, time.UTC)
	if slot := g.SlotOf(tm); slot != 13*4+3 {
		t.Fatalf("slot %d", slot)
	}
	hourly, _ := New(60, 48)
	if slot := hourly.SlotOf(tm); slot != 13 {
		t.Fatalf("hourly slot %d", slot)
	}
}

func TestTruncateShrinkOnly(t *testing.T) {
	g, _ := New(60, 48)
	g.Truncate(10)
	if g.Horizon() != 10 {
		t.Fatalf("horizon %d", g.Horizon())
	}
	g.Truncate(20)
	if g.Horizon() != 10 {
		t.Fatalf("horizon grew to %d", g.Horizon())
	}
	g.Truncate(-1)
	if g.Horizon() != 0 {
		t.Fatalf("negative truncate gave %d", g.Horizon())
	}
}
