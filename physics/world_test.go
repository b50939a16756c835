package physics

import (
	"math"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"flaparena/game"
)

const frame = 20 * time.Millisecond

func newTestWorld(t *testing.T, gravity float64, platforms ...Rect) *World {
	t.Helper()
	s := DefaultSettings()
	s.Gravity = gravity
	s.Platforms = platforms
	w, err := NewWorld(s, zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	return w
}

func find(events []game.ContactEvent, phase game.ContactPhase, self, other game.BodyID) (game.ContactEvent, bool) {
	for _, ev := range events {
		if ev.Phase == phase && ev.Self == self && ev.Other == other {
			return ev, true
		}
	}
	return game.ContactEvent{}, false
}

func near(a, b game.Vec2) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9
}

func TestNewWorldRejectsBadSettings(t *testing.T) {
	s := DefaultSettings()
	s.Width = 0
	if _, err := NewWorld(s, nil); err == nil {
		t.Fatalf("expected error for zero width")
	}
	s = DefaultSettings()
	s.BodyH = -1
	if _, err := NewWorld(s, nil); err == nil {
		t.Fatalf("expected error for negative body size")
	}
}

func TestBodyFallsAndLandsOnPlatform(t *testing.T) {
	w := newTestWorld(t, -20, Rect{X: -3, Y: -1, W: 6, H: 1})
	b := w.Spawn(game.Vec2{X: 0, Y: 1}).(*Body)

	var landed game.ContactEvent
	ok := false
	for i := 0; i < 50 && !ok; i++ {
		landed, ok = find(w.Step(frame), game.ContactBegin, b.ID(), staticBase)
	}
	if !ok {
		t.Fatalf("body never touched the platform, pos=%v", b.Position())
	}
	if landed.OtherIsPlayer || landed.Normal != game.Up {
		t.Fatalf("landing contact = %+v", landed)
	}
	if bottom := b.Bounds().Y; math.Abs(bottom) > 1e-9 {
		t.Fatalf("body should rest on top of the platform, bottom=%v", bottom)
	}

	// 持续接触：不再重复 Begin，速度不再指向平台内部
	for i := 0; i < 5; i++ {
		if evs := w.Step(frame); len(evs) != 0 {
			t.Fatalf("unexpected events while resting: %+v", evs)
		}
	}
	if b.Velocity().Y < 0 {
		t.Fatalf("resting body still moving into platform: %v", b.Velocity())
	}
}

func TestLeavingPlatformEndsContact(t *testing.T) {
	w := newTestWorld(t, -20, Rect{X: -3, Y: -1, W: 6, H: 1})
	b := w.Spawn(game.Vec2{X: 0, Y: 0.5}).(*Body)
	if _, ok := find(w.Step(frame), game.ContactBegin, b.ID(), staticBase); !ok {
		t.Fatalf("expected contact with platform")
	}

	b.SetPosition(game.Vec2{X: 10, Y: 5})
	if _, ok := find(w.Step(frame), game.ContactEnd, b.ID(), staticBase); !ok {
		t.Fatalf("expected contact end after leaving platform")
	}
}

func TestPlayerContactReportedFromBothSides(t *testing.T) {
	w := newTestWorld(t, 0)
	a := w.Spawn(game.Vec2{X: 0, Y: 0.6})
	b := w.Spawn(game.Vec2{X: 0, Y: 0})

	evs := w.Step(frame)
	ab, ok := find(evs, game.ContactBegin, a.ID(), b.ID())
	if !ok || !ab.OtherIsPlayer || !near(ab.Normal, game.Up) {
		t.Fatalf("a->b contact = %+v (found %v)", ab, ok)
	}
	ba, ok := find(evs, game.ContactBegin, b.ID(), a.ID())
	if !ok || !near(ba.Normal, game.Vec2{Y: -1}) {
		t.Fatalf("b->a contact = %+v (found %v)", ba, ok)
	}

	if evs := w.Step(frame); len(evs) != 0 {
		t.Fatalf("persisting overlap must not re-begin: %+v", evs)
	}

	b.SetPosition(game.Vec2{X: 5, Y: 0})
	evs = w.Step(frame)
	if _, ok := find(evs, game.ContactEnd, a.ID(), b.ID()); !ok {
		t.Fatalf("expected end for a->b: %+v", evs)
	}
	if _, ok := find(evs, game.ContactEnd, b.ID(), a.ID()); !ok {
		t.Fatalf("expected end for b->a: %+v", evs)
	}
}

func TestDisabledHitBoxSkipsPlayerContacts(t *testing.T) {
	w := newTestWorld(t, 0)
	a := w.Spawn(game.Vec2{X: 0, Y: 0.5})
	b := w.Spawn(game.Vec2{X: 0.2, Y: 0})
	a.SetHitBox(false)

	if evs := w.Step(frame); len(evs) != 0 {
		t.Fatalf("contacts with disabled hit box: %+v", evs)
	}

	// 重新开启时仍重叠，产生新的 Begin
	a.SetHitBox(true)
	if _, ok := find(w.Step(frame), game.ContactBegin, b.ID(), a.ID()); !ok {
		t.Fatalf("expected contact once hit box re-enabled")
	}
}

func TestDisabledPlatformBoxFallsThrough(t *testing.T) {
	w := newTestWorld(t, -20, Rect{X: -3, Y: -1, W: 6, H: 1})
	b := w.Spawn(game.Vec2{X: 0, Y: 0.5})
	b.SetPlatformBox(false)
	for i := 0; i < 20; i++ {
		if evs := w.Step(frame); len(evs) != 0 {
			t.Fatalf("dead body collided with platform: %+v", evs)
		}
	}
	if b.Position().Y >= 0 {
		t.Fatalf("body should fall through, y=%v", b.Position().Y)
	}
}

func TestForceIsIntegratedOnceAndCleared(t *testing.T) {
	w := newTestWorld(t, 0)
	b := w.Spawn(game.Zero).(*Body)
	b.AddForce(game.Vec2{X: 10})
	b.AddForce(game.Vec2{Y: 5})
	w.Step(time.Second)
	if b.Velocity() != (game.Vec2{X: 10, Y: 5}) {
		t.Fatalf("velocity = %v", b.Velocity())
	}
	if b.PendingForce() != game.Zero {
		t.Fatalf("force not cleared: %v", b.PendingForce())
	}
	w.Step(time.Second)
	if p := b.Position(); math.Abs(p.X-20) > 1e-9 || math.Abs(p.Y-10) > 1e-9 {
		t.Fatalf("position = %v, want (20,10)", p)
	}
}

func TestImpulseChangeIsIndependentOfStep(t *testing.T) {
	w := newTestWorld(t, 0)
	mass := w.settings.Mass
	for _, dt := range []time.Duration{5 * time.Millisecond, frame, 100 * time.Millisecond} {
		b := w.Spawn(game.Zero).(*Body)
		b.AddImpulse(game.Vec2{Y: 6})
		b.AddImpulse(game.Vec2{X: 2})
		w.Step(dt)
		if want := (game.Vec2{X: 2 / mass, Y: 6 / mass}); !near(b.Velocity(), want) {
			t.Fatalf("dt=%v: velocity = %v, want %v", dt, b.Velocity(), want)
		}
		if b.PendingImpulse() != game.Zero {
			t.Fatalf("dt=%v: impulse not cleared: %v", dt, b.PendingImpulse())
		}
		w.Step(dt)
		if want := (game.Vec2{X: 2 / mass, Y: 6 / mass}); !near(b.Velocity(), want) {
			t.Fatalf("dt=%v: impulse applied twice, velocity = %v", dt, b.Velocity())
		}
		w.Destroy(b)
	}
}

func TestPositionIsExactWorldCentre(t *testing.T) {
	w := newTestWorld(t, 0)
	b := w.Spawn(game.Vec2{X: 0.1, Y: 0.2})
	if p := b.Position(); p != (game.Vec2{X: 0.1, Y: 0.2}) {
		t.Fatalf("spawn position = %v", p)
	}
	for _, p := range []game.Vec2{{X: -13.7, Y: 1.3}, {X: 13.7, Y: -2.9}, {X: 0.3, Y: 0.7}} {
		b.SetPosition(p)
		if got := b.Position(); got != p {
			t.Fatalf("SetPosition(%v) read back %v", p, got)
		}
		w.Step(frame)
		if got := b.Position(); got != p {
			t.Fatalf("resting body drifted from %v to %v", p, got)
		}
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	w := newTestWorld(t, 0)
	a := w.Spawn(game.Zero)
	b := w.Spawn(game.Vec2{X: 0.5})
	w.Step(frame)

	w.Destroy(a)
	w.Destroy(a)
	if w.Len() != 1 {
		t.Fatalf("bodies = %d", w.Len())
	}
	if evs := w.Step(frame); len(evs) != 0 {
		t.Fatalf("destroyed body produced events: %+v", evs)
	}
	if _, ok := w.Body(b.ID()); !ok {
		t.Fatalf("surviving body lost")
	}
}

func TestSeparate(t *testing.T) {
	box := Rect{X: 0, Y: 0, W: 2, H: 2}
	cases := []struct {
		name   string
		a      Rect
		touch  bool
		normal game.Vec2
		depth  float64
	}{
		{"on top", Rect{X: 0.5, Y: 1.75, W: 1, H: 1}, true, game.Up, 0.25},
		{"below", Rect{X: 0.5, Y: -0.9, W: 1, H: 1}, true, game.Vec2{Y: -1}, 0.1},
		{"left side", Rect{X: -0.8, Y: 0.5, W: 1, H: 1}, true, game.Vec2{X: -1}, 0.2},
		{"resting exactly", Rect{X: 0.5, Y: 2, W: 1, H: 1}, true, game.Up, 0},
		{"apart", Rect{X: 5, Y: 5, W: 1, H: 1}, false, game.Zero, 0},
		{"corner only", Rect{X: 2, Y: 2, W: 1, H: 1}, false, game.Zero, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n, d, ok := separate(c.a, box)
			if ok != c.touch {
				t.Fatalf("touch = %v, want %v", ok, c.touch)
			}
			if !ok {
				return
			}
			if n != c.normal || math.Abs(d-c.depth) > 1e-9 {
				t.Fatalf("normal=%v depth=%v, want %v %v", n, d, c.normal, c.depth)
			}
		})
	}
}
