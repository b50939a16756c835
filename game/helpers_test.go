package game

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type fakeBody struct {
	id        BodyID
	pos, vel  Vec2
	force     Vec2
	impulse   Vec2
	hit       bool
	platform  bool
	destroyed bool
}

func (b *fakeBody) ID() BodyID                  { return b.id }
func (b *fakeBody) Position() Vec2              { return b.pos }
func (b *fakeBody) SetPosition(p Vec2)          { b.pos = p }
func (b *fakeBody) Velocity() Vec2              { return b.vel }
func (b *fakeBody) SetVelocity(v Vec2)          { b.vel = v }
func (b *fakeBody) AddForce(f Vec2)             { b.force = b.force.Add(f) }
func (b *fakeBody) AddImpulse(j Vec2)           { b.impulse = b.impulse.Add(j) }
func (b *fakeBody) SetHitBox(enabled bool)      { b.hit = enabled }
func (b *fakeBody) SetPlatformBox(enabled bool) { b.platform = enabled }

type fakeWorld struct {
	next   BodyID
	bodies map[BodyID]*fakeBody
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{bodies: make(map[BodyID]*fakeBody)}
}

func (w *fakeWorld) Spawn(pos Vec2) Body {
	w.next++
	b := &fakeBody{id: w.next, pos: pos, platform: true}
	w.bodies[b.id] = b
	return b
}

func (w *fakeWorld) Destroy(b Body) {
	fb := b.(*fakeBody)
	fb.destroyed = true
	delete(w.bodies, fb.id)
}

type fakeInput map[SeatID]Controls

func (in fakeInput) Poll(seat SeatID) Controls { return in[seat] }

// recorder 收集总线上的事件
type recorder struct {
	events []Event
}

func (r *recorder) on(e Event) { r.events = append(r.events, e) }

func (r *recorder) kinds() []EventKind {
	out := make([]EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind())
	}
	return out
}

func (r *recorder) count(k EventKind) int {
	n := 0
	for _, e := range r.events {
		if e.Kind() == k {
			n++
		}
	}
	return n
}

func (r *recorder) intents(seat SeatID, kind IntentKind) []Intent {
	var out []Intent
	for _, e := range r.events {
		if in, ok := e.(Intent); ok && in.Seat == seat && in.Type == kind {
			out = append(out, in)
		}
	}
	return out
}

type harness struct {
	t     *testing.T
	reg   *Registry
	world *fakeWorld
	input fakeInput
	rec   *recorder
}

func newHarness(t *testing.T, playerCount, lives int) *harness {
	t.Helper()
	tune := DefaultTuning()
	tune.PlayerCount = playerCount
	tune.StartLives = lives
	h := &harness{t: t, world: newFakeWorld(), input: fakeInput{}, rec: &recorder{}}
	bus := NewBus()
	bus.Subscribe(h.rec.on)
	reg, err := NewRegistry(Options{
		World:  h.world,
		Input:  h.input,
		Bus:    bus,
		Tuning: tune,
		Rand:   rand.New(rand.NewPCG(1, 2)),
		Logger: zaptest.NewLogger(t).Sugar(),
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	h.reg = reg
	return h
}

func (h *harness) start() {
	h.t.Helper()
	if err := h.reg.SetState(StateSelecting); err != nil {
		h.t.Fatalf("SetState(selecting): %v", err)
	}
	if err := h.reg.SetState(StatePlaying); err != nil {
		h.t.Fatalf("SetState(playing): %v", err)
	}
	h.reg.Bus().Drain()
}

// warmUp 跳过出生无敌
func (h *harness) warmUp() {
	h.reg.Step(h.reg.Tuning().Invulnerability(), nil)
	h.reg.Bus().Drain()
}

func (h *harness) step(dt time.Duration, contacts ...ContactEvent) {
	h.reg.Step(dt, contacts)
	h.reg.Bus().Drain()
}

func (h *harness) agent(seat SeatID) *Agent {
	h.t.Helper()
	a, ok := h.reg.Agent(seat)
	if !ok {
		h.t.Fatalf("seat %d has no live agent", seat)
	}
	return a
}

func (h *harness) body(seat SeatID) *fakeBody {
	return h.agent(seat).body.(*fakeBody)
}

func (h *harness) record(seat SeatID) PlayerRecord {
	h.t.Helper()
	rec, ok := h.reg.Record(seat)
	if !ok {
		h.t.Fatalf("seat %d has no record", seat)
	}
	return rec
}

// place 设置两名玩家位置并返回 a 视角的碰撞事件（法线指向 a）
func (h *harness) place(a, b SeatID, pa, pb Vec2) ContactEvent {
	ba, bb := h.body(a), h.body(b)
	ba.pos, bb.pos = pa, pb
	return ContactEvent{
		Phase:         ContactBegin,
		Self:          ba.id,
		Other:         bb.id,
		OtherIsPlayer: true,
		Normal:        pa.Sub(pb).Normalized(),
	}
}

func mirror(ev ContactEvent) ContactEvent {
	ev.Self, ev.Other = ev.Other, ev.Self
	ev.Normal = ev.Normal.Scale(-1)
	return ev
}

func newTestAgent(t *testing.T, pos Vec2) (*Agent, *fakeBody, fakeInput, *recorder) {
	t.Helper()
	tune := DefaultTuning()
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe(rec.on)
	in := fakeInput{}
	body := &fakeBody{id: 1, pos: pos, platform: true}
	a := newAgent(0, body, agentEnv{input: in, bus: bus, tune: &tune, log: zaptest.NewLogger(t).Sugar()})
	return a, body, in, rec
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func approxVec(a, b Vec2) bool { return approx(a.X, b.X) && approx(a.Y, b.Y) }
