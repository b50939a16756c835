package physics

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/solarlune/resolv"
	"go.uber.org/zap"

	"flaparena/game"
)

const (
	pixelsPerUnit = 16 // resolv 空间使用整数格子，世界坐标按此比例放大
	cellSize      = 16

	tagPlayer = "player"
	tagStatic = "static"

	// 相邻但未穿透也算接触，避免静止在平台上时接触抖动
	contactSkin = 1e-4
)

// staticBase 平台的 BodyID 从高位分配，与玩家刚体不冲突
const staticBase game.BodyID = 1 << 48

type static struct {
	id   game.BodyID
	rect Rect
	obj  *resolv.Object
}

type contactKey struct{ self, other game.BodyID }

type contact struct {
	normal game.Vec2
	point  game.Vec2
	player bool
}

// World 基于 resolv 宽相位的最小 2D 物理：重力积分、平台 AABB 穿透修正、接触开始/结束检测
// 与 Registry 一样只能在 Tick 线程内使用
type World struct {
	space    *resolv.Space
	settings Settings
	offset   game.Vec2 // 世界坐标 + offset = 空间坐标（单位：世界单位）
	log      *zap.SugaredLogger

	next    game.BodyID
	bodies  map[game.BodyID]*Body
	statics []*static

	active map[contactKey]contact
}

// NewWorld 按设置建立空间并放入所有平台
func NewWorld(s Settings, log *zap.SugaredLogger) (*World, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return nil, errors.New("physics: world size must be positive")
	}
	if s.BodyW <= 0 || s.BodyH <= 0 {
		return nil, errors.New("physics: body size must be positive")
	}
	if s.Mass <= 0 {
		s.Mass = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	w := &World{
		space: resolv.NewSpace(
			int(math.Ceil(s.Width*pixelsPerUnit)),
			int(math.Ceil(s.Height*pixelsPerUnit)),
			cellSize, cellSize,
		),
		settings: s,
		offset:   game.Vec2{X: s.Width / 2, Y: s.Height / 2},
		log:      log,
		bodies:   make(map[game.BodyID]*Body),
		active:   make(map[contactKey]contact),
	}
	for i, r := range s.Platforms {
		if r.W <= 0 || r.H <= 0 {
			log.Warnw("skipping degenerate platform", "index", i, "rect", r)
			continue
		}
		st := &static{id: staticBase + game.BodyID(i), rect: r}
		st.obj = w.newObject(r, tagStatic)
		st.obj.Data = st
		w.space.Add(st.obj)
		w.statics = append(w.statics, st)
	}
	log.Infow("physics world ready", "platforms", len(w.statics), "gravity", s.Gravity)
	return w, nil
}

func (w *World) newObject(r Rect, tag string) *resolv.Object {
	x, y := w.toSpace(r.Min())
	return resolv.NewObject(x, y, r.W*pixelsPerUnit, r.H*pixelsPerUnit, tag)
}

func (w *World) toSpace(p game.Vec2) (float64, float64) {
	q := p.Add(w.offset).Scale(pixelsPerUnit)
	return q.X, q.Y
}

// place 把刚体中心移动到 p，resolv 对象随之同步
func (w *World) place(b *Body, p game.Vec2) {
	s := w.settings
	b.pos = p
	b.obj.X, b.obj.Y = w.toSpace(game.Vec2{X: p.X - s.BodyW/2, Y: p.Y - s.BodyH/2})
	b.obj.Update()
}

// Spawn 在 pos（中心）创建玩家刚体，两个碰撞盒默认开启
func (w *World) Spawn(pos game.Vec2) game.Body {
	w.next++
	s := w.settings
	b := &Body{id: w.next, world: w, pos: pos, hit: true, platform: true}
	b.obj = w.newObject(Rect{X: pos.X - s.BodyW/2, Y: pos.Y - s.BodyH/2, W: s.BodyW, H: s.BodyH}, tagPlayer)
	b.obj.Data = b
	w.space.Add(b.obj)
	w.bodies[b.id] = b
	return b
}

// Destroy 移出空间并丢弃该刚体的所有接触，重复调用无副作用
func (w *World) Destroy(gb game.Body) {
	b, ok := gb.(*Body)
	if !ok {
		w.log.Warnw("destroy of foreign body ignored", "body", gb.ID())
		return
	}
	if _, ok := w.bodies[b.id]; !ok {
		return
	}
	w.space.Remove(b.obj)
	delete(w.bodies, b.id)
	for k := range w.active {
		if k.self == b.id || k.other == b.id {
			delete(w.active, k)
		}
	}
}

// Body 按 ID 查找玩家刚体
func (w *World) Body(id game.BodyID) (*Body, bool) {
	b, ok := w.bodies[id]
	return b, ok
}

func (w *World) Len() int { return len(w.bodies) }

// Platforms 有效平台（世界坐标）
func (w *World) Platforms() []Rect {
	out := make([]Rect, 0, len(w.statics))
	for _, st := range w.statics {
		out = append(out, st.rect)
	}
	return out
}

func (w *World) dropPlayerContacts(id game.BodyID) {
	for k, c := range w.active {
		if c.player && (k.self == id || k.other == id) {
			delete(w.active, k)
		}
	}
}

func (w *World) sortedBodies() []*Body {
	out := make([]*Body, 0, len(w.bodies))
	for _, b := range w.bodies {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Step 积分一帧并返回接触变化；每个玩家间接触对两侧各报告一次，法线指向 Self
func (w *World) Step(dt time.Duration) []game.ContactEvent {
	secs := dt.Seconds()
	bodies := w.sortedBodies()
	gravity := game.Vec2{Y: w.settings.Gravity}
	inv := 1 / w.settings.Mass
	for _, b := range bodies {
		accel := b.force.Scale(inv).Add(gravity)
		b.vel = b.vel.Add(b.impulse.Scale(inv)).Add(accel.Scale(secs))
		b.force, b.impulse = game.Zero, game.Zero
		w.place(b, b.pos.Add(b.vel.Scale(secs)))
	}

	touching := make(map[contactKey]contact)
	for _, b := range bodies {
		if b.platform {
			w.collideStatics(b, touching)
		}
		if b.hit {
			w.collidePlayers(b, touching)
		}
	}
	return w.diff(touching)
}

func (w *World) candidates(b *Body, tag string) []*resolv.Object {
	col := b.obj.Check(0, 0, tag)
	if col == nil {
		return nil
	}
	return col.Objects
}

func (w *World) collideStatics(b *Body, touching map[contactKey]contact) {
	for _, obj := range w.candidates(b, tagStatic) {
		st, ok := obj.Data.(*static)
		if !ok {
			continue
		}
		normal, depth, ok := separate(b.bounds(), st.rect)
		if !ok {
			continue
		}
		if depth > 0 {
			w.place(b, b.Position().Add(normal.Scale(depth)))
		}
		key := contactKey{b.id, st.id}
		if _, was := w.active[key]; was {
			// 持续接触：去掉指向平台内部的速度分量
			if into := b.vel.Dot(normal); into < 0 {
				b.vel = b.vel.Sub(normal.Scale(into))
			}
		}
		touching[key] = contact{normal: normal, point: st.rect.Clamp(b.Position())}
	}
}

func (w *World) collidePlayers(b *Body, touching map[contactKey]contact) {
	for _, obj := range w.candidates(b, tagPlayer) {
		o, ok := obj.Data.(*Body)
		if !ok || o.id <= b.id || !o.hit {
			continue
		}
		if _, _, ok := separate(b.bounds(), o.bounds()); !ok {
			continue
		}
		pb, po := b.Position(), o.Position()
		n := pb.Sub(po).Normalized()
		if n.IsZero() {
			n = game.Up
		}
		mid := pb.Add(po).Scale(0.5)
		touching[contactKey{b.id, o.id}] = contact{normal: n, point: mid, player: true}
		touching[contactKey{o.id, b.id}] = contact{normal: n.Scale(-1), point: mid, player: true}
	}
}

// diff 对比本帧与上一帧的接触集合，按 (Self, Other) 排序产生事件
func (w *World) diff(touching map[contactKey]contact) []game.ContactEvent {
	var events []game.ContactEvent
	for k, c := range touching {
		if _, was := w.active[k]; !was {
			events = append(events, w.event(game.ContactBegin, k, c))
		}
	}
	for k, c := range w.active {
		if _, still := touching[k]; !still {
			events = append(events, w.event(game.ContactEnd, k, c))
		}
	}
	w.active = touching
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Phase != b.Phase {
			return a.Phase > b.Phase // 先结束再开始
		}
		if a.Self != b.Self {
			return a.Self < b.Self
		}
		return a.Other < b.Other
	})
	return events
}

func (w *World) event(phase game.ContactPhase, k contactKey, c contact) game.ContactEvent {
	return game.ContactEvent{
		Phase:         phase,
		Self:          k.self,
		Other:         k.other,
		OtherIsPlayer: c.player,
		Normal:        c.normal,
		Point:         c.point,
	}
}

// separate 判断 a 与 b 是否接触，返回把 a 推出 b 的最小轴法线与穿透深度
// 仅贴合（深度在 contactSkin 内）时 depth <= 0
func separate(a, b Rect) (game.Vec2, float64, bool) {
	amin, amax := a.Min(), a.Max()
	bmin, bmax := b.Min(), b.Max()
	ox := math.Min(amax.X, bmax.X) - math.Max(amin.X, bmin.X)
	oy := math.Min(amax.Y, bmax.Y) - math.Max(amin.Y, bmin.Y)
	if ox <= -contactSkin || oy <= -contactSkin || (ox <= 0 && oy <= 0) {
		return game.Zero, 0, false
	}
	ca, cb := a.Center(), b.Center()
	if ox < oy {
		if ca.X < cb.X {
			return game.Vec2{X: -1}, ox, true
		}
		return game.Vec2{X: 1}, ox, true
	}
	if ca.Y < cb.Y {
		return game.Vec2{Y: -1}, oy, true
	}
	return game.Vec2{Y: 1}, oy, true
}
