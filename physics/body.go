package physics

import (
	"github.com/solarlune/resolv"

	"flaparena/game"
)

// Body 玩家刚体：resolv 对象只负责宽相位，中心位置以世界坐标 pos 为准
type Body struct {
	id    game.BodyID
	obj   *resolv.Object
	world *World

	pos     game.Vec2
	vel     game.Vec2
	force   game.Vec2
	impulse game.Vec2

	hit      bool // 玩家间碰撞盒
	platform bool // 与平台的碰撞盒
}

func (b *Body) ID() game.BodyID         { return b.id }
func (b *Body) Velocity() game.Vec2     { return b.vel }
func (b *Body) SetVelocity(v game.Vec2) { b.vel = v }
func (b *Body) AddForce(f game.Vec2)    { b.force = b.force.Add(f) }
func (b *Body) AddImpulse(j game.Vec2)  { b.impulse = b.impulse.Add(j) }
func (b *Body) HitBox() bool            { return b.hit }
func (b *Body) PlatformBox() bool       { return b.platform }
func (b *Body) SetPlatformBox(on bool)  { b.platform = on }
func (b *Body) Position() game.Vec2     { return b.pos }
func (b *Body) SetPosition(p game.Vec2) { b.world.place(b, p) }
func (b *Body) Bounds() Rect            { return b.bounds() }
func (b *Body) PendingForce() game.Vec2 { return b.force }

func (b *Body) PendingImpulse() game.Vec2 { return b.impulse }

// SetHitBox 关闭时立即结束该刚体参与的所有玩家接触
func (b *Body) SetHitBox(on bool) {
	if b.hit == on {
		return
	}
	b.hit = on
	if !on {
		b.world.dropPlayerContacts(b.id)
	}
}

func (b *Body) bounds() Rect {
	s := b.world.settings
	return Rect{X: b.pos.X - s.BodyW/2, Y: b.pos.Y - s.BodyH/2, W: s.BodyW, H: s.BodyH}
}
