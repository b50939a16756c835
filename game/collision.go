package game

import "math"

// Outcome 一次碰撞对某个 Agent 的判定结果
type Outcome int

const (
	OutcomeLand   Outcome = iota + 1 // 着陆：不反射速度
	OutcomeBounce                    // 弹开
	OutcomeKill                      // 踩中对方，自身强制弹开
	OutcomeKilled                    // 被踩
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLand:
		return "land"
	case OutcomeBounce:
		return "bounce"
	case OutcomeKill:
		return "kill"
	case OutcomeKilled:
		return "killed"
	}
	return "unknown"
}

// ClassifyStatic 与平台/墙碰撞：法线足够朝上即着陆，否则弹开
func ClassifyStatic(normal Vec2, minUpY float64) Outcome {
	if normal.Y >= minUpY {
		return OutcomeLand
	}
	return OutcomeBounce
}

// ClassifyPlayers 从 self 的视角判定两名玩家的碰撞
// 垂直间距 < eps 视为同高，双方弹开；否则高者击杀低者
func ClassifyPlayers(self, other Vec2, eps float64) Outcome {
	dy := self.Y - other.Y
	if math.Abs(dy) < eps {
		return OutcomeBounce
	}
	if dy > 0 {
		return OutcomeKill
	}
	return OutcomeKilled
}

// BounceVelocity 计算弹开后的速度，结果长度等于缩放后 forward 的长度
// 静止时视为沿 self->other 方向撞上对方，反射后得到离开对方的方向
func BounceVelocity(velocity, normal, self, other, force Vec2) Vec2 {
	forward := velocity.Normalized()
	if forward.IsZero() {
		forward = other.Sub(self).Normalized()
	}
	if forward.IsZero() {
		forward = normal.Scale(-1)
	}
	forward = forward.Mul(force)
	reflected := Reflect(forward, normal)
	return reflected.Normalized().Scale(forward.Len())
}
