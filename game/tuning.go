package game

import "time"

// 场地与判定常量
const (
	WrapAt = 13.8 // |x| 超过此值即瞬移到对侧
	WrapTo = 13.7

	SameHeightEpsilon = 0.05 // 两玩家垂直间距小于此值视为同高，互相弹开
	LandNormalMinY    = 0.99 // 法线 y 分量不低于此值视为着陆

	StopImpulse = 0.025 // 落地减速时每帧的反向速度
	StopSnap    = 0.1   // |vx| 低于此值直接归零
	AnySpawn    = -1    // Respawn 随机出生点
)

// Tuning 玩家与回合参数，由 config 包从 viper 映射而来
type Tuning struct {
	MoveForce   Vec2    // x: 水平推力, y: 振翅冲量（直接改变速度，与 Tick 频率无关）
	BounceForce Vec2    // 弹开时的 x/y 非对称恢复系数
	MaxSpeedX   float64 // 水平速度上限

	WrapAt float64
	WrapTo float64

	SameHeightEpsilon float64
	LandNormalMinY    float64

	// 出生无敌闪烁：BlinkCycles 次（显示 BlinkShown 后隐藏 BlinkHidden）
	BlinkCycles int
	BlinkShown  time.Duration
	BlinkHidden time.Duration

	RespawnDelay time.Duration

	SpawnPoints []Vec2
	PlayerCount int
	StartLives  int
}

// DefaultTuning 默认参数
func DefaultTuning() Tuning {
	return Tuning{
		MoveForce:         Vec2{X: 20, Y: 6},
		BounceForce:       Vec2{X: 4, Y: 4},
		MaxSpeedX:         5,
		WrapAt:            WrapAt,
		WrapTo:            WrapTo,
		SameHeightEpsilon: SameHeightEpsilon,
		LandNormalMinY:    LandNormalMinY,
		BlinkCycles:       5,
		BlinkShown:        300 * time.Millisecond,
		BlinkHidden:       100 * time.Millisecond,
		RespawnDelay:      2 * time.Second,
		SpawnPoints: []Vec2{
			{X: -9, Y: 4}, {X: 9, Y: 4}, {X: -4, Y: -2}, {X: 4, Y: -2},
		},
		PlayerCount: 2,
		StartLives:  3,
	}
}

// Invulnerability 出生无敌总时长
func (t Tuning) Invulnerability() time.Duration {
	return time.Duration(t.BlinkCycles) * (t.BlinkShown + t.BlinkHidden)
}
