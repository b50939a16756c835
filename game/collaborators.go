package game

// SeatID 稳定的座位号（0..N-1），与具体某一条命的 Agent 无关
type SeatID int

// BodyID 物理体标识，由物理协作方分配
type BodyID uint64

// Body 物理协作方提供的刚体句柄；位置/速度由物理引擎积分，本层只读写与施力
type Body interface {
	ID() BodyID
	Position() Vec2
	SetPosition(p Vec2)
	Velocity() Vec2
	SetVelocity(v Vec2)
	// AddForce 累加一个力，下一次物理步进时按 dt 积分
	AddForce(f Vec2)
	// AddImpulse 累加一个冲量，下一次物理步进时直接改变速度（与 dt 无关）
	AddImpulse(j Vec2)
	// SetHitBox 玩家间碰撞盒（击杀/弹开判定）
	SetHitBox(enabled bool)
	// SetPlatformBox 与场地碰撞的盒子
	SetPlatformBox(enabled bool)
}

// World 物理世界：创建/销毁 Agent 的刚体
type World interface {
	Spawn(pos Vec2) Body
	Destroy(b Body)
}

// Controls 单个座位某一帧的输入
type Controls struct {
	Axis   float64 `json:"axis"`
	Flight bool    `json:"flight"`
}

// InputSource 按座位轮询输入
type InputSource interface {
	Poll(seat SeatID) Controls
}

// ContactPhase 碰撞开始/结束
type ContactPhase int

const (
	ContactBegin ContactPhase = iota
	ContactEnd
)

// ContactEvent 物理层上报的碰撞事件，从 Self 的视角描述
// Normal 为指向 Self 的单位法线
type ContactEvent struct {
	Phase         ContactPhase
	Self          BodyID
	Other         BodyID
	OtherIsPlayer bool
	Normal        Vec2
	Point         Vec2
}
