package physics

import "flaparena/game"

// Rect 以左下角 + 宽高描述的轴对齐矩形（世界坐标）
type Rect struct {
	X float64 `mapstructure:"x" json:"x"`
	Y float64 `mapstructure:"y" json:"y"`
	W float64 `mapstructure:"w" json:"w"`
	H float64 `mapstructure:"h" json:"h"`
}

func (r Rect) Min() game.Vec2 { return game.Vec2{X: r.X, Y: r.Y} }
func (r Rect) Max() game.Vec2 { return game.Vec2{X: r.X + r.W, Y: r.Y + r.H} }

// Center 矩形中心
func (r Rect) Center() game.Vec2 {
	return game.Vec2{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Clamp 矩形上离 p 最近的点
func (r Rect) Clamp(p game.Vec2) game.Vec2 {
	lo, hi := r.Min(), r.Max()
	return game.Vec2{X: clamp(p.X, lo.X, hi.X), Y: clamp(p.Y, lo.Y, hi.Y)}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Settings 物理世界参数
type Settings struct {
	Gravity   float64 `mapstructure:"gravity"`
	BodyW     float64 `mapstructure:"body_width"`
	BodyH     float64 `mapstructure:"body_height"`
	Mass      float64 `mapstructure:"mass"`
	Width     float64 `mapstructure:"width"`  // 空间覆盖的世界宽度，以原点为中心
	Height    float64 `mapstructure:"height"` // 空间覆盖的世界高度，以原点为中心
	Platforms []Rect  `mapstructure:"platforms"`
}

// DefaultSettings 默认竞技场：地面、两侧悬浮平台、中央高台与顶棚
// 左右两侧不设墙，出界由 Agent 自行回绕
func DefaultSettings() Settings {
	return Settings{
		Gravity: -20,
		BodyW:   1,
		BodyH:   1,
		Mass:    1,
		Width:   40,
		Height:  30,
		Platforms: []Rect{
			{X: -15, Y: -7, W: 30, H: 1},   // 地面
			{X: -11, Y: 2, W: 5, H: 0.5},   // 左上
			{X: 6, Y: 2, W: 5, H: 0.5},     // 右上
			{X: -6, Y: -3.5, W: 4, H: 0.5}, // 左下
			{X: 2, Y: -3.5, W: 4, H: 0.5},  // 右下
			{X: -2, Y: 5.5, W: 4, H: 0.5},  // 中央
			{X: -15, Y: 9, W: 30, H: 1},    // 顶棚
		},
	}
}
