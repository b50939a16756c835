package game

import "math"

// Vec2 二维向量（世界坐标，y 轴向上）
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

var (
	Zero = Vec2{}
	Up   = Vec2{0, 1}
)

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(k float64) Vec2 { return Vec2{v.X * k, v.Y * k} }
func (v Vec2) Mul(o Vec2) Vec2      { return Vec2{v.X * o.X, v.Y * o.Y} }
func (v Vec2) Dot(o Vec2) float64   { return v.X*o.X + v.Y*o.Y }
func (v Vec2) Len() float64         { return math.Hypot(v.X, v.Y) }
func (v Vec2) IsZero() bool         { return v.X == 0 && v.Y == 0 }

// Normalized 返回单位向量；零向量原样返回
func (v Vec2) Normalized() Vec2 {
	l := v.Len()
	if l == 0 {
		return Zero
	}
	return Vec2{v.X / l, v.Y / l}
}

// Reflect 以法线 n（单位向量）反射 v：v - 2(n·v)n
func Reflect(v, n Vec2) Vec2 {
	return v.Sub(n.Scale(2 * n.Dot(v)))
}
