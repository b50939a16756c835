package game

import (
	"math"
	"time"

	"go.uber.org/zap"
)

// 死亡演出时序
var (
	deathLaunchDelay = 200 * time.Millisecond
	deathFlapHold    = 200 * time.Millisecond
	deathFlapGap     = 100 * time.Millisecond
	deathTailDelay   = 300 * time.Millisecond
)

// agentEnv Agent 依赖的协作方，由 Registry 注入
type agentEnv struct {
	input InputSource
	bus   *Bus
	tune  *Tuning
	log   *zap.SugaredLogger
}

// Agent 某个座位的一条命：移动、振翅、碰撞判定与反射
type Agent struct {
	seat SeatID
	body Body
	env  agentEnv

	horizontal   float64
	flap         bool // 本帧按住飞行键
	flapping     bool // 已触发过本次按下的冲量，松开后复位
	prevVelocity Vec2
	accelX       float64
	grounded     bool
	flipped      bool // true 表示朝左
	stopping     bool

	dead      bool
	destroyed bool
	hitBox    bool
	visible   bool

	spawnSeq *Sequence
	deathSeq *Sequence
	hold     bool // 计时在当前帧内创建，下一次 Update 不推进

	// 连续参数只在变化时发意图
	lastSpeed    float64
	lastAccel    float64
	lastGrounded bool
}

func newAgent(seat SeatID, body Body, env agentEnv) *Agent {
	a := &Agent{seat: seat, body: body, env: env, visible: true}
	a.startInvulnerability()
	return a
}

func (a *Agent) Seat() SeatID       { return a.seat }
func (a *Agent) BodyID() BodyID     { return a.body.ID() }
func (a *Agent) Position() Vec2     { return a.body.Position() }
func (a *Agent) Velocity() Vec2     { return a.body.Velocity() }
func (a *Agent) Grounded() bool     { return a.grounded }
func (a *Agent) Flipped() bool      { return a.flipped }
func (a *Agent) Visible() bool      { return a.visible }
func (a *Agent) Alive() bool        { return !a.dead && !a.destroyed }
func (a *Agent) Destroyed() bool    { return a.destroyed }
func (a *Agent) Invulnerable() bool { return !a.hitBox }

// Vulnerable 存活且碰撞盒已开启，才参与玩家间判定
func (a *Agent) Vulnerable() bool { return a.Alive() && a.hitBox }

func (a *Agent) emit(kind IntentKind, on bool, value float64) {
	a.env.bus.Publish(Intent{Seat: a.seat, Type: kind, On: on, Value: value})
}

func (a *Agent) setHitBox(on bool) {
	a.hitBox = on
	a.body.SetHitBox(on)
}

func (a *Agent) setVisible(on bool) {
	a.visible = on
	a.emit(IntentVisible, on, 0)
}

// startInvulnerability 出生无敌：关闭碰撞盒，闪烁 BlinkCycles 次后开启
func (a *Agent) startInvulnerability() {
	t := a.env.tune
	a.setHitBox(false)
	a.emit(IntentSpawn, true, 0)
	steps := make([]Step, 0, 2*t.BlinkCycles+1)
	for i := 0; i < t.BlinkCycles; i++ {
		steps = append(steps,
			Step{Wait: t.BlinkShown, Do: func() { a.setVisible(false) }},
			Step{Wait: t.BlinkHidden, Do: func() { a.setVisible(true) }},
		)
	}
	steps = append(steps, Step{Do: func() { a.setHitBox(true) }})
	a.spawnSeq = NewSequence(steps...)
}

// Update 每帧推进
func (a *Agent) Update(dt time.Duration) {
	if a.destroyed {
		return
	}
	if a.hold {
		a.hold = false
		dt = 0
	}
	if a.dead {
		a.deathSeq.Advance(dt)
		if a.destroyed {
			return
		}
	} else {
		a.spawnSeq.Advance(dt)
		a.readInput()
		a.processInput()
		a.doPhysics()
		a.updateFacing()
	}
	a.updatePresentation()
	a.prevVelocity = a.body.Velocity()
}

func (a *Agent) readInput() {
	c := a.env.input.Poll(a.seat)
	a.horizontal = c.Axis
	if c.Flight != a.flap {
		a.emit(IntentFlap, c.Flight, 0)
	}
	a.flap = c.Flight
	if !a.flap {
		a.flapping = false
	}
}

// processInput 振翅为边沿触发；水平推力随同向速度递减
func (a *Agent) processInput() {
	t := a.env.tune
	if a.flap && !a.flapping {
		a.flapping = true
		a.body.AddImpulse(Vec2{Y: t.MoveForce.Y})
	}
	if xForce := a.horizontal * t.MoveForce.X * a.taper(); xForce != 0 {
		a.body.AddForce(Vec2{X: xForce})
	}
}

func (a *Agent) taper() float64 {
	limit := a.env.tune.MaxSpeedX
	vx := a.body.Velocity().X
	if limit <= 0 || vx == 0 || (vx > 0) != (a.horizontal > 0) {
		return 1
	}
	return math.Max(0, math.Min(1, 1-math.Abs(vx)/limit))
}

func (a *Agent) doPhysics() {
	t := a.env.tune
	pos := a.body.Position()
	if pos.X > t.WrapAt {
		a.body.SetPosition(Vec2{X: -t.WrapTo, Y: pos.Y})
	} else if pos.X < -t.WrapAt {
		a.body.SetPosition(Vec2{X: t.WrapTo, Y: pos.Y})
	}

	vel := a.body.Velocity()
	vel.X = math.Max(-t.MaxSpeedX, math.Min(t.MaxSpeedX, vel.X))

	if a.accelX < 0 && a.grounded {
		if !a.stopping {
			a.emit(IntentStop, true, 0)
		}
		a.stopping = true
		if vel.X > 0 {
			vel.X -= StopImpulse
		} else {
			vel.X += StopImpulse
		}
	} else {
		if a.stopping {
			a.emit(IntentStopStop, false, 0)
		}
		a.stopping = false
	}

	if math.Abs(vel.X) < StopSnap {
		vel.X = 0
	}
	a.body.SetVelocity(vel)
	a.accelX = math.Abs(vel.X) - math.Abs(a.prevVelocity.X)
}

// updateFacing 空中按输入方向转身，落地按速度方向转身
func (a *Agent) updateFacing() {
	vx := a.body.Velocity().X
	h := a.horizontal
	if (!a.grounded && ((h > 0 && a.flipped) || (h < 0 && !a.flipped))) ||
		(a.grounded && ((vx > 0 && a.flipped) || (vx < 0 && !a.flipped))) {
		a.flip()
	}
}

func (a *Agent) flip() {
	a.flipped = !a.flipped
	a.emit(IntentFlip, a.flipped, 0)
}

func (a *Agent) updatePresentation() {
	if a.grounded != a.lastGrounded {
		a.lastGrounded = a.grounded
		a.emit(IntentGrounded, a.grounded, 0)
	}
	speed := math.Abs(a.body.Velocity().X)
	if speed != a.lastSpeed {
		a.lastSpeed = speed
		a.emit(IntentSpeed, false, speed)
	}
	if a.accelX != a.lastAccel {
		a.lastAccel = a.accelX
		a.emit(IntentAcceleration, false, a.accelX)
	}
}

// bounce 以法线反射当前速度并写回刚体
func (a *Agent) bounce(normal, other Vec2, kind IntentKind) {
	v := BounceVelocity(a.body.Velocity(), normal, a.body.Position(), other, a.env.tune.BounceForce)
	a.body.SetVelocity(v)
	a.emit(kind, true, 0)
}

// land 着陆：只置位，不反射
func (a *Agent) land() {
	a.grounded = true
	a.emit(IntentLand, true, 0)
}

// onStaticBegin 与平台/墙碰撞
func (a *Agent) onStaticBegin(ev ContactEvent) Outcome {
	if !a.Alive() {
		return 0
	}
	out := ClassifyStatic(ev.Normal, a.env.tune.LandNormalMinY)
	if out == OutcomeLand {
		a.land()
	} else {
		a.bounce(ev.Normal, ev.Point, IntentBounce)
	}
	return out
}

// onStaticEnd 离开平台；未按飞行键时触发 Fall
func (a *Agent) onStaticEnd() {
	if !a.Alive() {
		return
	}
	if !a.flap {
		a.emit(IntentFall, true, 0)
	}
	a.grounded = false
}

// Die 进入死亡演出：关闭碰撞，短暂停顿后向场外方向弹出，振翅两次后销毁
func (a *Agent) Die() {
	if a.dead || a.destroyed {
		return
	}
	a.env.log.Debugw("agent dying", "seat", a.seat, "body", a.body.ID())
	a.dead = true
	a.grounded = false
	a.spawnSeq.Cancel()
	a.setHitBox(false)
	a.body.SetPlatformBox(false)

	pulse := func() {
		a.flap = true
		a.body.AddImpulse(Vec2{Y: a.env.tune.MoveForce.Y})
		a.emit(IntentFlap, true, 0)
	}
	rest := func() {
		a.flap = false
		a.emit(IntentFlap, false, 0)
	}
	a.deathSeq = NewSequence(
		Step{Wait: deathLaunchDelay, Do: a.launch},
		Step{Do: pulse},
		Step{Wait: deathFlapHold, Do: rest},
		Step{Wait: deathFlapGap, Do: pulse},
		Step{Wait: deathFlapHold, Do: rest},
		Step{Wait: deathTailDelay, Do: a.Destroy},
	)
}

func (a *Agent) launch() {
	dir := -1.0
	if a.body.Position().X > 0 {
		dir = 1
	}
	v := Vec2{X: dir * a.env.tune.MaxSpeedX}
	a.body.SetVelocity(v)
	if (v.X > 0 && a.flipped) || (v.X < 0 && !a.flipped) {
		a.flip()
	}
}

// Destroy 立即销毁并取消所有未完成的时序
func (a *Agent) Destroy() {
	if a.destroyed {
		return
	}
	a.destroyed = true
	a.dead = true
	a.spawnSeq.Cancel()
	a.deathSeq.Cancel()
}

// DeathDuration 死亡演出总时长
func DeathDuration() time.Duration {
	return deathLaunchDelay + 2*deathFlapHold + deathFlapGap + deathTailDelay
}
