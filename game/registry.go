package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"go.uber.org/zap"
)

var (
	// 配置类错误：记录日志后忽略
	ErrUnknownSeat  = errors.New("unknown seat")
	ErrSpawnIndex   = errors.New("spawn index out of range")
	ErrInvalidState = errors.New("invalid round state transition")
	ErrInvalidRules = errors.New("invalid round rules")

	// 不变量被破坏：调度或判定存在 bug
	ErrInvariant = errors.New("registry invariant violated")
)

// Options Registry 的协作方
type Options struct {
	World  World
	Input  InputSource
	Bus    *Bus
	Tuning Tuning
	Rand   *rand.Rand
	Logger *zap.SugaredLogger
}

// Rules 可由 UI 调整的回合规则，在下一回合开始时生效
type Rules struct {
	PlayerCount int `json:"playerCount"`
	StartLives  int `json:"startLives"`
}

type pairKey struct{ lo, hi BodyID }

func makePairKey(a, b BodyID) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Registry 座位 -> 战绩记录的唯一写入方，负责出生/复活调度、回合结束判定与回合状态机
// 只能在 Tick 线程内使用
type Registry struct {
	world World
	input InputSource
	bus   *Bus
	tune  Tuning
	rng   *rand.Rand
	log   *zap.SugaredLogger

	state      RoundState
	rules      Rules // 下一回合的规则
	round      Rules // 当前回合的规则
	records    map[SeatID]*record
	agents     map[BodyID]*Agent // 所有持有刚体的 Agent（含死亡演出中的）
	respawns   map[SeatID]*Sequence
	eliminated int

	pairs    map[pairKey]struct{} // 本帧已处理过的碰撞对
	tick     uint64
	stepping bool // Step 进行中；此时创建的计时从下一帧开始推进
}

type noInput struct{}

func (noInput) Poll(SeatID) Controls { return Controls{} }

// NewRegistry 创建注册表，初始状态为 Idle
func NewRegistry(opts Options) (*Registry, error) {
	if opts.World == nil {
		return nil, errors.New("registry: physics world is required")
	}
	r := &Registry{
		world:    opts.World,
		input:    opts.Input,
		bus:      opts.Bus,
		tune:     opts.Tuning,
		rng:      opts.Rand,
		log:      opts.Logger,
		state:    StateIdle,
		records:  make(map[SeatID]*record),
		agents:   make(map[BodyID]*Agent),
		respawns: make(map[SeatID]*Sequence),
		pairs:    make(map[pairKey]struct{}),
	}
	if r.input == nil {
		r.input = noInput{}
	}
	if r.bus == nil {
		r.bus = NewBus()
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	if r.log == nil {
		r.log = zap.NewNop().Sugar()
	}
	rules := Rules{PlayerCount: opts.Tuning.PlayerCount, StartLives: opts.Tuning.StartLives}
	if err := r.validateRules(rules); err != nil {
		return nil, err
	}
	r.rules = rules
	return r, nil
}

func (r *Registry) Bus() *Bus            { return r.bus }
func (r *Registry) State() RoundState    { return r.state }
func (r *Registry) Rules() Rules         { return r.rules }
func (r *Registry) Tick() uint64         { return r.tick }
func (r *Registry) Eliminated() int      { return r.eliminated }
func (r *Registry) RoundRules() Rules    { return r.round }
func (r *Registry) Tuning() *Tuning      { return &r.tune }
func (r *Registry) PendingRespawns() int { return len(r.respawns) }

func (r *Registry) validateRules(rules Rules) error {
	if rules.PlayerCount < 2 || rules.PlayerCount > len(r.tune.SpawnPoints) {
		return fmt.Errorf("%w: player count %d (spawn points %d)", ErrInvalidRules, rules.PlayerCount, len(r.tune.SpawnPoints))
	}
	if rules.StartLives < 1 {
		return fmt.Errorf("%w: start lives %d", ErrInvalidRules, rules.StartLives)
	}
	return nil
}

// SetRules 更新规则，下一次进入 Playing 时生效
func (r *Registry) SetRules(rules Rules) error {
	if err := r.validateRules(rules); err != nil {
		r.log.Warnw("rules rejected", "playerCount", rules.PlayerCount, "startLives", rules.StartLives, "err", err)
		return err
	}
	r.rules = rules
	return nil
}

func (r *Registry) invariant(msg string, kv ...any) error {
	r.log.DPanicw(msg, kv...)
	return fmt.Errorf("%w: %s", ErrInvariant, msg)
}

// SetState 切换回合状态
// Selecting->Playing 建立回合并出生所有座位；Playing->Selecting 销毁全部 Agent 并清空注册表
func (r *Registry) SetState(s RoundState) error {
	if s == r.state {
		return nil
	}
	if s != StateSelecting && s != StatePlaying {
		r.log.Warnw("state transition rejected", "from", r.state, "to", s)
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, r.state, s)
	}
	from := r.state
	var ended *RoundEnded
	if from == StatePlaying {
		ended = r.endRound()
	}
	r.state = s
	r.log.Infow("round state changed", "from", from, "to", s)
	r.bus.Publish(StateChanged{From: from, To: s})
	if ended != nil {
		r.bus.Publish(*ended)
	}
	if s == StatePlaying {
		r.startRound()
	}
	return nil
}

func (r *Registry) startRound() {
	r.teardown()
	r.round = r.rules
	r.eliminated = 0
	for i := 0; i < r.round.PlayerCount; i++ {
		seat := SeatID(i)
		r.records[seat] = &record{seat: seat, lives: r.round.StartLives}
	}
	r.bus.Publish(RoundStarted{PlayerCount: r.round.PlayerCount, StartLives: r.round.StartLives})
	// 首次出生按座位固定出生点
	for i := 0; i < r.round.PlayerCount; i++ {
		if err := r.Respawn(SeatID(i), 0, i); err != nil {
			r.log.Errorw("initial spawn failed", "seat", i, "err", err)
		}
	}
}

// endRound 记录最终战绩后清场
func (r *Registry) endRound() *RoundEnded {
	ended := &RoundEnded{Standings: r.Records()}
	survivors := 0
	for _, rec := range ended.Standings {
		if rec.Lives > 0 {
			survivors++
			ended.Winner = rec.Seat
		}
	}
	ended.HasWinner = survivors == 1
	r.teardown()
	r.log.Infow("round ended", "winner", ended.Winner, "hasWinner", ended.HasWinner)
	return ended
}

// teardown 取消未完成的复活、销毁全部 Agent、清空记录
func (r *Registry) teardown() {
	for seat, seq := range r.respawns {
		seq.Cancel()
		delete(r.respawns, seat)
	}
	for id, a := range r.agents {
		a.Destroy()
		r.world.Destroy(a.body)
		delete(r.agents, id)
	}
	for seat := range r.records {
		delete(r.records, seat)
	}
	clear(r.pairs)
}

// RegisterAgent 将新 Agent 挂到座位记录上；座位无记录时按满命创建
func (r *Registry) RegisterAgent(a *Agent) error {
	rec, ok := r.records[a.seat]
	if !ok {
		rec = &record{seat: a.seat, lives: r.round.StartLives}
		r.records[a.seat] = rec
	} else if rec.agent != nil && rec.agent != a && rec.agent.Alive() {
		return r.invariant("seat already has a live agent", "seat", a.seat)
	}
	rec.agent = a
	r.agents[a.BodyID()] = a
	return nil
}

// KillPlayer 结算击杀：击杀者 +1，受害者 -1 命并解除引用；有余命则延迟复活到随机出生点
// 淘汰座位数达到 PlayerCount-1 时结束回合
func (r *Registry) KillPlayer(killer SeatID, victim *Agent) error {
	if r.state != StatePlaying {
		r.log.Debugw("kill ignored outside round", "killer", killer)
		return nil
	}
	if victim == nil || !victim.Alive() {
		return nil
	}
	kr, ok := r.records[killer]
	if !ok {
		return r.invariant("killer has no record", "killer", killer)
	}
	vr, ok := r.records[victim.seat]
	if !ok {
		return r.invariant("victim has no record", "victim", victim.seat)
	}
	if killer == victim.seat {
		return r.invariant("seat killed itself", "seat", killer)
	}
	if vr.lives <= 0 {
		return r.invariant("kill applied to eliminated seat", "victim", victim.seat)
	}
	if vr.agent != victim {
		return r.invariant("victim is not the seat's live agent", "victim", victim.seat)
	}

	kr.kills++
	vr.lives--
	vr.agent = nil
	if vr.lives > 0 {
		if err := r.Respawn(vr.seat, r.tune.RespawnDelay, AnySpawn); err != nil {
			r.log.Errorw("respawn scheduling failed", "seat", vr.seat, "err", err)
		}
	} else {
		r.eliminated++
	}
	r.log.Infow("player killed", "killer", killer, "victim", vr.seat, "livesLeft", vr.lives, "kills", kr.kills)
	r.bus.Publish(PlayerKilled{Killer: kr.snapshot(), Victim: vr.snapshot()})
	victim.Die()
	victim.hold = r.stepping

	if vr.lives == 0 && r.eliminated >= r.round.PlayerCount-1 {
		return r.SetState(StateSelecting)
	}
	return nil
}

// Respawn 延迟 delay 后在出生点生成新的 Agent；spawnIndex 为 AnySpawn 时随机选择
func (r *Registry) Respawn(seat SeatID, delay time.Duration, spawnIndex int) error {
	rec, ok := r.records[seat]
	if !ok {
		r.log.Warnw("respawn for unknown seat", "seat", seat)
		return fmt.Errorf("respawn seat %d: %w", seat, ErrUnknownSeat)
	}
	n := len(r.tune.SpawnPoints)
	if n == 0 || spawnIndex < AnySpawn || spawnIndex >= n {
		r.log.Warnw("respawn with bad spawn index", "seat", seat, "index", spawnIndex, "spawnPoints", n)
		return fmt.Errorf("respawn seat %d index %d: %w", seat, spawnIndex, ErrSpawnIndex)
	}
	if rec.agent != nil && rec.agent.Alive() {
		return r.invariant("respawn for seat with live agent", "seat", seat)
	}
	if _, pending := r.respawns[seat]; pending {
		return r.invariant("double respawn scheduled", "seat", seat)
	}
	if rec.lives <= 0 {
		return r.invariant("respawn for eliminated seat", "seat", seat)
	}

	if delay <= 0 {
		r.spawn(seat, spawnIndex)
		return nil
	}
	r.respawns[seat] = NewSequence(Step{Wait: delay, Do: func() {
		delete(r.respawns, seat)
		r.spawn(seat, spawnIndex)
	}})
	return nil
}

func (r *Registry) spawnPoint(index int) Vec2 {
	if index == AnySpawn {
		index = r.rng.IntN(len(r.tune.SpawnPoints))
	}
	return r.tune.SpawnPoints[index]
}

func (r *Registry) spawn(seat SeatID, spawnIndex int) {
	rec, ok := r.records[seat]
	if !ok || r.state != StatePlaying {
		return
	}
	pos := r.spawnPoint(spawnIndex)
	body := r.world.Spawn(pos)
	a := newAgent(seat, body, agentEnv{input: r.input, bus: r.bus, tune: &r.tune, log: r.log})
	a.hold = r.stepping
	if err := r.RegisterAgent(a); err != nil {
		a.Destroy()
		r.world.Destroy(body)
		return
	}
	r.log.Debugw("player spawned", "seat", seat, "x", pos.X, "y", pos.Y)
	r.bus.Publish(PlayerSpawned{Record: rec.snapshot(), Position: pos})
}

// Step 一帧：推进复活计时 -> 处理碰撞事件 -> 更新 Agent -> 回收已销毁的 Agent
// 本帧内新建的复活、出生无敌与死亡演出计时不消耗本帧的 dt
func (r *Registry) Step(dt time.Duration, contacts []ContactEvent) {
	r.tick++
	r.stepping = true
	defer func() { r.stepping = false }()
	clear(r.pairs)
	r.advanceRespawns(dt)
	for _, ev := range contacts {
		if err := r.HandleContact(ev); err != nil {
			r.log.Errorw("contact aborted", "self", ev.Self, "other", ev.Other, "err", err)
		}
	}
	for _, a := range r.sortedAgents() {
		a.Update(dt)
	}
	r.sweep()
}

func (r *Registry) advanceRespawns(dt time.Duration) {
	seats := make([]SeatID, 0, len(r.respawns))
	for seat := range r.respawns {
		seats = append(seats, seat)
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i] < seats[j] })
	for _, seat := range seats {
		if seq, ok := r.respawns[seat]; ok {
			seq.Advance(dt)
		}
	}
}

func (r *Registry) sortedAgents() []*Agent {
	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].seat != out[j].seat {
			return out[i].seat < out[j].seat
		}
		return out[i].BodyID() < out[j].BodyID()
	})
	return out
}

func (r *Registry) sweep() {
	for id, a := range r.agents {
		if a.Destroyed() {
			r.world.Destroy(a.body)
			delete(r.agents, id)
		}
	}
}

// HandleContact 分发一条碰撞事件；同一对物体每帧只处理一次
func (r *Registry) HandleContact(ev ContactEvent) error {
	self, ok := r.agents[ev.Self]
	if !ok || !self.Alive() {
		return nil
	}
	if err := r.checkRecord(self); err != nil {
		return err
	}
	if ev.Phase == ContactEnd {
		if !ev.OtherIsPlayer {
			self.onStaticEnd()
		}
		return nil
	}

	key := makePairKey(ev.Self, ev.Other)
	if _, seen := r.pairs[key]; seen {
		return nil
	}
	if !ev.OtherIsPlayer {
		r.pairs[key] = struct{}{}
		self.onStaticBegin(ev)
		return nil
	}

	other, ok := r.agents[ev.Other]
	if !ok || !other.Alive() {
		return nil
	}
	if err := r.checkRecord(other); err != nil {
		return err
	}
	r.pairs[key] = struct{}{}
	if !self.Vulnerable() || !other.Vulnerable() {
		return nil
	}
	return r.resolvePlayers(self, other, ev.Normal)
}

func (r *Registry) checkRecord(a *Agent) error {
	if _, ok := r.records[a.seat]; !ok {
		return r.invariant("contact from agent without record", "seat", a.seat, "body", a.BodyID())
	}
	return nil
}

// resolvePlayers 两名玩家相撞，从双方视角对称地结算一次
// normal 指向 a，b 使用反向法线
func (r *Registry) resolvePlayers(a, b *Agent, normal Vec2) error {
	pa, pb := a.Position(), b.Position()
	switch ClassifyPlayers(pa, pb, r.tune.SameHeightEpsilon) {
	case OutcomeBounce:
		a.bounce(normal, pb, IntentCollide)
		b.bounce(normal.Scale(-1), pa, IntentCollide)
		return nil
	case OutcomeKill:
		a.bounce(normal, pb, IntentKill)
		return r.KillPlayer(a.seat, b)
	default:
		b.bounce(normal.Scale(-1), pa, IntentKill)
		return r.KillPlayer(b.seat, a)
	}
}

// Records 按座位排序的战绩快照
func (r *Registry) Records() []PlayerRecord {
	out := make([]PlayerRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seat < out[j].Seat })
	return out
}

func (r *Registry) Record(seat SeatID) (PlayerRecord, bool) {
	rec, ok := r.records[seat]
	if !ok {
		return PlayerRecord{}, false
	}
	return rec.snapshot(), true
}

// Agent 座位当前存活的 Agent
func (r *Registry) Agent(seat SeatID) (*Agent, bool) {
	rec, ok := r.records[seat]
	if !ok || rec.agent == nil {
		return nil, false
	}
	return rec.agent, true
}

// Agents 所有持有刚体的 Agent 快照（含死亡演出中的）
func (r *Registry) Agents() []AgentState {
	agents := r.sortedAgents()
	out := make([]AgentState, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.State())
	}
	return out
}
