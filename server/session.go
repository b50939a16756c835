package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"flaparena/config"
	"flaparena/game"
	"flaparena/physics"
)

var ErrSessionClosed = errors.New("session closed")

// command 在 Tick 线程中执行的注册表操作
type command struct {
	run   func(*game.Registry) error
	reply chan error
}

type joinRequest struct {
	conn  *ClientConn
	kinds []game.EventKind // 为空表示订阅全部事件
}

type inbound struct {
	from *ClientConn
	msg  InputMessage
}

// viewer 一条连接及其总线订阅
type viewer struct {
	conn *ClientConn
	sub  *game.Subscription
}

// Session 一局对战：物理世界、注册表、总线、输入与连接都只在 Tick 线程内读写
// 其他线程通过通道提交请求，通过 View 读取最近一帧的快照
type Session struct {
	ID string

	cfg      *config.Config
	log      *zap.SugaredLogger
	interval time.Duration

	world   *physics.World
	reg     *game.Registry
	bus     *game.Bus
	input   *InputBoard
	metrics *SessionMetrics

	viewers   map[*ClientConn]*viewer
	joinChan  chan joinRequest
	leaveChan chan *ClientConn
	inputChan chan inbound
	cmdChan   chan command

	// 当前正在分发的事件的编码结果，各连接的订阅直接复用
	seq          uint64
	encoded      []byte
	missingClips map[string]bool

	view    atomic.Pointer[StateView]
	started atomic.Bool
	done    chan struct{}
}

// NewSession 建立物理世界与注册表，并进入 Selecting 状态等待开局
func NewSession(id string, cfg *config.Config, log *zap.SugaredLogger) (*Session, error) {
	if log == nil {
		log = Log
	}
	log = log.With("session", id)
	world, err := physics.NewWorld(cfg.Physics, log.Named("physics"))
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	tune := cfg.Tuning()
	s := &Session{
		ID:           id,
		cfg:          cfg,
		log:          log,
		interval:     cfg.TickInterval(),
		world:        world,
		bus:          game.NewBus(),
		input:        NewInputBoard(len(tune.SpawnPoints)),
		metrics:      &SessionMetrics{},
		viewers:      make(map[*ClientConn]*viewer),
		joinChan:     make(chan joinRequest),
		leaveChan:    make(chan *ClientConn, 64),
		inputChan:    make(chan inbound, 256), // 足够缓冲，避免网络读阻塞影响 Tick
		cmdChan:      make(chan command),
		missingClips: make(map[string]bool),
		done:         make(chan struct{}),
	}
	// 编码订阅必须最先注册：Drain 对每个事件按订阅顺序回调
	s.bus.Subscribe(s.encode)
	s.bus.Subscribe(s.metrics.Observe)
	s.bus.Subscribe(func(game.Event) { s.input.Reset() }, game.KindRoundStarted)

	seed := uint64(time.Now().UnixNano())
	s.reg, err = game.NewRegistry(game.Options{
		World:  world,
		Input:  s.input,
		Bus:    s.bus,
		Tuning: tune,
		Rand:   rand.New(rand.NewPCG(seed, seed>>1|1)),
		Logger: log.Named("game"),
	})
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	if err := s.reg.SetState(game.StateSelecting); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	s.flush()
	log.Infow("session created", "tickInterval", s.interval, "playerCount", tune.PlayerCount, "startLives", tune.StartLives)
	return s, nil
}

func (s *Session) Metrics() *SessionMetrics { return s.metrics }
func (s *Session) Done() <-chan struct{}    { return s.done }

// View 最近一帧的快照，任意线程可读
func (s *Session) View() *StateView { return s.view.Load() }

// Join 注册一条连接；会话已结束时返回 ErrSessionClosed
func (s *Session) Join(c *ClientConn, kinds ...game.EventKind) error {
	select {
	case s.joinChan <- joinRequest{conn: c, kinds: kinds}:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// RequestLeave 请求在 Tick 线程中移除连接，避免并发改动会话状态
func (s *Session) RequestLeave(c *ClientConn) {
	select {
	case s.leaveChan <- c:
	case <-s.done:
	}
}

// OnInput 入站输入（不立即生效），等下一次 Tick 处理
func (s *Session) OnInput(from *ClientConn, msg InputMessage) {
	// 不阻塞：拥塞时丢弃，保证 Tick 准时
	select {
	case s.inputChan <- inbound{from: from, msg: msg}:
	default:
		s.metrics.IncChanFullDiscarded()
	}
}

// Do 在 Tick 线程中执行 fn，并等待结果
func (s *Session) Do(ctx context.Context, fn func(*game.Registry) error) error {
	cmd := command{run: fn, reply: make(chan error, 1)}
	select {
	case s.cmdChan <- cmd:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetRound 切换回合状态（UI 的开局/结束）
func (s *Session) SetRound(ctx context.Context, state game.RoundState) error {
	return s.Do(ctx, func(reg *game.Registry) error { return reg.SetState(state) })
}

func (s *Session) addViewer(req joinRequest) {
	c := req.conn
	v := &viewer{conn: c}
	v.sub = s.bus.Subscribe(func(game.Event) {
		if s.encoded != nil {
			c.Enqueue(s.encoded)
		}
	}, req.kinds...)
	s.viewers[c] = v
	s.metrics.AddViewers(1)
	// 新连接立即收到一次当前快照
	if b, err := json.Marshal(s.view.Load()); err == nil {
		c.Enqueue(b)
	}
	s.log.Infow("viewer joined", "viewers", len(s.viewers), "kinds", req.kinds)
}

func (s *Session) removeViewer(c *ClientConn) {
	v, ok := s.viewers[c]
	if !ok {
		return
	}
	v.sub.Unsubscribe()
	s.input.Release(c)
	delete(s.viewers, c)
	c.Close()
	s.metrics.AddViewers(-1)
	s.log.Infow("viewer left", "viewers", len(s.viewers))
}

// processInputs 处理当前帧的所有入站消息（非阻塞 drain）
func (s *Session) processInputs() {
	for {
		select {
		case in := <-s.inputChan:
			s.apply(in)
		default:
			return
		}
	}
}

func (s *Session) apply(in inbound) {
	if in.from != nil {
		if _, ok := s.viewers[in.from]; !ok {
			return // 连接已离开
		}
	}
	switch in.msg.Type {
	case "input":
		if !s.input.Apply(in.from, in.msg) {
			s.metrics.IncRejected()
			s.log.Debugw("input rejected", "seat", in.msg.Seat, "axis", in.msg.Axis)
			return
		}
		s.metrics.IncAccepted()
	case "round":
		state, err := game.ParseRoundState(in.msg.State)
		if err != nil {
			s.metrics.IncRejected()
			s.log.Warnw("round request rejected", "state", in.msg.State, "err", err)
			return
		}
		if err := s.reg.SetState(state); err != nil {
			s.metrics.IncRejected()
			return
		}
		s.metrics.IncAccepted()
	default:
		s.metrics.IncRejected()
	}
}

// encode 总线上的第一个订阅者：为每个事件生成一次出站消息
func (s *Session) encode(e game.Event) {
	s.seq++
	s.encoded = nil
	data, err := json.Marshal(e)
	if err != nil {
		s.log.Errorw("encode event failed", "kind", e.Kind(), "err", err)
		return
	}
	msg := EventMessage{
		Type: "event",
		Seq:  s.seq,
		Tick: s.reg.Tick(),
		Kind: e.Kind().String(),
		Clip: s.clipFor(e),
		Data: data,
	}
	s.encoded, err = json.Marshal(msg)
	if err != nil {
		s.log.Errorw("encode event message failed", "kind", e.Kind(), "err", err)
		s.encoded = nil
	}
}

// clipFor 意图对应的音效资源；缺失的片段只告警一次
func (s *Session) clipFor(e game.Event) string {
	in, ok := e.(game.Intent)
	if !ok || !in.On {
		return ""
	}
	name := in.Type.Clip()
	if name == "" {
		return ""
	}
	path, err := s.cfg.Clip(name)
	if err != nil {
		if !s.missingClips[name] {
			s.missingClips[name] = true
			s.log.Warnw("audio clip not configured", "clip", name, "err", err)
		}
		return ""
	}
	return path
}

// flush 分发本帧事件并发布快照
func (s *Session) flush() {
	s.metrics.AddEvents(s.bus.Drain())
	s.view.Store(buildView(s.ID, s.reg))
}

// broadcast 将当前快照广播给所有连接（文本 JSON）
func (s *Session) broadcast() {
	if len(s.viewers) == 0 {
		return
	}
	b, err := json.Marshal(s.view.Load())
	if err != nil {
		s.log.Errorw("encode state failed", "err", err)
		return
	}
	for c := range s.viewers {
		c.Enqueue(b)
	}
}

// shutdown 结束当前回合并关闭所有连接
func (s *Session) shutdown() {
	if s.reg.State() == game.StatePlaying {
		_ = s.reg.SetState(game.StateSelecting)
		s.flush()
	}
	for c := range s.viewers {
		s.removeViewer(c)
	}
	s.log.Infow("session stopped", "ticks", s.reg.Tick())
}
