package server

import (
	"sync/atomic"

	"flaparena/game"
)

// SessionMetrics 记录会话运行期的关键指标（用于监控与调试）
// 计数由 Tick 线程写入，HTTP 线程只读
type SessionMetrics struct {
	TickCount         int64 // 统计的 Tick 次数
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
	MaxTickNs         int64 // 最慢一帧
	InputsAccepted    int64 // 被接受的输入数
	InputsRejected    int64 // 座位越界或格式错误的输入数
	ChanFullDiscarded int64 // 因通道满被丢弃的输入数
	Viewers           int64 // 当前连接数
	Spawns            int64
	Kills             int64
	RoundsStarted     int64
	RoundsEnded       int64
	Events            int64 // 总线分发的事件总数
}

func (m *SessionMetrics) IncAccepted()          { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *SessionMetrics) IncRejected()          { atomic.AddInt64(&m.InputsRejected, 1) }
func (m *SessionMetrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }
func (m *SessionMetrics) AddViewers(n int64)    { atomic.AddInt64(&m.Viewers, n) }
func (m *SessionMetrics) AddEvents(n int)       { atomic.AddInt64(&m.Events, int64(n)) }

func (m *SessionMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
	if ns > atomic.LoadInt64(&m.MaxTickNs) {
		atomic.StoreInt64(&m.MaxTickNs, ns)
	}
}

// Observe 作为总线订阅者统计对局事件
func (m *SessionMetrics) Observe(e game.Event) {
	switch e.Kind() {
	case game.KindPlayerSpawned:
		atomic.AddInt64(&m.Spawns, 1)
	case game.KindPlayerKilled:
		atomic.AddInt64(&m.Kills, 1)
	case game.KindRoundStarted:
		atomic.AddInt64(&m.RoundsStarted, 1)
	case game.KindRoundEnded:
		atomic.AddInt64(&m.RoundsEnded, 1)
	}
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *SessionMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":          tick,
		"avg_tick_ms":         avgMs,
		"max_tick_ms":         float64(atomic.LoadInt64(&m.MaxTickNs)) / 1e6,
		"inputs_accepted":     atomic.LoadInt64(&m.InputsAccepted),
		"inputs_rejected":     atomic.LoadInt64(&m.InputsRejected),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"viewers":             atomic.LoadInt64(&m.Viewers),
		"spawns":              atomic.LoadInt64(&m.Spawns),
		"kills":               atomic.LoadInt64(&m.Kills),
		"rounds_started":      atomic.LoadInt64(&m.RoundsStarted),
		"rounds_ended":        atomic.LoadInt64(&m.RoundsEnded),
		"events":              atomic.LoadInt64(&m.Events),
	}
}
