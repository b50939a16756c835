package server

import (
	"context"
	"time"
)

// Run 启动会话的 Tick 循环（单线程推进世界），ctx 取消后关闭所有连接并返回
// 每个会话只能 Run 一次
func (s *Session) Run(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	defer close(s.done)
	defer s.shutdown()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.joinChan:
			s.addViewer(req)
		case c := <-s.leaveChan:
			s.removeViewer(c)
		case cmd := <-s.cmdChan:
			err := cmd.run(s.reg)
			s.flush()
			cmd.reply <- err
		case <-ticker.C:
			// 核心循环：处理输入 → 物理 → 模拟核心 → 分发事件 → 广播结果
			start := time.Now()
			s.Step(s.interval)
			s.metrics.AddTick(time.Since(start).Nanoseconds())
		}
	}
}

// Step 推进一帧；dt 固定为 Tick 间隔，保证模拟结果与墙钟抖动无关
func (s *Session) Step(dt time.Duration) {
	s.processInputs()
	contacts := s.world.Step(dt)
	s.reg.Step(dt, contacts)
	s.flush()
	s.broadcast()
}
