package game

import "time"

// Step 时序脚本中的一段：等待 Wait 后执行 Do
type Step struct {
	Wait time.Duration
	Do   func()
}

// Sequence 由 Tick 驱动的可恢复定时脚本（不占用协程，不阻塞 Tick）
// 状态只有两种：等待当前段（remaining）或 Done
type Sequence struct {
	steps     []Step
	idx       int
	remaining time.Duration
	done      bool
}

// NewSequence 创建脚本；空脚本直接处于 Done
func NewSequence(steps ...Step) *Sequence {
	s := &Sequence{steps: steps}
	if len(steps) == 0 {
		s.done = true
		return s
	}
	s.remaining = steps[0].Wait
	return s
}

// Advance 推进 dt；剩余时间会顺延到后续段，同一 Tick 内可触发多段
func (s *Sequence) Advance(dt time.Duration) {
	if s == nil || s.done {
		return
	}
	budget := dt
	for !s.done {
		if s.remaining > budget {
			s.remaining -= budget
			return
		}
		budget -= s.remaining
		step := s.steps[s.idx]
		s.idx++
		if s.idx >= len(s.steps) {
			s.done = true
		} else {
			s.remaining = s.steps[s.idx].Wait
		}
		if step.Do != nil {
			step.Do()
		}
	}
}

// Cancel 放弃剩余步骤
func (s *Sequence) Cancel() {
	if s == nil {
		return
	}
	s.done = true
}

func (s *Sequence) Done() bool { return s == nil || s.done }

// Remaining 当前段剩余等待时间
func (s *Sequence) Remaining() time.Duration {
	if s.Done() {
		return 0
	}
	return s.remaining
}
