package game

// Bus 发布/订阅总线：Publish 只写入 outbox，由 Tick 线程每帧 Drain 一次统一分发
// 非并发安全，只能在 Tick 线程内使用
type Bus struct {
	subs   []*Subscription
	outbox []Event
}

// Subscription 订阅句柄；订阅者销毁时必须 Unsubscribe
type Subscription struct {
	bus    *Bus
	fn     func(Event)
	mask   uint64
	active bool
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe 订阅指定类型的事件，不传 kinds 表示全部
func (b *Bus) Subscribe(fn func(Event), kinds ...EventKind) *Subscription {
	var mask uint64
	for _, k := range kinds {
		mask |= 1 << uint(k)
	}
	s := &Subscription{bus: b, fn: fn, mask: mask, active: true}
	b.subs = append(b.subs, s)
	return s
}

// Unsubscribe 幂等
func (s *Subscription) Unsubscribe() {
	if s == nil || !s.active {
		return
	}
	s.active = false
	subs := s.bus.subs
	for i, other := range subs {
		if other == s {
			s.bus.subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}

func (s *Subscription) wants(k EventKind) bool {
	return s.mask == 0 || s.mask&(1<<uint(k)) != 0
}

// Publish 入队，不立即回调
func (b *Bus) Publish(e Event) {
	b.outbox = append(b.outbox, e)
}

// Pending 未分发的事件数
func (b *Bus) Pending() int { return len(b.outbox) }

// Drain 按发布顺序分发 outbox；回调中新发布的事件在本次 Drain 内一并分发
func (b *Bus) Drain() int {
	n := 0
	for len(b.outbox) > 0 {
		batch := b.outbox
		b.outbox = nil
		for _, e := range batch {
			n++
			// 复制一份，回调里退订不影响本轮遍历
			subs := append([]*Subscription(nil), b.subs...)
			for _, s := range subs {
				if s.active && s.wants(e.Kind()) {
					s.fn(e)
				}
			}
		}
	}
	return n
}
