package server

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flaparena/config"
)

var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
)

type managed struct {
	s      *Session
	cancel context.CancelFunc
}

// Manager 管理多个会话的生命周期，每个会话一个 Tick 协程
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]*managed
	defaultID string

	cfg *config.Config
	log *zap.SugaredLogger
	ctx context.Context
	wg  sync.WaitGroup
}

// NewManager ctx 取消时所有会话随之停止
func NewManager(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = Log
	}
	return &Manager{
		sessions: make(map[string]*managed),
		cfg:      cfg,
		log:      log,
		ctx:      ctx,
	}
}

// Create 创建会话并开始 Tick；id 为空时生成 uuid。第一个会话成为默认会话
func (m *Manager) Create(id string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		return nil, ErrSessionExists
	}
	s, err := NewSession(id, m.cfg, m.log)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.sessions[id] = &managed{s: s, cancel: cancel}
	if m.defaultID == "" {
		m.defaultID = id
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		s.Run(ctx)
	}()
	return s, nil
}

// Get 按 id 查找会话；id 为空时返回默认会话
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id == "" {
		id = m.defaultID
	}
	ms, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return ms.s, true
}

func (m *Manager) Default() (*Session, bool) { return m.Get("") }

// List 按 id 排序
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close 停止并移除会话，等待其 Tick 协程退出
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	ms, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		if m.defaultID == id {
			m.defaultID = ""
		}
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	ms.cancel()
	<-ms.s.Done()
	m.log.Infow("session closed", "session", id)
	return nil
}

// Shutdown 停止全部会话
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for id, ms := range m.sessions {
		ms.cancel()
		delete(m.sessions, id)
	}
	m.defaultID = ""
	m.mu.Unlock()
	m.wg.Wait()
}
