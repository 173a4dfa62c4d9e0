package lanplus

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"

	"github.com/iniwex5/lanplus-go/pkg/logger"
)

// SessionManager 按名称管理多个 BMC 会话. 单个 Session 的方法仍不可并发调用.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
	}
}

// Open 建立会话并以 id 登记
func (m *SessionManager) Open(ctx context.Context, id string, cfg *Config) (*Session, error) {
	if id == "" {
		return nil, errors.New("session id 不能为空")
	}

	m.mu.Lock()
	if _, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return nil, errors.New("session id 已存在")
	}
	// 握手期间占位, 防止重复打开
	m.sessions[id] = nil
	m.mu.Unlock()

	s, err := Open(ctx, cfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		delete(m.sessions, id)
		return nil, err
	}
	m.sessions[id] = s
	return s, nil
}

func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok && s != nil
}

// Close 关闭并移除会话
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok && s != nil {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok || s == nil {
		return errors.New("session id 不存在")
	}
	return s.Close()
}

// CloseAll 关闭全部会话, 返回合并的错误
func (m *SessionManager) CloseAll() error {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var err error
	for id, s := range all {
		if s == nil {
			continue
		}
		if cerr := s.Close(); cerr != nil {
			logger.Warn("关闭会话失败", logger.String("id", id), logger.Err(cerr))
			err = multierr.Append(err, cerr)
		}
	}
	return err
}
