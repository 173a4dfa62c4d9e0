package lanplus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/iniwex5/lanplus-go/pkg/crypto"
	"github.com/iniwex5/lanplus-go/pkg/ipmi"
	"github.com/iniwex5/lanplus-go/pkg/logger"
	"github.com/iniwex5/lanplus-go/pkg/metrics"
	"github.com/iniwex5/lanplus-go/pkg/transport"
)

// Session 与单个 BMC 的 RMCP+ 会话. 方法不可并发调用.
type Session struct {
	cfg       *Config
	transport Transport
	metrics   *metrics.Collector
	Logger    *zap.Logger

	state      SessionState
	ConsoleID  uint32 // 本端选择的会话 ID
	BMCID      uint32 // BMC 分配的会话 ID
	sequence   uint32 // 会话序号, 激活后从 1 开始
	messageTag uint8

	requested ipmi.CipherSuite
	suite     ipmi.CipherSuite
	authAlg   crypto.AuthAlgorithm
	integAlg  crypto.IntegrityAlgorithm
	cryptAlg  crypto.Encrypter
	maxPriv   ipmi.PrivilegeLevel

	role        uint8
	consoleRand [ipmi.RandomLen]byte
	bmcRand     [ipmi.RandomLen]byte
	bmcGUID     ipmi.GUID
	rakp2Status ipmi.RakpStatus

	passwordKey []byte // Kuid
	sik         []byte
	k1          []byte
	k2          []byte

	timeout time.Duration
	tracker *RequestTracker
	sol     solState
	onSOL   func([]byte)
}

// NewSession 创建会话, 不进行任何网络操作
func NewSession(cfg *Config, l *zap.Logger) *Session {
	c := *cfg
	c.applyDefaults()
	if l == nil {
		l = logger.ForBMC(net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
	}
	s := &Session{
		cfg:     &c,
		metrics: c.Metrics,
		Logger:  l,
		timeout: c.Timeout,
		tracker: NewRequestTracker(),

		passwordKey: crypto.PadKey([]byte(c.Password), maxPasswordLen),
	}
	s.reset()
	return s
}

// Open 建立会话: 打开套接字, 完成 RMCP+ 握手并设置特权级别
func Open(ctx context.Context, cfg *Config) (*Session, error) {
	s := NewSession(cfg, nil)
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Connect 打开传输层并执行会话建立流程. 失败时关闭传输层并重置会话.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if s.transport == nil {
		t, err := s.dial()
		if err != nil {
			return err
		}
		s.transport = t
	}

	if err := s.establish(ctx); err != nil {
		err = multierr.Append(err, s.transport.Close())
		s.transport = nil
		return err
	}
	return nil
}

func (s *Session) dial() (Transport, error) {
	if s.cfg.TransportFactory != nil {
		return s.cfg.TransportFactory(s.cfg)
	}
	return transport.Dial(transport.Options{
		Host:      s.cfg.Host,
		Port:      s.cfg.Port,
		Interface: s.cfg.Interface,
		Namespace: s.cfg.Namespace,
	})
}

func (s *Session) establish(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.Handshake(handshakeResult(err))
		if err != nil {
			s.reset()
			s.Logger.Warn("会话建立失败", logger.Err(err))
			return
		}
		s.Logger.Info("会话已建立",
			logger.Uint32("bmcSessionID", s.BMCID),
			logger.Stringer("suite", s.suite),
			logger.Stringer("privilege", s.cfg.Privilege),
			logger.Duration("elapsed", time.Since(start)))
	}()

	if s.cfg.CipherSuite == 0 {
		s.Logger.Warn("使用密码套件 0: 会话不认证也不加密")
	}
	if s.cfg.Ping {
		if err := s.presencePing(ctx); err != nil {
			return err
		}
	}
	if err := s.getChannelAuthCapabilities(ctx); err != nil {
		return err
	}
	if err := s.openSession(ctx); err != nil {
		return err
	}
	if err := s.rakp12(ctx); err != nil {
		return err
	}
	if err := s.rakp34(ctx); err != nil {
		return err
	}
	if s.cfg.Privilege > ipmi.PrivilegeUser {
		if _, err := s.SetSessionPrivilegeLevel(ctx, s.cfg.Privilege); err != nil {
			return fmt.Errorf("设置会话特权级别失败: %w", err)
		}
	}
	return nil
}

// Close 激活状态下先发送 Close Session, 然后关闭传输层
func (s *Session) Close() error {
	var err error
	if s.state == StateActive && s.transport != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout*time.Duration(s.cfg.Retries+1))
		err = s.closeSession(ctx)
		cancel()
	}
	if s.transport != nil {
		err = multierr.Append(err, s.transport.Close())
		s.transport = nil
	}
	s.reset()
	return err
}

// reset 回到 PreSession 并清除全部会话数据
func (s *Session) reset() {
	s.state = StatePreSession
	s.BMCID = 0
	s.sequence = 0
	s.suite = ipmi.CipherSuite{}
	s.authAlg = nil
	s.integAlg = nil
	s.cryptAlg = nil
	s.maxPriv = 0
	s.role = 0
	s.consoleRand = [ipmi.RandomLen]byte{}
	s.bmcRand = [ipmi.RandomLen]byte{}
	s.bmcGUID = ipmi.GUID{}
	s.rakp2Status = ipmi.RakpStatusNoErrors
	s.sik, s.k1, s.k2 = nil, nil, nil
	s.tracker.Reset()
	s.sol = solState{}
	s.timeout = s.cfg.Timeout
}

// State 当前会话状态
func (s *Session) State() SessionState {
	return s.state
}

func (s *Session) nextSequence() uint32 {
	s.sequence++
	if s.sequence == 0 {
		s.sequence = 1
	}
	return s.sequence
}

func (s *Session) nextTag() uint8 {
	s.messageTag++
	return s.messageTag
}

// integrityKey MD5-128 使用口令, 其余算法使用 K1
func (s *Session) integrityKey() []byte {
	if s.integAlg.UsesPassword() {
		return s.passwordKey
	}
	return s.k1
}

// wrap 编码载荷, 激活后按协商的算法加密并附加会话尾部, 然后推进状态
func (s *Session) wrap(p ipmi.Payload) ([]byte, error) {
	next, err := nextSendState(s.state, p.Type())
	if err != nil {
		return nil, err
	}
	body, err := p.Encode()
	if err != nil {
		return nil, err
	}

	h := &ipmi.SessionHeader{AuthType: ipmi.AUTHTYPE_RMCPP, PayloadType: p.Type()}
	var mac ipmi.MACFunc
	if s.state == StateActive {
		h.SessionID = s.BMCID
		h.Sequence = s.nextSequence()
		if s.suite.Crypt != ipmi.CRYPT_NONE {
			if body, err = s.cryptAlg.Encrypt(body, s.k2); err != nil {
				return nil, fmt.Errorf("加密载荷失败: %w", err)
			}
			h.Encrypted = true
		}
		if s.suite.Integrity != ipmi.INTEG_NONE {
			key := s.integrityKey()
			mac = func(data []byte) []byte { return s.integAlg.Compute(key, data) }
		}
	}

	pkt, err := ipmi.Seal(h, body, mac)
	if err != nil {
		return nil, err
	}
	s.state = next
	return pkt, nil
}

// inbound 通过校验与状态检查的入站载荷
type inbound struct {
	header  ipmi.SessionHeader
	payload ipmi.Payload
}

// dropError 应丢弃但不终止接收循环的报文
type dropError struct {
	reason string
	err    error
}

func (e *dropError) Error() string { return e.reason + ": " + e.err.Error() }
func (e *dropError) Unwrap() error { return e.err }

func drop(reason string, err error) error {
	return &dropError{reason: reason, err: err}
}

// unwrap 解析入站报文: 校验会话 ID 与 AuthCode, 解密, 检查状态并解码载荷
func (s *Session) unwrap(raw []byte) (*inbound, error) {
	authLen := 0
	if s.state == StateActive {
		authLen = s.integAlg.OutputSize()
	}
	f, err := ipmi.ParseFrame(raw, authLen)
	if err != nil {
		if ipmi.IsNotIPMIClass(err) {
			return nil, drop(metrics.DropClass, err)
		}
		return nil, drop(metrics.DropDecode, err)
	}
	t := f.Session.PayloadType

	body := f.Body
	if s.state == StateActive && (t == ipmi.PayloadIPMI || t == ipmi.PayloadSOL) {
		if f.Session.SessionID != s.ConsoleID {
			return nil, fmt.Errorf("%w: 收到 0x%08x, 期望 0x%08x", ErrSessionAborted, f.Session.SessionID, s.ConsoleID)
		}
		if s.suite.Integrity != ipmi.INTEG_NONE {
			if !f.Session.Authenticated {
				return nil, drop(metrics.DropIntegrity, errors.New("报文缺少 AuthCode"))
			}
			if !s.integAlg.Verify(s.integrityKey(), f.Signed, f.AuthCode) {
				return nil, drop(metrics.DropIntegrity, ipmi.ErrIntegrity)
			}
		}
		if f.Session.Encrypted {
			if s.suite.Crypt == ipmi.CRYPT_NONE {
				return nil, drop(metrics.DropDecode, errors.New("会话未协商加密但报文带加密标志"))
			}
			if body, err = s.cryptAlg.Decrypt(body, s.k2); err != nil {
				return nil, drop(metrics.DropDecode, err)
			}
		}
	}

	if !acceptsInbound(s.state, t) {
		return nil, drop(metrics.DropState, fmt.Errorf("%w: 状态 %s 下收到 %s", ipmi.ErrInvalidSessionState, s.state, t))
	}
	p, err := ipmi.DecodePayload(t, body, ipmi.FromBMC)
	if err != nil {
		return nil, drop(metrics.DropDecode, err)
	}
	return &inbound{header: f.Session, payload: p}, nil
}
