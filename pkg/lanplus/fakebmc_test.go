package lanplus

import (
	"bytes"
	"crypto/hmac"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iniwex5/lanplus-go/pkg/crypto"
	"github.com/iniwex5/lanplus-go/pkg/ipmi"
)

const (
	fakeBMCSessionID = 0x0A0B0C0D
	fakeSolInbound   = 64
)

// fakeBMC 内存中的 BMC 端实现, 同步处理控制台发来的每个报文
type fakeBMC struct {
	t        *testing.T
	user     string
	password string
	kg       []byte
	guid     ipmi.GUID
	rc       [ipmi.RandomLen]byte

	// 行为开关
	noV2          bool
	corruptRakp2  bool
	negotiate     func(ipmi.CipherSuite) ipmi.CipherSuite
	drop          map[ipmi.PayloadType]int
	handler       func(f *fakeBMC, req *ipmi.IpmiRequest) bool
	solHandler    func(f *fakeBMC, p *ipmi.SolPacket)
	replySessHook func(id uint32) uint32
	pong          bool
	pings         int
	recvErrs      int // 接下来若干次 Recv 返回错误

	// 会话状态
	consoleID uint32
	suite     ipmi.CipherSuite
	auth      crypto.AuthAlgorithm
	integ     crypto.IntegrityAlgorithm
	crypt     crypto.Encrypter
	rm        [ipmi.RandomLen]byte
	role      uint8
	sik       []byte
	k1, k2    []byte
	active    bool
	seq       uint32

	inbox    [][]byte
	sent     int
	received []ipmi.Payload
	requests []*ipmi.IpmiRequest
	closed   bool
}

func newFakeBMC(t *testing.T, user, password string) *fakeBMC {
	f := &fakeBMC{
		t:        t,
		user:     user,
		password: password,
		drop:     make(map[ipmi.PayloadType]int),
	}
	for i := range f.guid {
		f.guid[i] = byte(0xA0 + i)
	}
	for i := range f.rc {
		f.rc[i] = byte(0x50 + i)
	}
	return f
}

func (f *fakeBMC) Send(pkt []byte) error {
	f.sent++
	f.handle(pkt)
	return nil
}

func (f *fakeBMC) Wait(d time.Duration) (bool, error) {
	if len(f.inbox) > 0 {
		return true, nil
	}
	time.Sleep(d)
	return len(f.inbox) > 0, nil
}

func (f *fakeBMC) Recv() ([]byte, error) {
	if f.recvErrs > 0 {
		f.recvErrs--
		return nil, errors.New("recv: connection refused")
	}
	pkt := f.inbox[0]
	f.inbox = f.inbox[1:]
	return pkt, nil
}

func (f *fakeBMC) Close() error {
	f.closed = true
	return nil
}

func (f *fakeBMC) kuid() []byte {
	return crypto.PadKey([]byte(f.password), 20)
}

func (f *fakeBMC) integKey() []byte {
	if f.integ.UsesPassword() {
		return f.kuid()
	}
	return f.k1
}

func (f *fakeBMC) roleName() []byte {
	return append([]byte{f.role, uint8(len(f.user))}, f.user...)
}

func leUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func (f *fakeBMC) handle(pkt []byte) {
	authLen := 0
	if f.active {
		authLen = f.integ.OutputSize()
	}
	fr, err := ipmi.ParseFrame(pkt, authLen)
	if ipmi.IsNotIPMIClass(err) {
		f.asf(pkt)
		return
	}
	require.NoError(f.t, err)
	t := fr.Session.PayloadType
	body := fr.Body
	if f.active && (t == ipmi.PayloadIPMI || t == ipmi.PayloadSOL) {
		require.Equal(f.t, uint32(fakeBMCSessionID), fr.Session.SessionID)
		require.NotZero(f.t, fr.Session.Sequence)
		if f.suite.Integrity != ipmi.INTEG_NONE {
			require.True(f.t, fr.Session.Authenticated)
			require.True(f.t, f.integ.Verify(f.integKey(), fr.Signed, fr.AuthCode), "AuthCode 校验失败")
		}
		require.Equal(f.t, f.suite.Crypt != ipmi.CRYPT_NONE, fr.Session.Encrypted)
		if fr.Session.Encrypted {
			body, err = f.crypt.Decrypt(body, f.k2)
			require.NoError(f.t, err)
		}
	}
	p, err := ipmi.DecodePayload(t, body, ipmi.ToBMC)
	require.NoError(f.t, err)
	f.received = append(f.received, p)

	if f.drop[t] > 0 {
		f.drop[t]--
		return
	}

	switch v := p.(type) {
	case *ipmi.OpenSessionRequest:
		f.openSession(v)
	case *ipmi.RAKP1:
		f.rakp1(v)
	case *ipmi.RAKP3:
		f.rakp3(v)
	case *ipmi.IpmiRequest:
		f.requests = append(f.requests, v)
		if f.handler != nil && f.handler(f, v) {
			return
		}
		f.command(v)
	case *ipmi.SolPacket:
		if f.solHandler != nil {
			f.solHandler(f, v)
		}
	}
}

// asf 应答 Presence Ping: 声明支持 IPMI 与 RMCP+
func (f *fakeBMC) asf(ping []byte) {
	f.pings++
	if !f.pong {
		return
	}
	f.inbox = append(f.inbox, []byte{
		0x06, 0x00, 0xFF, 0x06,
		0x00, 0x00, 0x11, 0xBE, 0x40, ping[9], 0x00, 0x10,
		0x00, 0x00, 0x11, 0xBE, 0x00, 0x00, 0x00, 0x00,
		0x81, 0xA0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	})
}

func (f *fakeBMC) openSession(req *ipmi.OpenSessionRequest) {
	f.consoleID = req.ConsoleSessionID
	suite := req.Suite
	if f.negotiate != nil {
		suite = f.negotiate(suite)
	}
	f.suite = suite
	var err error
	f.auth, err = crypto.GetAuthAlgorithm(uint8(suite.Auth))
	require.NoError(f.t, err)
	f.integ, err = crypto.GetIntegrityAlgorithm(uint8(suite.Integrity))
	require.NoError(f.t, err)
	f.crypt, err = crypto.GetEncrypter(uint8(suite.Crypt))
	require.NoError(f.t, err)

	f.reply(&ipmi.OpenSessionResponse{
		MessageTag:       req.MessageTag,
		MaxPrivilege:     ipmi.PrivilegeAdmin,
		ConsoleSessionID: req.ConsoleSessionID,
		BMCSessionID:     fakeBMCSessionID,
		Suite:            suite,
	})
}

func (f *fakeBMC) rakp1(req *ipmi.RAKP1) {
	require.Equal(f.t, uint32(fakeBMCSessionID), req.BMCSessionID)
	require.Equal(f.t, f.user, string(req.Username))
	f.rm = req.ConsoleRandom
	f.role = req.RequestedRole

	code := crypto.Keyed(f.auth, f.kuid(),
		leUint32(f.consoleID), leUint32(fakeBMCSessionID),
		f.rm[:], f.rc[:], f.guid[:], f.roleName())
	if f.corruptRakp2 && len(code) > 0 {
		code[0] ^= 0xFF
	}
	f.reply(&ipmi.RAKP2{
		MessageTag:       req.MessageTag,
		ConsoleSessionID: f.consoleID,
		BMCRandom:        f.rc,
		BMCGUID:          f.guid,
		AuthCode:         code,
	})
}

func (f *fakeBMC) rakp3(req *ipmi.RAKP3) {
	if req.Status != ipmi.RakpStatusNoErrors {
		return
	}
	want := crypto.Keyed(f.auth, f.kuid(), f.rc[:], leUint32(f.consoleID), f.roleName())
	require.True(f.t, hmac.Equal(want, req.AuthCode), "RAKP3 认证码错误")

	kg := f.kuid()
	if len(f.kg) > 0 {
		kg = crypto.PadKey(f.kg, 20)
	}
	f.sik = crypto.Keyed(f.auth, kg, f.rm[:], f.rc[:], f.roleName())
	n := 20
	if f.suite.Auth == ipmi.RAKP_HMAC_SHA256 {
		n = 32
	}
	f.k1 = crypto.Keyed(f.auth, f.sik, bytes.Repeat([]byte{1}, n))
	f.k2 = crypto.Keyed(f.auth, f.sik, bytes.Repeat([]byte{2}, n))

	icv := crypto.Keyed(f.auth, f.sik, f.rm[:], leUint32(fakeBMCSessionID), f.guid[:])
	f.reply(&ipmi.RAKP4{
		MessageTag:          req.MessageTag,
		ConsoleSessionID:    f.consoleID,
		IntegrityCheckValue: icv[:f.auth.ICVLen()],
	})
	f.active = true
}

func (f *fakeBMC) command(req *ipmi.IpmiRequest) {
	switch req.Cmd {
	case ipmi.CmdGetChannelAuthCapabilities:
		ext := uint8(0x02)
		if f.noV2 {
			ext = 0
		}
		f.respond(req, 0, []byte{0x01, 0x80 | 0x14, 0x04, ext, 0, 0, 0, 0})
	case ipmi.CmdSetSessionPrivilegeLevel:
		f.respond(req, 0, []byte{req.Data[0]})
	case ipmi.CmdCloseSession:
		f.respond(req, 0, nil)
	case ipmi.CmdGetDeviceID:
		f.respond(req, 0, []byte{0x20, 0x81, 0x02, 0x45, 0x02, 0xBF, 0x57, 0x01, 0x00, 0x34, 0x12})
	case ipmi.CmdActivatePayload:
		data := make([]byte, 12)
		binary.LittleEndian.PutUint16(data[4:6], fakeSolInbound)
		binary.LittleEndian.PutUint16(data[6:8], fakeSolInbound)
		binary.LittleEndian.PutUint16(data[8:10], ipmi.DefaultPort)
		binary.LittleEndian.PutUint16(data[10:12], 0xFFFF)
		f.respond(req, 0, data)
	case ipmi.CmdDeactivatePayload:
		f.respond(req, 0, nil)
	default:
		f.respond(req, ipmi.ErrInvalidCommand, nil)
	}
}

// response 按请求构造响应; 桥接请求的响应由 Send Message 外层内嵌目标响应
func response(req *ipmi.IpmiRequest, cc ipmi.CompletionCode, data []byte) *ipmi.IpmiResponse {
	return &ipmi.IpmiResponse{
		RqAddr:         req.RqAddr,
		NetFn:          req.NetFn + 1,
		RqLUN:          req.RqLUN,
		RsAddr:         req.RsAddr,
		RqSeq:          req.RqSeq,
		RsLUN:          req.RsLUN,
		Cmd:            req.Cmd,
		CompletionCode: cc,
		Data:           data,
	}
}

func (f *fakeBMC) respond(req *ipmi.IpmiRequest, cc ipmi.CompletionCode, data []byte) {
	rsp := response(req, cc, data)
	if req.Bridge == nil {
		f.reply(rsp)
		return
	}
	rsp.RqAddr = req.Bridge.MyAddr
	rsp.RsAddr = req.Bridge.TargetAddr
	inner, err := rsp.Encode()
	require.NoError(f.t, err)
	f.reply(&ipmi.IpmiResponse{
		RqAddr: req.RqAddr,
		NetFn:  ipmi.NetFnApp + 1,
		RsAddr: req.RsAddr,
		RqSeq:  req.RqSeq,
		Cmd:    ipmi.CmdSendMessage,
		Data:   inner,
	})
}

// reply 以 BMC 身份封装载荷放入控制台接收队列
func (f *fakeBMC) reply(p ipmi.Payload) {
	body, err := p.Encode()
	require.NoError(f.t, err)

	h := &ipmi.SessionHeader{AuthType: ipmi.AUTHTYPE_RMCPP, PayloadType: p.Type()}
	var mac ipmi.MACFunc
	if f.active && (p.Type() == ipmi.PayloadIPMI || p.Type() == ipmi.PayloadSOL) {
		h.SessionID = f.consoleID
		if f.replySessHook != nil {
			h.SessionID = f.replySessHook(h.SessionID)
		}
		f.seq++
		h.Sequence = f.seq
		if f.suite.Crypt != ipmi.CRYPT_NONE {
			body, err = f.crypt.Encrypt(body, f.k2)
			require.NoError(f.t, err)
			h.Encrypted = true
		}
		if f.suite.Integrity != ipmi.INTEG_NONE {
			key := f.integKey()
			mac = func(data []byte) []byte { return f.integ.Compute(key, data) }
		}
	}
	pkt, err := ipmi.Seal(h, body, mac)
	require.NoError(f.t, err)
	f.inbox = append(f.inbox, pkt)
}

// pushSOL BMC 主动发送 SOL 字符数据
func (f *fakeBMC) pushSOL(seq uint8, data []byte) {
	f.reply(&ipmi.SolPacket{Sequence: seq, Data: data})
}

// solAcks 控制台发来的纯确认包
func (f *fakeBMC) solAcks() []*ipmi.SolPacket {
	var out []*ipmi.SolPacket
	for _, p := range f.received {
		if sp, ok := p.(*ipmi.SolPacket); ok && sp.IsAckOnly() {
			out = append(out, sp)
		}
	}
	return out
}

// solData 控制台发来的数据包
func (f *fakeBMC) solData() []*ipmi.SolPacket {
	var out []*ipmi.SolPacket
	for _, p := range f.received {
		if sp, ok := p.(*ipmi.SolPacket); ok && !sp.IsAckOnly() {
			out = append(out, sp)
		}
	}
	return out
}

func testConfig(f *fakeBMC, suite int) *Config {
	cfg := DefaultConfig("bmc.test", f.user, f.password)
	cfg.CipherSuite = suite
	cfg.Timeout = 20 * time.Millisecond
	cfg.TimeoutStep = 10 * time.Millisecond
	cfg.TransportFactory = func(*Config) (Transport, error) { return f, nil }
	return cfg
}

func newTestSession(t *testing.T, cfg *Config) *Session {
	return NewSession(cfg, zaptest.NewLogger(t))
}
