package ipmi

import (
	"bytes"
	"errors"
	"testing"
)

func TestSessionHeaderLittleEndian(t *testing.T) {
	h := &SessionHeader{
		AuthType:      AUTHTYPE_RMCPP,
		PayloadType:   PayloadSOL,
		Encrypted:     true,
		Authenticated: true,
		SessionID:     0x11223344,
		Sequence:      0x00000102,
		PayloadLength: 0x0203,
	}
	got := h.Encode()
	want := []byte{0x06, 0xC1, 0x44, 0x33, 0x22, 0x11, 0x02, 0x01, 0x00, 0x00, 0x03, 0x02}
	if !bytes.Equal(got, want) {
		t.Fatalf("会话头编码错误:\n got  %x\n want %x", got, want)
	}
	back, err := DecodeSessionHeader(got)
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	if *back != *h {
		t.Fatalf("往返不一致: %+v != %+v", back, h)
	}
}

func TestChecksum(t *testing.T) {
	b := []byte{0x20, 0x18}
	cs := Checksum(b)
	if cs != 0xC8 {
		t.Fatalf("校验和 got 0x%02x, want 0xC8", cs)
	}
	var sum uint8
	for _, x := range append(b, cs) {
		sum += x
	}
	if sum != 0 {
		t.Fatalf("带校验和的总和应为 0, got %d", sum)
	}
}

// TestGetDeviceIDRequest 未桥接的 Get Device ID 请求字节
func TestGetDeviceIDRequest(t *testing.T) {
	req := &IpmiRequest{RsAddr: BMC_SA, NetFn: NetFnApp, RqAddr: REMOTE_SWID, RqSeq: 5, Cmd: CmdGetDeviceID}
	got, err := req.Encode()
	if err != nil {
		t.Fatalf("编码失败: %v", err)
	}
	want := []byte{0x20, 0x18, 0xC8, 0x81, 0x14, 0x01, 0x6A}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestSingleBridgeLayout(t *testing.T) {
	req := &IpmiRequest{
		RsAddr: BMC_SA, NetFn: NetFnApp, RqAddr: REMOTE_SWID, RqSeq: 2, Cmd: CmdGetDeviceID,
		Bridge: &Bridge{MyAddr: BMC_SA, TargetAddr: 0x72, TargetChannel: 7},
	}
	got, err := req.Encode()
	if err != nil {
		t.Fatalf("编码失败: %v", err)
	}
	if got[5] != CmdSendMessage || got[6] != 0x47 {
		t.Fatalf("外层应为 Send Message 且通道字节为 0x47: %x", got)
	}
	inner := got[7 : len(got)-1]
	if inner[0] != 0x72 || inner[1] != NetFnApp<<2 || inner[3] != BMC_SA || inner[4] != 2<<2 || inner[5] != CmdGetDeviceID {
		t.Fatalf("内层头部错误: %x", inner)
	}
	if Checksum(inner[0:2]) != inner[2] || Checksum(inner[3:len(inner)-1]) != inner[len(inner)-1] {
		t.Fatalf("内层校验和错误: %x", inner)
	}
	if Checksum(got[3:len(got)-1]) != got[len(got)-1] {
		t.Fatalf("外层校验和错误: %x", got)
	}

	back, err := DecodeIpmiRequest(got)
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	if back.Bridge == nil || back.Bridge.TargetAddr != 0x72 || back.Bridge.TargetChannel != 7 || back.Cmd != CmdGetDeviceID {
		t.Fatalf("桥接信息未还原: %+v %+v", back, back.Bridge)
	}
}

func TestDoubleBridgeLayout(t *testing.T) {
	req := &IpmiRequest{
		RsAddr: BMC_SA, NetFn: NetFnStorage, RqAddr: REMOTE_SWID, RqSeq: 9, Cmd: 0x10, Data: []byte{0xAA},
		Bridge: &Bridge{MyAddr: BMC_SA, TargetAddr: 0xB0, TargetChannel: 0, TransitAddr: 0x82, TransitChannel: 6},
	}
	if req.Bridge.Level() != 2 {
		t.Fatalf("应为双层桥接")
	}
	got, err := req.Encode()
	if err != nil {
		t.Fatalf("编码失败: %v", err)
	}
	if got[6] != 0x46 || got[7] != 0x82 {
		t.Fatalf("外层应指向中转地址 0x82 通道 6: %x", got)
	}
	back, err := DecodeIpmiRequest(got)
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	if !bytes.Equal(mustEncode(t, back), got) {
		t.Fatalf("双层桥接往返不一致")
	}
	if back.Bridge.TransitAddr != 0x82 || back.Bridge.TargetAddr != 0xB0 || back.NetFn != NetFnStorage {
		t.Fatalf("桥接字段错误: %+v", back.Bridge)
	}
}

func TestEmbeddedResponse(t *testing.T) {
	inner := &IpmiResponse{RqAddr: BMC_SA, NetFn: NetFnApp | 1, RsAddr: 0x72, RqSeq: 3, Cmd: CmdGetDeviceID, Data: []byte{0x01, 0x02}}
	innerBytes := mustEncode(t, inner)
	outer := &IpmiResponse{RqAddr: REMOTE_SWID, NetFn: NetFnApp | 1, RsAddr: BMC_SA, RqSeq: 3, Cmd: CmdSendMessage, Data: innerBytes}

	got, err := outer.Embedded()
	if err != nil {
		t.Fatalf("解析内嵌响应失败: %v", err)
	}
	if got.Cmd != CmdGetDeviceID || got.CompletionCode != CommandCompleted || !bytes.Equal(got.Data, []byte{0x01, 0x02}) {
		t.Fatalf("内嵌响应错误: %+v", got)
	}

	empty := &IpmiResponse{Cmd: CmdSendMessage}
	if _, err := empty.Embedded(); err == nil {
		t.Fatal("空的 Send Message 响应不应有内嵌响应")
	}
}

func TestDecodeResponseChecksum(t *testing.T) {
	rsp := mustEncode(t, &IpmiResponse{RqAddr: REMOTE_SWID, NetFn: 7, RsAddr: BMC_SA, RqSeq: 1, Cmd: 1})
	rsp[len(rsp)-1] ^= 0xFF
	if _, err := DecodeIpmiResponse(rsp); !errors.Is(err, ErrChecksum) {
		t.Fatalf("期望 ErrChecksum, got %v", err)
	}
}

func TestOpenSessionRequestLayout(t *testing.T) {
	suite, _ := ResolveCipherSuite(3)
	p := &OpenSessionRequest{MessageTag: 7, MaxPrivilege: PrivilegeAdmin, ConsoleSessionID: 0xA0A2A3A4, Suite: suite}
	b := mustEncode(t, p)
	if len(b) != 32 {
		t.Fatalf("长度 got %d", len(b))
	}
	want := map[int]byte{0: 7, 1: 4, 4: 0xA4, 7: 0xA0, 8: 0, 11: 8, 12: 1, 16: 1, 19: 8, 20: 1, 24: 2, 27: 8, 28: 1}
	for off, v := range want {
		if b[off] != v {
			t.Errorf("偏移 %d: got 0x%02x, want 0x%02x", off, b[off], v)
		}
	}
}

func TestOpenSessionResponseError(t *testing.T) {
	data := []byte{0x01, byte(RakpStatusNoCipherSuiteMatch), 0x00, 0x00, 0x04, 0x03, 0x02, 0x01}
	p, err := DecodeOpenSessionResponse(data)
	if err != nil {
		t.Fatalf("错误状态的短响应应能解码: %v", err)
	}
	if p.Status != RakpStatusNoCipherSuiteMatch || p.ConsoleSessionID != 0x01020304 {
		t.Fatalf("字段错误: %+v", p)
	}
	if _, err := DecodeOpenSessionResponse(append([]byte{0x01, 0x00}, data[2:]...)); !errors.Is(err, ErrTruncatedPacket) {
		t.Fatalf("成功状态的短响应应报截断: %v", err)
	}
}

func TestRAKP1Layout(t *testing.T) {
	p := &RAKP1{MessageTag: 1, BMCSessionID: 0x01020304, RequestedRole: uint8(PrivilegeAdmin) | RoleNameOnlyLookup, Username: []byte("admin")}
	for i := range p.ConsoleRandom {
		p.ConsoleRandom[i] = byte(i)
	}
	b := mustEncode(t, p)
	if len(b) != 33 || b[4] != 0x04 || b[8] != 0 || b[23] != 15 || b[24] != 0x14 || b[27] != 5 || string(b[28:]) != "admin" {
		t.Fatalf("RAKP1 布局错误: %x", b)
	}

	p.Username = bytes.Repeat([]byte{'a'}, 17)
	if _, err := p.Encode(); err == nil {
		t.Fatal("超过 16 字节的用户名应失败")
	}
}

func TestRAKP3StatusOmitsAuthCode(t *testing.T) {
	p := &RAKP3{MessageTag: 2, Status: RakpStatusInvalidIntegrityCheck, BMCSessionID: 9, AuthCode: []byte{1, 2, 3}}
	b := mustEncode(t, p)
	if len(b) != 8 || b[1] != 0x0F {
		t.Fatalf("失败状态的 RAKP3 不应携带认证码: %x", b)
	}
}

func TestSealAndParseFrame(t *testing.T) {
	body := []byte{1, 2, 3, 4, 5}
	mac := func(data []byte) []byte { return bytes.Repeat([]byte{0xAB}, 12) }
	h := &SessionHeader{AuthType: AUTHTYPE_RMCPP, PayloadType: PayloadIPMI, SessionID: 0x10, Sequence: 3}
	pkt, err := Seal(h, body, mac)
	if err != nil {
		t.Fatalf("组装失败: %v", err)
	}
	if (SESSION_HDR_LEN+len(body)+IntegrityPadLen(len(body))+2)%4 != 0 {
		t.Fatalf("完整性填充未对齐")
	}

	f, err := ParseFrame(pkt, 12)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if !bytes.Equal(f.Body, body) || !f.Session.Authenticated {
		t.Fatalf("载荷错误: %+v", f)
	}
	if f.Signed[0] != AUTHTYPE_RMCPP || f.Signed[len(f.Signed)-1] != NEXT_HEADER_RMCP {
		t.Fatalf("签名区域应从 authtype 到 next header: %x", f.Signed)
	}
	for _, b := range f.Signed[SESSION_HDR_LEN+len(body) : len(f.Signed)-2] {
		if b != 0xFF {
			t.Fatalf("完整性填充应为 0xFF: %x", f.Signed)
		}
	}

	if _, err := ParseFrame(pkt, 0); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("未协商完整性时应失败: %v", err)
	}
}

func TestParseFrameTruncated(t *testing.T) {
	pkt, _ := EncodeUnprotected(&SolPacket{Sequence: 1, Data: []byte("abc")})
	if _, err := ParseFrame(pkt[:len(pkt)-1], 0); !errors.Is(err, ErrTruncatedPacket) {
		t.Fatalf("期望 ErrTruncatedPacket, got %v", err)
	}
	if _, err := ParseFrame(pkt[:10], 0); !errors.Is(err, ErrTruncatedPacket) {
		t.Fatalf("期望 ErrTruncatedPacket, got %v", err)
	}
	asf := []byte{0x06, 0x00, 0xFF, 0x06, 0, 0, 0x11, 0xBE, 0x40, 0, 0, 0}
	if _, err := ParseFrame(asf, 0); !IsNotIPMIClass(err) {
		t.Fatalf("ASF 报文应被识别: %v", err)
	}
}

func TestDecodePayloadDirection(t *testing.T) {
	b := mustEncode(t, &RAKP1{Username: []byte("u")})
	if _, err := DecodePayload(PayloadRAKP1, b, FromBMC); !errors.Is(err, ErrUnsupportedPayloadType) {
		t.Fatalf("BMC 不会发送 RAKP1: %v", err)
	}
	if _, err := DecodePayload(PayloadOEM, b, ToBMC); !errors.Is(err, ErrUnsupportedPayloadType) {
		t.Fatalf("OEM 载荷不支持: %v", err)
	}
}

func TestSolPacketLayout(t *testing.T) {
	p := &SolPacket{Sequence: 3, AckSequence: 2, AcceptedCount: 10, Flags: SolOpGenerateBreak, Data: []byte("hi")}
	b := mustEncode(t, p)
	if !bytes.Equal(b, []byte{3, 2, 10, 0x10, 'h', 'i'}) {
		t.Fatalf("SOL 布局错误: %x", b)
	}
	if _, err := (&SolPacket{Sequence: 16}).Encode(); err == nil {
		t.Fatal("序号 16 应失败")
	}
}

func TestCompletionCodeError(t *testing.T) {
	rsp := &Response{NetFn: 7, Cmd: 1, CompletionCode: ErrInsufficientPrivilege}
	err := rsp.Err()
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Code != ErrInsufficientPrivilege {
		t.Fatalf("期望 CommandError, got %v", err)
	}
	if !errors.Is(err, ErrInsufficientPrivilege) {
		t.Fatal("CommandError 应能解包为完成码")
	}
	if (&Response{}).Err() != nil {
		t.Fatal("完成码 0 不应返回错误")
	}
}

func mustEncode(t testing.TB, p Payload) []byte {
	t.Helper()
	b, err := p.Encode()
	if err != nil {
		t.Fatalf("编码 %s 失败: %v", p.Type(), err)
	}
	return b
}
