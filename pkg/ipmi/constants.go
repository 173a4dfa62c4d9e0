package ipmi

import "fmt"

// IPMI v2.0 / RMCP+ 常量

const (
	DefaultPort = 623

	RMCP_VERSION_1   = 0x06
	RMCP_SEQ_NO_ACK  = 0xFF
	RMCP_CLASS_ASF   = 0x06
	RMCP_CLASS_IPMI  = 0x07
	RMCP_HEADER_LEN  = 4
	SESSION_HDR_LEN  = 12 // authtype(1) payloadtype(1) session id(4) seq(4) length(2)
	AUTHTYPE_RMCPP   = 0x06
	NEXT_HEADER_RMCP = 0x07

	// ASF IANA 企业号 4542
	ASF_IANA = 0x000011BE
)

// 载荷类型 (会话头 payload type 低 6 位)
type PayloadType uint8

const (
	PayloadIPMI                PayloadType = 0x00
	PayloadSOL                 PayloadType = 0x01
	PayloadOEM                 PayloadType = 0x02
	PayloadOpenSessionRequest  PayloadType = 0x10
	PayloadOpenSessionResponse PayloadType = 0x11
	PayloadRAKP1               PayloadType = 0x12
	PayloadRAKP2               PayloadType = 0x13
	PayloadRAKP3               PayloadType = 0x14
	PayloadRAKP4               PayloadType = 0x15
)

const (
	PayloadFlagEncrypted     = 0x80
	PayloadFlagAuthenticated = 0x40
	payloadTypeMask          = 0x3F
)

func (t PayloadType) String() string {
	switch t {
	case PayloadIPMI:
		return "IPMI"
	case PayloadSOL:
		return "SOL"
	case PayloadOEM:
		return "OEM"
	case PayloadOpenSessionRequest:
		return "OpenSessionRequest"
	case PayloadOpenSessionResponse:
		return "OpenSessionResponse"
	case PayloadRAKP1:
		return "RAKP1"
	case PayloadRAKP2:
		return "RAKP2"
	case PayloadRAKP3:
		return "RAKP3"
	case PayloadRAKP4:
		return "RAKP4"
	}
	return fmt.Sprintf("PayloadType(0x%02x)", uint8(t))
}

// IPMB 地址
const (
	BMC_SA       = 0x20 // BMC 从地址, 也是桥接时的 my_addr
	REMOTE_SWID  = 0x81 // 远程控制台软件 ID
	IPMB_LUN_BMC = 0x00
)

// 网络功能码
const (
	NetFnChassis   = 0x00
	NetFnBridge    = 0x02
	NetFnSensor    = 0x04
	NetFnApp       = 0x06
	NetFnFirmware  = 0x08
	NetFnStorage   = 0x0A
	NetFnTransport = 0x0C
)

// App 命令
const (
	CmdGetDeviceID                      = 0x01
	CmdSendMessage                      = 0x34
	CmdGetChannelAuthCapabilities       = 0x38
	CmdSetSessionPrivilegeLevel         = 0x3B
	CmdCloseSession                     = 0x3C
	CmdActivatePayload                  = 0x48
	CmdDeactivatePayload                = 0x49
	CmdGetChannelCipherSuites           = 0x54
	SendMessageTrackRequest             = 0x40
	ChannelAuthCapsV2Current      uint8 = 0x8E
)

// 特权级别
type PrivilegeLevel uint8

const (
	PrivilegeHighest  PrivilegeLevel = 0x00 // Open Session 中表示 "与算法匹配的最高级别"
	PrivilegeCallback PrivilegeLevel = 0x01
	PrivilegeUser     PrivilegeLevel = 0x02
	PrivilegeOperator PrivilegeLevel = 0x03
	PrivilegeAdmin    PrivilegeLevel = 0x04
	PrivilegeOEM      PrivilegeLevel = 0x05
)

// RAKP1 角色字节中的 "仅按用户名查找" 位
const RoleNameOnlyLookup = 0x10

func (p PrivilegeLevel) String() string {
	switch p {
	case PrivilegeHighest:
		return "HIGHEST"
	case PrivilegeCallback:
		return "CALLBACK"
	case PrivilegeUser:
		return "USER"
	case PrivilegeOperator:
		return "OPERATOR"
	case PrivilegeAdmin:
		return "ADMINISTRATOR"
	case PrivilegeOEM:
		return "OEM"
	}
	return fmt.Sprintf("PrivilegeLevel(%d)", uint8(p))
}

// ParsePrivilegeLevel 解析配置与命令行中的特权级别名称
func ParsePrivilegeLevel(s string) (PrivilegeLevel, error) {
	switch s {
	case "callback", "CALLBACK":
		return PrivilegeCallback, nil
	case "user", "USER":
		return PrivilegeUser, nil
	case "operator", "OPERATOR":
		return PrivilegeOperator, nil
	case "admin", "administrator", "ADMINISTRATOR":
		return PrivilegeAdmin, nil
	case "oem", "OEM":
		return PrivilegeOEM, nil
	}
	return 0, fmt.Errorf("未知的特权级别: %q", s)
}

// RAKP / Open Session 状态码
type RakpStatus uint8

const (
	RakpStatusNoErrors                     RakpStatus = 0x00
	RakpStatusInsufficientResources        RakpStatus = 0x01
	RakpStatusInvalidSessionID             RakpStatus = 0x02
	RakpStatusInvalidPayloadType           RakpStatus = 0x03
	RakpStatusInvalidAuthAlgorithm         RakpStatus = 0x04
	RakpStatusInvalidIntegrityAlgorithm    RakpStatus = 0x05
	RakpStatusNoMatchingAuthPayload        RakpStatus = 0x06
	RakpStatusNoMatchingIntegrityPayload   RakpStatus = 0x07
	RakpStatusInactiveSessionID            RakpStatus = 0x08
	RakpStatusInvalidRole                  RakpStatus = 0x09
	RakpStatusUnauthorizedRole             RakpStatus = 0x0A
	RakpStatusInsufficientResourcesForRole RakpStatus = 0x0B
	RakpStatusInvalidNameLength            RakpStatus = 0x0C
	RakpStatusUnauthorizedName             RakpStatus = 0x0D
	RakpStatusUnauthorizedGUID             RakpStatus = 0x0E
	RakpStatusInvalidIntegrityCheck        RakpStatus = 0x0F
	RakpStatusInvalidConfidentialityAlg    RakpStatus = 0x10
	RakpStatusNoCipherSuiteMatch           RakpStatus = 0x11
	RakpStatusIllegalParameter             RakpStatus = 0x12
)

var rakpStatusText = map[RakpStatus]string{
	RakpStatusNoErrors:                     "no errors",
	RakpStatusInsufficientResources:        "insufficient resources to create a session",
	RakpStatusInvalidSessionID:             "invalid session ID",
	RakpStatusInvalidPayloadType:           "invalid payload type",
	RakpStatusInvalidAuthAlgorithm:         "invalid authentication algorithm",
	RakpStatusInvalidIntegrityAlgorithm:    "invalid integrity algorithm",
	RakpStatusNoMatchingAuthPayload:        "no matching authentication payload",
	RakpStatusNoMatchingIntegrityPayload:   "no matching integrity payload",
	RakpStatusInactiveSessionID:            "inactive session ID",
	RakpStatusInvalidRole:                  "invalid role",
	RakpStatusUnauthorizedRole:             "unauthorized role or privilege level requested",
	RakpStatusInsufficientResourcesForRole: "insufficient resources to create a session at the requested role",
	RakpStatusInvalidNameLength:            "invalid name length",
	RakpStatusUnauthorizedName:             "unauthorized name",
	RakpStatusUnauthorizedGUID:             "unauthorized GUID",
	RakpStatusInvalidIntegrityCheck:        "invalid integrity check value",
	RakpStatusInvalidConfidentialityAlg:    "invalid confidentiality algorithm",
	RakpStatusNoCipherSuiteMatch:           "no cipher suite match with proposed security algorithms",
	RakpStatusIllegalParameter:             "illegal or unrecognized parameter",
}

func (s RakpStatus) String() string {
	if txt, ok := rakpStatusText[s]; ok {
		return txt
	}
	return fmt.Sprintf("unknown RAKP status 0x%02x", uint8(s))
}
