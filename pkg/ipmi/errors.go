package ipmi

import (
	"errors"
	"fmt"
)

var (
	ErrTruncatedPacket        = errors.New("数据包被截断")
	ErrUnsupportedPayloadType = errors.New("不支持的载荷类型")
	ErrInvalidSessionState    = errors.New("会话状态不允许该载荷")
	ErrUnsupportedCipherSuite = errors.New("不支持的密码套件")
	ErrChecksum               = errors.New("IPMI 校验和错误")
	ErrIntegrity              = errors.New("会话尾部完整性校验失败")
)

// CompletionCode IPMI 响应完成码
type CompletionCode uint8

const (
	CommandCompleted          CompletionCode = 0x00
	ErrNodeBusy               CompletionCode = 0xC0
	ErrInvalidCommand         CompletionCode = 0xC1
	ErrInvalidCommandForLUN   CompletionCode = 0xC2
	ErrTimeout                CompletionCode = 0xC3
	ErrOutOfSpace             CompletionCode = 0xC4
	ErrReservationCanceled    CompletionCode = 0xC5
	ErrRequestDataTruncated   CompletionCode = 0xC6
	ErrRequestDataLenInvalid  CompletionCode = 0xC7
	ErrRequestDataLenExceeded CompletionCode = 0xC8
	ErrParameterOutOfRange    CompletionCode = 0xC9
	ErrCannotReturnRequested  CompletionCode = 0xCA
	ErrRequestedNotPresent    CompletionCode = 0xCB
	ErrInvalidDataField       CompletionCode = 0xCC
	ErrIllegalCommand         CompletionCode = 0xCD
	ErrCannotProvideResponse  CompletionCode = 0xCE
	ErrDuplicateRequest       CompletionCode = 0xCF
	ErrSDRInUpdateMode        CompletionCode = 0xD0
	ErrFirmwareUpdateMode     CompletionCode = 0xD1
	ErrBMCInitializing        CompletionCode = 0xD2
	ErrDestinationUnavailable CompletionCode = 0xD3
	ErrInsufficientPrivilege  CompletionCode = 0xD4
	ErrNotSupportedInState    CompletionCode = 0xD5
	ErrSubFunctionDisabled    CompletionCode = 0xD6
	ErrUnspecified            CompletionCode = 0xFF
)

var completionCodeText = map[CompletionCode]string{
	CommandCompleted:          "Command completed normally",
	ErrNodeBusy:               "Node busy",
	ErrInvalidCommand:         "Invalid command",
	ErrInvalidCommandForLUN:   "Invalid command on LUN",
	ErrTimeout:                "Timeout",
	ErrOutOfSpace:             "Out of space",
	ErrReservationCanceled:    "Reservation cancelled or invalid",
	ErrRequestDataTruncated:   "Request data truncated",
	ErrRequestDataLenInvalid:  "Request data length invalid",
	ErrRequestDataLenExceeded: "Request data field length limit exceeded",
	ErrParameterOutOfRange:    "Parameter out of range",
	ErrCannotReturnRequested:  "Cannot return number of requested data bytes",
	ErrRequestedNotPresent:    "Requested sensor, data, or record not found",
	ErrInvalidDataField:       "Invalid data field in request",
	ErrIllegalCommand:         "Command illegal for specified sensor or record type",
	ErrCannotProvideResponse:  "Command response could not be provided",
	ErrDuplicateRequest:       "Cannot execute duplicated request",
	ErrSDRInUpdateMode:        "SDR Repository in update mode",
	ErrFirmwareUpdateMode:     "Device firmware in update mode",
	ErrBMCInitializing:        "BMC initialization in progress",
	ErrDestinationUnavailable: "Destination unavailable",
	ErrInsufficientPrivilege:  "Insufficient privilege level",
	ErrNotSupportedInState:    "Command not supported in present state",
	ErrSubFunctionDisabled:    "Cannot execute command, command disabled",
	ErrUnspecified:            "Unspecified error",
}

func (c CompletionCode) Error() string {
	if s, ok := completionCodeText[c]; ok {
		return s
	}
	return fmt.Sprintf("Unknown completion code 0x%02x", uint8(c))
}

// CommandError 带命令上下文的非零完成码
type CommandError struct {
	Code  CompletionCode
	NetFn uint8
	Cmd   uint8
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("IPMI 命令 netfn=0x%02x cmd=0x%02x 失败: %s (0x%02x)", e.NetFn, e.Cmd, e.Code.Error(), uint8(e.Code))
}

func (e *CommandError) Unwrap() error {
	return e.Code
}
