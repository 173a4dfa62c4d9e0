package lanplus

import (
	"errors"
	"fmt"
	"time"

	"github.com/iniwex5/lanplus-go/pkg/ipmi"
	"github.com/iniwex5/lanplus-go/pkg/metrics"
)

const (
	DefaultCipherSuite = 3
	DefaultTimeout     = time.Second
	DefaultRetries     = 4
	maxPasswordLen     = 20
)

// Quirks 针对特定 BMC 实现的兼容行为
type Quirks struct {
	// BridgeInvalidData 桥接的 Send Message 返回 0xCC 时继续等待内层响应
	BridgeInvalidData bool
}

type Config struct {
	Host     string
	Port     int // 默认 623
	Username string
	Password string
	Kg       []byte // BMC 密钥, 为空时使用口令

	// CipherSuite 套件编号, 0 表示不认证, 请使用 DefaultConfig 获得默认值 3
	CipherSuite    int
	Privilege      ipmi.PrivilegeLevel
	NameOnlyLookup bool

	Timeout     time.Duration // 每轮等待时间, 默认 1s
	TimeoutStep time.Duration // 每次重传后增加的等待时间, 默认 1s
	Retries     int           // 默认 4

	// Ping 在握手前发送 ASF Presence Ping 探测 RMCP+ 支持
	Ping bool

	// 桥接: TargetAddr 为 0 或等于 MyAddr 时不桥接
	MyAddr         uint8
	TargetAddr     uint8
	TargetChannel  uint8
	TransitAddr    uint8
	TransitChannel uint8

	Quirks Quirks

	Namespace string // 在命名网络命名空间中打开套接字
	Interface string // 绑定到该接口的 IPv4 地址

	Metrics          *metrics.Collector
	TransportFactory func(cfg *Config) (Transport, error)
}

// DefaultConfig 返回带默认值的配置
func DefaultConfig(host, username, password string) *Config {
	return &Config{
		Host:        host,
		Port:        ipmi.DefaultPort,
		Username:    username,
		Password:    password,
		CipherSuite: DefaultCipherSuite,
		Privilege:   ipmi.PrivilegeAdmin,
		Timeout:     DefaultTimeout,
		TimeoutStep: time.Second,
		Retries:     DefaultRetries,
		MyAddr:      ipmi.BMC_SA,
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = ipmi.DefaultPort
	}
	if c.Privilege == 0 {
		c.Privilege = ipmi.PrivilegeAdmin
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.TimeoutStep <= 0 {
		c.TimeoutStep = time.Second
	}
	if c.Retries <= 0 {
		c.Retries = DefaultRetries
	}
	if c.MyAddr == 0 {
		c.MyAddr = ipmi.BMC_SA
	}
}

// Validate 检查配置
func (c *Config) Validate() error {
	if c.Host == "" && c.TransportFactory == nil {
		return errors.New("BMC 地址不能为空")
	}
	if _, err := ipmi.ResolveCipherSuite(c.CipherSuite); err != nil {
		return err
	}
	if len(c.Username) > ipmi.MaxUsernameLen {
		return fmt.Errorf("用户名最多 %d 字节", ipmi.MaxUsernameLen)
	}
	if len(c.Password) > maxPasswordLen {
		return fmt.Errorf("口令最多 %d 字节", maxPasswordLen)
	}
	if len(c.Kg) > maxPasswordLen {
		return fmt.Errorf("Kg 最多 %d 字节", maxPasswordLen)
	}
	if c.Privilege > ipmi.PrivilegeOEM {
		return fmt.Errorf("无效的特权级别: %d", c.Privilege)
	}
	return nil
}

// bridge 会话默认的桥接目标
func (c *Config) bridge() *ipmi.Bridge {
	if c.TargetAddr == 0 || c.TargetAddr == c.MyAddr {
		return nil
	}
	return &ipmi.Bridge{
		MyAddr:         c.MyAddr,
		TargetAddr:     c.TargetAddr,
		TargetChannel:  c.TargetChannel,
		TransitAddr:    c.TransitAddr,
		TransitChannel: c.TransitChannel,
	}
}
