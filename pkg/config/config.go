package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iniwex5/lanplus-go/pkg/ipmi"
	"github.com/iniwex5/lanplus-go/pkg/lanplus"
	"github.com/iniwex5/lanplus-go/pkg/metrics"
)

// Config BMC 连接配置文件
type Config struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port,omitempty"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty"`
	Kg          string `yaml:"kg,omitempty"` // 十六进制

	// CipherSuite 未设置时为 3; 显式写 0 表示不认证
	CipherSuite    *int   `yaml:"cipher_suite,omitempty"`
	Privilege      string `yaml:"privilege,omitempty"`
	NameOnlyLookup bool   `yaml:"name_only_lookup,omitempty"`

	Timeout     Duration `yaml:"timeout,omitempty"`
	TimeoutStep Duration `yaml:"timeout_step,omitempty"`
	Retries     int      `yaml:"retries,omitempty"`
	Ping        bool     `yaml:"ping,omitempty"`

	Bridge BridgeConfig `yaml:"bridge,omitempty"`
	Quirks QuirksConfig `yaml:"quirks,omitempty"`

	Namespace string `yaml:"namespace,omitempty"`
	Interface string `yaml:"interface,omitempty"`

	Log LogConfig `yaml:"log,omitempty"`
}

// Duration 以 "1s" / "500ms" 形式读写
type Duration time.Duration

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	v, err := time.ParseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("无效的时长 %q: %w", n.Value, err)
	}
	*d = Duration(v)
	return nil
}

type BridgeConfig struct {
	MyAddr         uint8 `yaml:"my_addr,omitempty"`
	TargetAddr     uint8 `yaml:"target_addr,omitempty"`
	TargetChannel  uint8 `yaml:"target_channel,omitempty"`
	TransitAddr    uint8 `yaml:"transit_addr,omitempty"`
	TransitChannel uint8 `yaml:"transit_channel,omitempty"`
}

type QuirksConfig struct {
	BridgeInvalidData bool `yaml:"bridge_invalid_data,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML, 填充默认值并校验
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Complete(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Complete 填充默认值并校验, 用于命令行构造的配置
func (c *Config) Complete() error {
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = ipmi.DefaultPort
	}
	if c.CipherSuite == nil {
		suite := lanplus.DefaultCipherSuite
		c.CipherSuite = &suite
	}
	if c.Privilege == "" {
		c.Privilege = "administrator"
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(lanplus.DefaultTimeout)
	}
	if c.TimeoutStep == 0 {
		c.TimeoutStep = Duration(time.Second)
	}
	if c.Retries == 0 {
		c.Retries = lanplus.DefaultRetries
	}
	if c.Bridge.MyAddr == 0 {
		c.Bridge.MyAddr = ipmi.BMC_SA
	}
	if c.Password == "" && c.PasswordEnv != "" {
		c.Password = os.Getenv(c.PasswordEnv)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host 不能为空")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port 超出范围: %d", c.Port)
	}
	if _, err := ipmi.ResolveCipherSuite(*c.CipherSuite); err != nil {
		return fmt.Errorf("cipher_suite: %w", err)
	}
	if _, err := ipmi.ParsePrivilegeLevel(c.Privilege); err != nil {
		return fmt.Errorf("privilege: %w", err)
	}
	if len(c.Username) > ipmi.MaxUsernameLen {
		return fmt.Errorf("username 最多 %d 字节", ipmi.MaxUsernameLen)
	}
	if len(c.Password) > 20 {
		return errors.New("password 最多 20 字节")
	}
	if c.Kg != "" {
		kg, err := hex.DecodeString(c.Kg)
		if err != nil {
			return fmt.Errorf("kg 不是有效的十六进制: %w", err)
		}
		if len(kg) > 20 {
			return errors.New("kg 最多 20 字节")
		}
	}
	if c.Timeout < 0 || c.TimeoutStep < 0 || c.Retries < 0 {
		return errors.New("timeout, timeout_step 与 retries 不能为负")
	}
	return nil
}

// Session 转换为会话配置, m 可为 nil
func (c *Config) Session(m *metrics.Collector) (*lanplus.Config, error) {
	priv, err := ipmi.ParsePrivilegeLevel(c.Privilege)
	if err != nil {
		return nil, err
	}
	var kg []byte
	if c.Kg != "" {
		if kg, err = hex.DecodeString(c.Kg); err != nil {
			return nil, err
		}
	}
	return &lanplus.Config{
		Host:           c.Host,
		Port:           c.Port,
		Username:       c.Username,
		Password:       c.Password,
		Kg:             kg,
		CipherSuite:    *c.CipherSuite,
		Privilege:      priv,
		NameOnlyLookup: c.NameOnlyLookup,
		Timeout:        time.Duration(c.Timeout),
		TimeoutStep:    time.Duration(c.TimeoutStep),
		Retries:        c.Retries,
		Ping:           c.Ping,
		MyAddr:         c.Bridge.MyAddr,
		TargetAddr:     c.Bridge.TargetAddr,
		TargetChannel:  c.Bridge.TargetChannel,
		TransitAddr:    c.Bridge.TransitAddr,
		TransitChannel: c.Bridge.TransitChannel,
		Quirks:         lanplus.Quirks{BridgeInvalidData: c.Quirks.BridgeInvalidData},
		Namespace:      c.Namespace,
		Interface:      c.Interface,
		Metrics:        m,
	}, nil
}
