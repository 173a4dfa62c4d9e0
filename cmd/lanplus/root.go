package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/iniwex5/lanplus-go/pkg/config"
	"github.com/iniwex5/lanplus-go/pkg/lanplus"
	"github.com/iniwex5/lanplus-go/pkg/logger"
	"github.com/iniwex5/lanplus-go/pkg/metrics"
)

type rootOptions struct {
	configPath  string
	host        string
	port        int
	username    string
	password    string
	passwordEnv string
	suite       int
	privilege   string
	timeout     time.Duration
	retries     int
	ping        bool
	targetAddr  uint8
	targetChan  uint8
	namespace   string
	iface       string
	logLevel    string
	logFormat   string
	metricsAddr string
}

func newRootCommand() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "lanplus",
		Short:         "IPMI v2.0 RMCP+ client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&opts.host, "host", "H", "", "BMC address")
	flags.IntVarP(&opts.port, "port", "p", 0, "BMC port (default 623)")
	flags.StringVarP(&opts.username, "user", "U", "", "username")
	flags.StringVarP(&opts.password, "password", "P", "", "password")
	flags.StringVarP(&opts.passwordEnv, "password-env", "E", "", "read password from this environment variable")
	flags.IntVarP(&opts.suite, "cipher-suite", "C", lanplus.DefaultCipherSuite, "cipher suite id")
	flags.StringVarP(&opts.privilege, "privilege", "L", "", "privilege level (user, operator, administrator)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "per-attempt timeout (default 1s)")
	flags.IntVarP(&opts.retries, "retries", "R", 0, "send attempts (default 4)")
	flags.BoolVar(&opts.ping, "ping", false, "send an ASF presence ping before the handshake")
	flags.Uint8VarP(&opts.targetAddr, "target", "t", 0, "bridge request to this IPMB address")
	flags.Uint8VarP(&opts.targetChan, "target-channel", "b", 0, "channel for bridged requests")
	flags.StringVar(&opts.namespace, "netns", "", "open the socket inside this network namespace")
	flags.StringVar(&opts.iface, "interface", "", "bind to the IPv4 address of this interface")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", "", "console or json")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	cmd.AddCommand(
		newPingCommand(&opts),
		newRawCommand(&opts),
		newShellCommand(&opts),
		newSolCommand(&opts),
	)
	return cmd
}

// loadConfig 读取配置文件 (如有), 命令行显式给出的参数优先
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg := &config.Config{}
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = opts.host
	}
	if flags.Changed("port") {
		cfg.Port = opts.port
	}
	if flags.Changed("user") {
		cfg.Username = opts.username
	}
	if flags.Changed("password") {
		cfg.Password = opts.password
	}
	if flags.Changed("password-env") {
		cfg.Password = ""
		cfg.PasswordEnv = opts.passwordEnv
	}
	if flags.Changed("cipher-suite") || cfg.CipherSuite == nil {
		suite := opts.suite
		cfg.CipherSuite = &suite
	}
	if flags.Changed("privilege") {
		cfg.Privilege = opts.privilege
	}
	if flags.Changed("timeout") {
		cfg.Timeout = config.Duration(opts.timeout)
	}
	if flags.Changed("retries") {
		cfg.Retries = opts.retries
	}
	if flags.Changed("ping") {
		cfg.Ping = opts.ping
	}
	if flags.Changed("target") {
		cfg.Bridge.TargetAddr = opts.targetAddr
	}
	if flags.Changed("target-channel") {
		cfg.Bridge.TargetChannel = opts.targetChan
	}
	if flags.Changed("netns") {
		cfg.Namespace = opts.namespace
	}
	if flags.Changed("interface") {
		cfg.Interface = opts.iface
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}

	if err := cfg.Complete(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSession 初始化日志与指标, 建立会话
func openSession(ctx context.Context, cmd *cobra.Command, opts *rootOptions) (*lanplus.Session, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}

	var collector *metrics.Collector
	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector = metrics.New(reg)
		serveMetrics(opts.metricsAddr, reg)
	}

	sc, err := cfg.Session(collector)
	if err != nil {
		return nil, err
	}
	return lanplus.Open(ctx, sc)
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("指标服务退出", logger.Err(err))
		}
	}()
	logger.Info("指标服务已启动", logger.String("addr", addr))
}
