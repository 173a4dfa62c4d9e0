package logger

import (
	"encoding/hex"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	globalLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	mu           sync.Mutex
)

// levelColor 控制台等级颜色
var levelColor = map[zapcore.Level]string{
	zapcore.DebugLevel:  "\x1b[35m",
	zapcore.InfoLevel:   "\x1b[34m",
	zapcore.WarnLevel:   "\x1b[33m",
	zapcore.ErrorLevel:  "\x1b[31m",
	zapcore.DPanicLevel: "\x1b[31;1m",
	zapcore.PanicLevel:  "\x1b[31;1m",
	zapcore.FatalLevel:  "\x1b[31;1m",
}

// fixedWidthColorLevelEncoder 固定宽度（5字符）的彩色日志等级编码器
func fixedWidthColorLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	s := level.CapitalString()
	if len(s) < 5 {
		s += strings.Repeat(" ", 5-len(s))
	}
	if c, ok := levelColor[level]; ok {
		s = c + s + "\x1b[0m"
	}
	enc.AppendString(s)
}

// Init 初始化全局日志器, 日志写到 stderr (stdout 留给 SOL 终端数据)
// level: debug, info, warn, error
// format: json, console
func Init(level, format string) error {
	return InitWithWriter(level, format, os.Stderr)
}

// InitWithWriter 使用指定输出初始化全局日志器, 可重复调用
func InitWithWriter(level, format string, w io.Writer) error {
	if err := SetLevel(level); err != nil {
		return err
	}

	var encoder zapcore.Encoder
	if format == "json" {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "time"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.TimeKey = "time"
		cfg.EncodeLevel = fixedWidthColorLevelEncoder
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("[2006-01-02 15:04:05]")
		cfg.EncodeCaller = func(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
			const width = 24
			s := caller.TrimmedPath()
			if len(s) < width {
				s += strings.Repeat(" ", width-len(s))
			}
			enc.AppendString(s)
		}
		cfg.ConsoleSeparator = " "
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), globalLevel)

	mu.Lock()
	globalLogger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	mu.Unlock()
	return nil
}

// SetLevel 运行时调整日志级别, 空字符串视为 info
func SetLevel(level string) error {
	if level == "" {
		level = "info"
	}
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	globalLevel.SetLevel(l)
	return nil
}

// Get 获取全局 Logger
func Get() *zap.Logger {
	mu.Lock()
	l := globalLogger
	mu.Unlock()
	if l == nil {
		_ = Init("info", "console")
		mu.Lock()
		l = globalLogger
		mu.Unlock()
	}
	return l
}

// Sugar 获取 SugaredLogger
func Sugar() *zap.SugaredLogger {
	return Get().Sugar()
}

// Sync 刷新日志缓冲
func Sync() {
	l := Get()
	done := make(chan struct{})
	go func() {
		_ = l.Sync()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
	}
}

// ForBMC 创建绑定 BMC 地址的会话 Logger
func ForBMC(addr string) *zap.Logger {
	return Get().Named("lanplus").With(zap.String("bmc", addr))
}

// 便捷方法

// Debug 记录调试信息
func Debug(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

// Info 记录信息
func Info(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

// Warn 记录警告
func Warn(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

// Error 记录错误
func Error(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

// Fatal 记录致命错误并退出
func Fatal(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Fatal(msg, fields...)
}

// Hex 以十六进制输出报文字节
func Hex(key string, b []byte) zap.Field {
	return zap.String(key, hex.EncodeToString(b))
}

// 便捷字段函数 (从 zap 导出)
var (
	String   = zap.String
	Int      = zap.Int
	Uint8    = zap.Uint8
	Uint16   = zap.Uint16
	Uint32   = zap.Uint32
	Bool     = zap.Bool
	Duration = zap.Duration
	Err      = zap.Error
	Any      = zap.Any
	Stringer = zap.Stringer
)
