package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestInitWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter("debug", "json", &buf); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}
	defer func() { _ = InitWithWriter("info", "console", &bytes.Buffer{}) }()

	ForBMC("10.0.0.1:623").Debug("报文已发送", Hex("raw", []byte{0x06, 0x00}))
	out := buf.String()
	if !strings.Contains(out, `"bmc":"10.0.0.1:623"`) {
		t.Errorf("缺少 bmc 字段: %s", out)
	}
	if !strings.Contains(out, `"raw":"0600"`) {
		t.Errorf("缺少十六进制字段: %s", out)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter("warn", "json", &buf); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}
	defer func() { _ = InitWithWriter("info", "console", &bytes.Buffer{}) }()

	Info("不应输出")
	if buf.Len() != 0 {
		t.Fatalf("warn 级别下 info 不应输出: %s", buf.String())
	}
	if err := SetLevel("bogus"); err == nil {
		t.Fatal("非法级别应返回错误")
	}
}
