package ipmi

import (
	"bytes"
	"testing"
)

func TestBuildPresencePing(t *testing.T) {
	got, err := BuildPresencePing(0x42)
	if err != nil {
		t.Fatalf("构造失败: %v", err)
	}
	want := []byte{0x06, 0x00, 0xFF, 0x06, 0x00, 0x00, 0x11, 0xBE, 0x80, 0x42, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestParsePresencePong(t *testing.T) {
	pong := []byte{
		0x06, 0x00, 0xFF, 0x06,
		0x00, 0x00, 0x11, 0xBE, 0x40, 0x42, 0x00, 0x10,
		0x00, 0x00, 0x11, 0xBE, 0x00, 0x00, 0x00, 0x00,
		0x81, 0xA0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	p, err := ParsePresencePong(pong)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if p.Tag != 0x42 || p.IANA != ASF_IANA || !p.IPMI || !p.SecurityExtensions {
		t.Fatalf("字段错误: %+v", p)
	}

	ping, _ := BuildPresencePing(1)
	if _, err := ParsePresencePong(ping); err == nil {
		t.Fatal("Presence Ping 不应被当作 Pong")
	}
}

func TestGUIDString(t *testing.T) {
	g, err := ParseGUID("01234567-89ab-cdef-0123-456789abcdef")
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if g[0] != 0x01 || g[15] != 0xEF {
		t.Fatalf("字节错误: %x", g[:])
	}
	if g.String() != "01234567-89ab-cdef-0123-456789abcdef" {
		t.Fatalf("String got %s", g)
	}
}
