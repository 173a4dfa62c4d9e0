package crypto

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"errors"
	"hash"
)

// IntegrityAlgorithm 完整性算法接口
type IntegrityAlgorithm interface {
	// Compute 计算 AuthCode
	Compute(key, data []byte) []byte
	// Verify 验证 AuthCode
	Verify(key, data, expectedMAC []byte) bool
	// Output 长度
	OutputSize() int
	// UsesPassword 为 true 时密钥是用户口令而不是 K1
	UsesPassword() bool
}

// truncatedHMAC 截断的 HMAC: HMAC-SHA1-96, HMAC-MD5-128, HMAC-SHA256-128
type truncatedHMAC struct {
	newHash func() hash.Hash
	size    int
}

func (h *truncatedHMAC) Compute(key, data []byte) []byte {
	return ComputeHMAC(h.newHash, key, data)[:h.size]
}

func (h *truncatedHMAC) Verify(key, data, expectedMAC []byte) bool {
	if len(expectedMAC) != h.size {
		return false
	}
	return hmac.Equal(h.Compute(key, data), expectedMAC)
}

func (h *truncatedHMAC) OutputSize() int    { return h.size }
func (h *truncatedHMAC) UsesPassword() bool { return false }

// md5_128 MD5(口令 | 数据 | 口令), 口令填充到 20 字节
type md5_128 struct{}

func (m *md5_128) Compute(key, data []byte) []byte {
	h := md5.New()
	h.Write(key)
	h.Write(data)
	h.Write(key)
	return h.Sum(nil)
}

func (m *md5_128) Verify(key, data, expectedMAC []byte) bool {
	return hmac.Equal(m.Compute(key, data), expectedMAC)
}

func (m *md5_128) OutputSize() int    { return md5.Size }
func (m *md5_128) UsesPassword() bool { return true }

// 空完整性算法
type nullIntegrity struct{}

func (h *nullIntegrity) Compute(key, data []byte) []byte   { return nil }
func (h *nullIntegrity) Verify(key, data, mac []byte) bool { return true }
func (h *nullIntegrity) OutputSize() int                   { return 0 }
func (h *nullIntegrity) UsesPassword() bool                { return false }

// GetIntegrityAlgorithm 根据 Open Session 中的完整性算法编号获取实现
func GetIntegrityAlgorithm(id uint8) (IntegrityAlgorithm, error) {
	switch id {
	case 0:
		return &nullIntegrity{}, nil
	case 1: // HMAC-SHA1-96
		return &truncatedHMAC{newHash: sha1.New, size: 12}, nil
	case 2: // HMAC-MD5-128
		return &truncatedHMAC{newHash: md5.New, size: 16}, nil
	case 3: // MD5-128
		return &md5_128{}, nil
	case 4: // HMAC-SHA256-128
		return &truncatedHMAC{newHash: sha256.New, size: 16}, nil
	default:
		return nil, errors.New("不支持的完整性算法")
	}
}

// ComputeHMAC 通用 HMAC 计算函数
func ComputeHMAC(hashFunc func() hash.Hash, key, data []byte) []byte {
	h := hmac.New(hashFunc, key)
	h.Write(data)
	return h.Sum(nil)
}
