package crypto

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"errors"
	"hash"
)

// AuthAlgorithm RAKP 认证算法接口 (密钥交换与会话密钥派生所用的带密钥哈希)
type AuthAlgorithm interface {
	Hash() hash.Hash
	// KeyLen HMAC 输出长度, 即 RAKP2/RAKP3 认证码与 SIK 的长度
	KeyLen() int
	// ICVLen RAKP4 完整性校验值长度
	ICVLen() int
}

type hmacAuth struct {
	newHash func() hash.Hash
	keyLen  int
	icvLen  int
}

func (h *hmacAuth) Hash() hash.Hash {
	return h.newHash()
}

func (h *hmacAuth) KeyLen() int {
	return h.keyLen
}

func (h *hmacAuth) ICVLen() int {
	return h.icvLen
}

// 空认证 (密码套件 0): 不产生任何认证码
type nullAuth struct{}

func (nullAuth) Hash() hash.Hash { return nil }
func (nullAuth) KeyLen() int     { return 0 }
func (nullAuth) ICVLen() int     { return 0 }

var (
	RAKP_NONE        AuthAlgorithm = nullAuth{}
	RAKP_HMAC_SHA1   AuthAlgorithm = &hmacAuth{newHash: sha1.New, keyLen: 20, icvLen: 12}
	RAKP_HMAC_MD5    AuthAlgorithm = &hmacAuth{newHash: md5.New, keyLen: 16, icvLen: 16}
	RAKP_HMAC_SHA256 AuthAlgorithm = &hmacAuth{newHash: sha256.New, keyLen: 32, icvLen: 16}
)

// GetAuthAlgorithm 根据 Open Session 中的认证算法编号获取实现
func GetAuthAlgorithm(id uint8) (AuthAlgorithm, error) {
	switch id {
	case 0:
		return RAKP_NONE, nil
	case 1:
		return RAKP_HMAC_SHA1, nil
	case 2:
		return RAKP_HMAC_MD5, nil
	case 3:
		return RAKP_HMAC_SHA256, nil
	default:
		return nil, errors.New("不支持的 RAKP 认证算法")
	}
}

// Keyed 使用认证算法对多段数据计算 HMAC, 空认证返回 nil
func Keyed(alg AuthAlgorithm, key []byte, parts ...[]byte) []byte {
	if alg.KeyLen() == 0 {
		return nil
	}
	h := hmac.New(alg.Hash, key)
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// PadKey 将口令或 Kg 以零填充到固定长度, 超长部分截断
func PadKey(secret []byte, size int) []byte {
	out := make([]byte, size)
	copy(out, secret)
	return out
}
