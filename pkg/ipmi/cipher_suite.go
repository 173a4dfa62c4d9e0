package ipmi

import "fmt"

// 认证算法 (RAKP)
type AuthAlgorithm uint8

const (
	RAKP_NONE        AuthAlgorithm = 0x00
	RAKP_HMAC_SHA1   AuthAlgorithm = 0x01
	RAKP_HMAC_MD5    AuthAlgorithm = 0x02
	RAKP_HMAC_SHA256 AuthAlgorithm = 0x03
)

// 完整性算法
type IntegrityAlgorithm uint8

const (
	INTEG_NONE            IntegrityAlgorithm = 0x00
	INTEG_HMAC_SHA1_96    IntegrityAlgorithm = 0x01
	INTEG_HMAC_MD5_128    IntegrityAlgorithm = 0x02
	INTEG_MD5_128         IntegrityAlgorithm = 0x03
	INTEG_HMAC_SHA256_128 IntegrityAlgorithm = 0x04
)

// 机密性算法
type CryptAlgorithm uint8

const (
	CRYPT_NONE        CryptAlgorithm = 0x00
	CRYPT_AES_CBC_128 CryptAlgorithm = 0x01
	CRYPT_XRC4_128    CryptAlgorithm = 0x02
	CRYPT_XRC4_40     CryptAlgorithm = 0x03
)

// CipherSuite 认证 / 完整性 / 机密性算法三元组
type CipherSuite struct {
	Auth      AuthAlgorithm
	Integrity IntegrityAlgorithm
	Crypt     CryptAlgorithm
}

func (c CipherSuite) String() string {
	return fmt.Sprintf("auth=%d integ=%d crypt=%d", c.Auth, c.Integrity, c.Crypt)
}

// IPMI v2.0 表 22-20 中的标准套件 0-14
var cipherSuites = [...]CipherSuite{
	0:  {RAKP_NONE, INTEG_NONE, CRYPT_NONE},
	1:  {RAKP_HMAC_SHA1, INTEG_NONE, CRYPT_NONE},
	2:  {RAKP_HMAC_SHA1, INTEG_HMAC_SHA1_96, CRYPT_NONE},
	3:  {RAKP_HMAC_SHA1, INTEG_HMAC_SHA1_96, CRYPT_AES_CBC_128},
	4:  {RAKP_HMAC_SHA1, INTEG_HMAC_SHA1_96, CRYPT_XRC4_128},
	5:  {RAKP_HMAC_SHA1, INTEG_HMAC_SHA1_96, CRYPT_XRC4_40},
	6:  {RAKP_HMAC_MD5, INTEG_NONE, CRYPT_NONE},
	7:  {RAKP_HMAC_MD5, INTEG_HMAC_MD5_128, CRYPT_NONE},
	8:  {RAKP_HMAC_MD5, INTEG_HMAC_MD5_128, CRYPT_AES_CBC_128},
	9:  {RAKP_HMAC_MD5, INTEG_HMAC_MD5_128, CRYPT_XRC4_128},
	10: {RAKP_HMAC_MD5, INTEG_HMAC_MD5_128, CRYPT_XRC4_40},
	11: {RAKP_HMAC_MD5, INTEG_MD5_128, CRYPT_NONE},
	12: {RAKP_HMAC_MD5, INTEG_MD5_128, CRYPT_AES_CBC_128},
	13: {RAKP_HMAC_MD5, INTEG_MD5_128, CRYPT_XRC4_128},
	14: {RAKP_HMAC_MD5, INTEG_MD5_128, CRYPT_XRC4_40},
}

// SHA-256 套件 15-17, 由构建标签 nosha256 关闭
var sha256Suites = [...]CipherSuite{
	{RAKP_HMAC_SHA256, INTEG_NONE, CRYPT_NONE},
	{RAKP_HMAC_SHA256, INTEG_HMAC_SHA256_128, CRYPT_NONE},
	{RAKP_HMAC_SHA256, INTEG_HMAC_SHA256_128, CRYPT_AES_CBC_128},
}

// MaxCipherSuiteID 当前构建支持的最大套件编号
func MaxCipherSuiteID() int {
	if sha256Supported {
		return len(cipherSuites) + len(sha256Suites) - 1
	}
	return len(cipherSuites) - 1
}

// ResolveCipherSuite 将套件编号映射为算法三元组
func ResolveCipherSuite(id int) (CipherSuite, error) {
	switch {
	case id >= 0 && id < len(cipherSuites):
		return cipherSuites[id], nil
	case sha256Supported && id >= len(cipherSuites) && id < len(cipherSuites)+len(sha256Suites):
		return sha256Suites[id-len(cipherSuites)], nil
	}
	return CipherSuite{}, fmt.Errorf("%w: %d", ErrUnsupportedCipherSuite, id)
}

// AuthCodeLen RAKP2 中 BMC 认证码的长度
func (a AuthAlgorithm) AuthCodeLen() int {
	switch a {
	case RAKP_HMAC_SHA1:
		return 20
	case RAKP_HMAC_MD5:
		return 16
	case RAKP_HMAC_SHA256:
		return 32
	}
	return 0
}

// AuthCodeLen 会话尾部 AuthCode 的长度
func (i IntegrityAlgorithm) AuthCodeLen() int {
	switch i {
	case INTEG_HMAC_SHA1_96:
		return 12
	case INTEG_HMAC_MD5_128, INTEG_MD5_128, INTEG_HMAC_SHA256_128:
		return 16
	}
	return 0
}
