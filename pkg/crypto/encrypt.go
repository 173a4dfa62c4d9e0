package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"encoding/binary"
	"errors"
	"io"
)

// 加密接口, 输出包含算法自身的前导字段 (IV / 数据偏移)
type Encrypter interface {
	Encrypt(plaintext []byte, key []byte) ([]byte, error)
	Decrypt(ciphertext []byte, key []byte) ([]byte, error)
	KeySize() int // 从 K2 中取用的密钥长度
}

// randReader 测试中可替换
var randReader io.Reader = rand.Reader

// AES-CBC-128: IV | CBC(数据 | 1,2,3..n | n)
type aesCBC struct{}

func (e *aesCBC) KeySize() int { return 16 }

func (e *aesCBC) Encrypt(plaintext []byte, key []byte) ([]byte, error) {
	if len(key) < 16 {
		return nil, errors.New("AES 密钥太短")
	}
	block, err := aes.NewCipher(key[:16])
	if err != nil {
		return nil, err
	}

	padLen := (aes.BlockSize - (len(plaintext)+1)%aes.BlockSize) % aes.BlockSize
	buf := make([]byte, 0, len(plaintext)+padLen+1)
	buf = append(buf, plaintext...)
	for i := 1; i <= padLen; i++ {
		buf = append(buf, byte(i))
	}
	buf = append(buf, byte(padLen))

	out := make([]byte, aes.BlockSize+len(buf))
	if _, err := io.ReadFull(randReader, out[:aes.BlockSize]); err != nil {
		return nil, err
	}
	mode := cipher.NewCBCEncrypter(block, out[:aes.BlockSize])
	mode.CryptBlocks(out[aes.BlockSize:], buf)
	return out, nil
}

func (e *aesCBC) Decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	if len(key) < 16 {
		return nil, errors.New("AES 密钥太短")
	}
	if len(ciphertext) < 2*aes.BlockSize || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("密文未对齐块")
	}
	block, err := aes.NewCipher(key[:16])
	if err != nil {
		return nil, err
	}

	iv := ciphertext[:aes.BlockSize]
	plaintext := make([]byte, len(ciphertext)-aes.BlockSize)
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plaintext, ciphertext[aes.BlockSize:])

	padLen := int(plaintext[len(plaintext)-1])
	if padLen >= aes.BlockSize || padLen+1 > len(plaintext) {
		return nil, errors.New("无效的 AES 填充长度")
	}
	end := len(plaintext) - 1 - padLen
	for i := 0; i < padLen; i++ {
		if plaintext[end+i] != byte(i+1) {
			return nil, errors.New("无效的 AES 填充内容")
		}
	}
	return plaintext[:end], nil
}

// xRC4: 数据偏移(4, 小端) | IV(16, 仅偏移为 0 时) | RC4(数据)
// 每个报文都以偏移 0 和新的 IV 重新建立密钥流
type xRC4 struct {
	keyLen int // 16 (128 位) 或 5 (40 位)
}

const xrc4IVSize = 16

func (e *xRC4) KeySize() int { return 16 }

func (e *xRC4) streamKey(k2, iv []byte) []byte {
	h := md5.New()
	h.Write(k2[:16])
	h.Write(iv)
	return h.Sum(nil)[:e.keyLen]
}

func (e *xRC4) Encrypt(plaintext []byte, key []byte) ([]byte, error) {
	if len(key) < 16 {
		return nil, errors.New("RC4 密钥太短")
	}
	out := make([]byte, 4+xrc4IVSize+len(plaintext))
	binary.LittleEndian.PutUint32(out[:4], 0)
	iv := out[4 : 4+xrc4IVSize]
	if _, err := io.ReadFull(randReader, iv); err != nil {
		return nil, err
	}
	c, err := rc4.NewCipher(e.streamKey(key, iv))
	if err != nil {
		return nil, err
	}
	c.XORKeyStream(out[4+xrc4IVSize:], plaintext)
	return out, nil
}

func (e *xRC4) Decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	if len(key) < 16 {
		return nil, errors.New("RC4 密钥太短")
	}
	if len(ciphertext) < 4+xrc4IVSize {
		return nil, errors.New("RC4 密文太短")
	}
	if binary.LittleEndian.Uint32(ciphertext[:4]) != 0 {
		return nil, errors.New("不支持非零的 RC4 数据偏移")
	}
	iv := ciphertext[4 : 4+xrc4IVSize]
	c, err := rc4.NewCipher(e.streamKey(key, iv))
	if err != nil {
		return nil, err
	}
	plaintext := make([]byte, len(ciphertext)-4-xrc4IVSize)
	c.XORKeyStream(plaintext, ciphertext[4+xrc4IVSize:])
	return plaintext, nil
}

// 空加密
type nullCipher struct{}

func (nullCipher) KeySize() int                                 { return 0 }
func (nullCipher) Encrypt(p []byte, key []byte) ([]byte, error) { return p, nil }
func (nullCipher) Decrypt(c []byte, key []byte) ([]byte, error) { return c, nil }

// GetEncrypter 根据 Open Session 中的加密算法编号获取实现
func GetEncrypter(id uint8) (Encrypter, error) {
	switch id {
	case 0:
		return nullCipher{}, nil
	case 1: // AES-CBC-128
		return &aesCBC{}, nil
	case 2: // xRC4-128
		return &xRC4{keyLen: 16}, nil
	case 3: // xRC4-40
		return &xRC4{keyLen: 5}, nil
	default:
		return nil, errors.New("不支持的加密算法")
	}
}

// 随机数生成
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := io.ReadFull(randReader, b)
	return b, err
}
