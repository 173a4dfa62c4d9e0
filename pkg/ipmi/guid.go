package ipmi

import "github.com/google/uuid"

// GUID RAKP2 中 BMC 的 16 字节 GUID, 参与密钥交换认证码计算时按线上字节使用
type GUID [16]byte

// UUID 按线上字节顺序转换
func (g GUID) UUID() uuid.UUID {
	return uuid.UUID(g)
}

func (g GUID) String() string {
	return g.UUID().String()
}

// ParseGUID 解析 UUID 文本形式的 GUID
func ParseGUID(s string) (GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return GUID{}, err
	}
	return GUID(u), nil
}
