package lanplus

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iniwex5/lanplus-go/pkg/crypto"
	"github.com/iniwex5/lanplus-go/pkg/ipmi"
)

// keyVector 固定输入下的期望密钥与认证码 (十六进制):
// 口令 "password", 用户 "admin", 角色 Administrator, SIDm 0x11223344, SIDc 0x0A0B0C0D,
// Rm = 00..0f, Rc = 50..5f, GUIDc = a0..af
type keyVector struct {
	sik, k1, k2         string
	rakp2, rakp3, rakp4 string
}

var keyVectors = map[int]keyVector{
	3: {
		sik:   "65995589cf8984552cf2d26ddd7baefe45166457",
		k1:    "3ca3e19fbc7288c35e1127ab5c7f999136e2a86a",
		k2:    "f35620cd87650d231624b04049ae1928c55620f3",
		rakp2: "308b359f6c7a47719ddfde00fe926a40f342d905",
		rakp3: "e6e077898efb6ffdf244c49f9f80b238079b73ee",
		rakp4: "2129017dc18e2d57b765acac",
	},
	8: {
		sik:   "2e209908f1bdeb9b64b8ad3deed20af7",
		k1:    "bf3b9fa533851f66c25f42aee47c4ec2",
		k2:    "22a278c086b18c8b0e02fde4bcd02158",
		rakp2: "7ba7a3fb0897abca72e9e958387d105b",
		rakp3: "66ccc1aa8a7f9b17b785e63c3e30323e",
		rakp4: "f9694fb1cf1e42a19fcc478bd8f67f5c",
	},
}

func unhex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// keySession 使用固定随机数与 GUID 构造处于 Rakp2Received 的会话
func keySession(t *testing.T, suite int, kg []byte) *Session {
	t.Helper()
	cfg := DefaultConfig("bmc.example", "admin", "password")
	cfg.CipherSuite = suite
	cfg.Kg = kg
	s := newTestSession(t, cfg)

	cs, err := ipmi.ResolveCipherSuite(suite)
	require.NoError(t, err)
	s.suite = cs
	s.authAlg, err = crypto.GetAuthAlgorithm(uint8(cs.Auth))
	require.NoError(t, err)

	s.ConsoleID = 0x11223344
	s.BMCID = 0x0A0B0C0D
	s.role = uint8(ipmi.PrivilegeAdmin)
	for i := 0; i < ipmi.RandomLen; i++ {
		s.consoleRand[i] = byte(i)
		s.bmcRand[i] = 0x50 + byte(i)
		s.bmcGUID[i] = 0xA0 + byte(i)
	}
	return s
}

func checkKeyVector(t *testing.T, suite int, v keyVector) {
	t.Helper()
	s := keySession(t, suite, nil)
	require.Equal(t, unhex(t, v.rakp2), s.rakp2AuthCode(), "RAKP2 认证码")
	require.NoError(t, s.generateSessionKeys())
	require.Equal(t, unhex(t, v.sik), s.sik, "SIK")
	require.Equal(t, unhex(t, v.k1), s.k1, "K1")
	require.Equal(t, unhex(t, v.k2), s.k2, "K2")
	require.Equal(t, unhex(t, v.rakp3), s.rakp3AuthCode(), "RAKP3 认证码")
	require.Equal(t, unhex(t, v.rakp4), s.rakp4ICV(), "RAKP4 ICV")

	// 重复计算结果不变
	require.NoError(t, s.generateSessionKeys())
	require.Equal(t, unhex(t, v.k2), s.k2)
}

func TestSessionKeysSHA1(t *testing.T) {
	checkKeyVector(t, 3, keyVectors[3])
}

func TestSessionKeysMD5(t *testing.T) {
	checkKeyVector(t, 8, keyVectors[8])
}

func TestSessionKeysKg(t *testing.T) {
	s := keySession(t, 3, []byte("bmc-key"))
	require.NoError(t, s.generateSessionKeys())
	require.Equal(t, unhex(t, "7238bc6e569e88fb14c6ae22cf37612acf2d46c5"), s.sik)
	require.Equal(t, unhex(t, "5e570f2b819a5fc91e7ea51f0516ff36ab8a4378"), s.k1)

	// RAKP2/RAKP3 认证码仍以口令为密钥
	require.Equal(t, unhex(t, keyVectors[3].rakp3), s.rakp3AuthCode())
}

func TestSessionKeysNone(t *testing.T) {
	s := keySession(t, 0, nil)
	require.NoError(t, s.generateSessionKeys())
	require.Nil(t, s.sik)
	require.Nil(t, s.k1)
	require.Nil(t, s.k2)
	require.Empty(t, s.rakp2AuthCode())
}

func TestNameOnlyLookupRole(t *testing.T) {
	s := keySession(t, 3, nil)
	s.role |= ipmi.RoleNameOnlyLookup
	require.Equal(t, []byte{0x14, 5, 'a', 'd', 'm', 'i', 'n'}, s.roleAndName())
}
