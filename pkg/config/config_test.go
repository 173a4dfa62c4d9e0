package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iniwex5/lanplus-go/pkg/ipmi"
	"github.com/iniwex5/lanplus-go/pkg/lanplus"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("host: 10.0.0.5\nusername: admin\npassword: secret\n"))
	require.NoError(t, err)
	require.Equal(t, ipmi.DefaultPort, cfg.Port)
	require.Equal(t, lanplus.DefaultCipherSuite, *cfg.CipherSuite)
	require.Equal(t, "administrator", cfg.Privilege)
	require.Equal(t, Duration(lanplus.DefaultTimeout), cfg.Timeout)
	require.Equal(t, lanplus.DefaultRetries, cfg.Retries)
	require.Equal(t, uint8(ipmi.BMC_SA), cfg.Bridge.MyAddr)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestParseExplicitSuiteZero(t *testing.T) {
	cfg, err := Parse([]byte("host: bmc\ncipher_suite: 0\n"))
	require.NoError(t, err)
	require.Equal(t, 0, *cfg.CipherSuite)
}

func TestParseFull(t *testing.T) {
	data := []byte(`
host: bmc.example
port: 6230
username: operator
password_env: LANPLUS_TEST_PASSWORD
kg: "0102030405"
cipher_suite: 8
privilege: operator
name_only_lookup: true
timeout: 2s
timeout_step: 500ms
retries: 6
bridge:
  target_addr: 0x72
  target_channel: 7
quirks:
  bridge_invalid_data: true
namespace: mgmt
log:
  level: debug
  format: json
`)
	t.Setenv("LANPLUS_TEST_PASSWORD", "from-env")
	cfg, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Password)
	require.Equal(t, Duration(2*time.Second), cfg.Timeout)
	require.Equal(t, Duration(500*time.Millisecond), cfg.TimeoutStep)

	sc, err := cfg.Session(nil)
	require.NoError(t, err)
	require.Equal(t, 6230, sc.Port)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, sc.Kg)
	require.Equal(t, 8, sc.CipherSuite)
	require.Equal(t, 2*time.Second, sc.Timeout)
	require.Equal(t, ipmi.PrivilegeOperator, sc.Privilege)
	require.True(t, sc.NameOnlyLookup)
	require.Equal(t, uint8(0x72), sc.TargetAddr)
	require.Equal(t, uint8(7), sc.TargetChannel)
	require.True(t, sc.Quirks.BridgeInvalidData)
	require.Equal(t, "mgmt", sc.Namespace)
	require.NoError(t, sc.Validate())
}

func TestValidateErrors(t *testing.T) {
	tests := map[string]string{
		"no host":      "username: admin\n",
		"bad suite":    "host: bmc\ncipher_suite: 42\n",
		"bad priv":     "host: bmc\nprivilege: root\n",
		"long user":    "host: bmc\nusername: abcdefghijklmnopq\n",
		"long pass":    "host: bmc\npassword: abcdefghijklmnopqrstu\n",
		"bad kg":       "host: bmc\nkg: zz\n",
		"bad port":     "host: bmc\nport: 70000\n",
		"neg retries":  "host: bmc\nretries: -1\n",
		"invalid yaml": "host: [bmc\n",
	}
	for name, data := range tests {
		_, err := Parse([]byte(data))
		require.Error(t, err, name)
	}
}

func TestLoadSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bmc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: bmc\nusername: admin\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Retries = 9
	cfg.Timeout = Duration(3 * time.Second)
	out := filepath.Join(dir, "out.yaml")
	require.NoError(t, Save(out, cfg))

	back, err := Load(out)
	require.NoError(t, err)
	require.Equal(t, 9, back.Retries)
	require.Equal(t, cfg.Host, back.Host)
	require.Equal(t, Duration(3*time.Second), back.Timeout)
	require.Equal(t, lanplus.DefaultCipherSuite, *back.CipherSuite)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
