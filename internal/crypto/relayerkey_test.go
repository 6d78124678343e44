package crypto

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

func TestKeyfileRoundTrip(t *testing.T) {
	data, err := EncryptRelayerKey("0x"+testKeyHex, "hunter2")
	require.NoError(t, err)
	require.NotContains(t, string(data), testKeyHex)

	recovered, err := DecryptRelayerKey(data, "hunter2")
	require.NoError(t, err)
	require.Equal(t, testKeyHex, recovered)
}

func TestKeyfileWrongPassword(t *testing.T) {
	data, err := EncryptRelayerKey(testKeyHex, "correct")
	require.NoError(t, err)

	_, err = DecryptRelayerKey(data, "wrong")
	require.Error(t, err)
}

func TestEncryptRelayerKeyRejectsBadInput(t *testing.T) {
	_, err := EncryptRelayerKey(testKeyHex, "")
	require.Error(t, err)

	_, err = EncryptRelayerKey("0x1234", "pw")
	require.Error(t, err)

	_, err = EncryptRelayerKey("not-hex", "pw")
	require.Error(t, err)
}

func TestLoadRelayerKeyFromRawHex(t *testing.T) {
	for _, raw := range []string{testKeyHex, "0x" + testKeyHex} {
		key, err := LoadRelayerKey(RelayerKeySource{RawHex: raw})
		require.NoError(t, err)
		require.Equal(t, testKeyHex, hex.EncodeToString(ethcrypto.FromECDSA(key)))
	}
}

func TestLoadRelayerKeyFromKeyfile(t *testing.T) {
	data, err := EncryptRelayerKey(testKeyHex, "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "relayer.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	key, err := LoadRelayerKey(RelayerKeySource{KeyfilePath: path, KeyfilePassword: "pw"})
	require.NoError(t, err)

	fromRaw, err := LoadRelayerKey(RelayerKeySource{RawHex: testKeyHex})
	require.NoError(t, err)
	require.Equal(t, ethcrypto.PubkeyToAddress(fromRaw.PublicKey), ethcrypto.PubkeyToAddress(key.PublicKey))
}

func TestLoadRelayerKeyNoSource(t *testing.T) {
	_, err := LoadRelayerKey(RelayerKeySource{})
	require.Error(t, err)
}
