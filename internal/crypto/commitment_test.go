package crypto

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeAccountLinesHashEncoding(t *testing.T) {
	// The commitment is SHA256 over length-prefixed fields, name first.
	name := "Zhang San"
	id := "zhang@example.com"
	manual := append([]byte{byte(len(name))}, name...)
	manual = append(manual, byte(len(id)))
	manual = append(manual, id...)

	require.Equal(t, sha256.Sum256(manual), ComputeAccountLinesHash(name, id))
}

func TestComputeAccountLinesHashFieldOrderMatters(t *testing.T) {
	a := ComputeAccountLinesHash("alice", "bob")
	b := ComputeAccountLinesHash("bob", "alice")
	require.NotEqual(t, a, b)

	// Length prefixes keep the field boundary unambiguous: "ab"+"c" must not
	// collide with "a"+"bc".
	require.NotEqual(t,
		ComputeAccountLinesHash("ab", "c"),
		ComputeAccountLinesHash("a", "bc"))
}

func TestHashHexRoundTrip(t *testing.T) {
	var h [32]byte
	h[0] = 0xde
	h[1] = 0xad
	h[31] = 0x01

	s := HashHex(h)
	require.Equal(t, "0xdead", s[:6])
	require.Len(t, s, 66)

	parsed, err := ParseHash32(s)
	require.NoError(t, err)
	require.Equal(t, h, parsed)
}

func TestParseHash32AcceptsBareHex(t *testing.T) {
	h := ComputeAccountLinesHash("a", "b")
	parsed, err := ParseHash32(HashHex(h)[2:])
	require.NoError(t, err)
	require.Equal(t, h, parsed)
}

func TestParseHash32Rejects(t *testing.T) {
	cases := []string{
		"",
		"0x",
		"0xzz",
		"0x1234",
		"0x" + "11223344556677889900112233445566778899001122334455667788990011", // 31 bytes
	}
	for _, s := range cases {
		_, err := ParseHash32(s)
		require.Error(t, err, "ParseHash32(%q)", s)
	}
}

func TestIsZeroHash(t *testing.T) {
	require.True(t, IsZeroHash([32]byte{}))
	require.False(t, IsZeroHash(ComputeAccountLinesHash("", "")))

	var one [32]byte
	one[31] = 1
	require.False(t, IsZeroHash(one))
}
