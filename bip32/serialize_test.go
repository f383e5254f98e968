package bip32

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	mrbase58 "github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

func testWalletKey(t *testing.T) *ExtendedKey {
	t.Helper()

	seed := sha256.Sum256([]byte("serialize"))
	master, err := NewMaster(seed[:], VersionMainNetPrivate)
	require.NoError(t, err)

	key, err := master.DerivePath(WalletPath)
	require.NoError(t, err)

	return key
}

func TestSerializeLayout(t *testing.T) {
	key := testWalletKey(t)
	record := key.Serialize()

	require.Len(t, record, SerializedKeyLen)
	require.Equal(t, 78, SerializedKeyLen)
	require.Equal(t, 82, PayloadLen)

	require.Equal(
		t, uint32(VersionMainNetPrivate),
		binary.BigEndian.Uint32(record[0:4]),
	)
	require.Equal(t, key.Depth(), record[4])
	require.Equal(
		t, key.ParentFingerprint(), binary.BigEndian.Uint32(record[5:9]),
	)
	require.Equal(
		t, key.ChildIndex(), binary.BigEndian.Uint32(record[9:13]),
	)
	require.Equal(t, key.ChainCode(), record[13:45])
	require.Equal(t, byte(0x00), record[45])
	require.Equal(t, key.ECPrivKey().Serialize(), record[46:])
}

func TestBase58CheckRoundTrip(t *testing.T) {
	key := testWalletKey(t)
	record := key.Serialize()

	text, err := EncodeBase58Check(record[:])
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(text, "xprv"))
	require.Equal(t, key.String(), text)

	// Decode with an unrelated base58 implementation to check the raw
	// payload layout.
	payload, err := mrbase58.Decode(text)
	require.NoError(t, err)
	require.Len(t, payload, PayloadLen)
	require.Equal(t, record[:], payload[:SerializedKeyLen])
	require.Equal(
		t, chainhash.DoubleHashB(record[:])[:ChecksumLen],
		payload[SerializedKeyLen:],
	)

	decoded, err := DecodeBase58Check(text)
	require.NoError(t, err)
	require.Equal(t, record, decoded)

	parsed, err := ParseRecord(decoded)
	require.NoError(t, err)
	require.Equal(t, key, parsed)

	parsed, err = NewKeyFromString(text)
	require.NoError(t, err)
	require.Equal(t, key.PubKeyBytes(), parsed.PubKeyBytes())

	// btcd must accept our encoding as well.
	refKey, err := hdkeychain.NewKeyFromString(text)
	require.NoError(t, err)
	require.True(t, refKey.IsPrivate())
	require.Equal(t, key.ChainCode(), refKey.ChainCode())
	require.Equal(t, text, refKey.String())
}

func TestEncodeBase58CheckWrongLength(t *testing.T) {
	_, err := EncodeBase58Check(make([]byte, SerializedKeyLen-1))
	require.ErrorIs(t, err, ErrEncoding)

	_, err = EncodeBase58Check(make([]byte, PayloadLen))
	require.ErrorIs(t, err, ErrEncoding)
}

func TestDecodeBase58CheckErrors(t *testing.T) {
	_, err := DecodeBase58Check("")
	require.ErrorIs(t, err, ErrInvalidKeyLen)

	_, err = DecodeBase58Check(
		"xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2g",
	)
	require.ErrorIs(t, err, ErrInvalidKeyLen)

	key := testWalletKey(t)
	record := key.Serialize()
	sum := checksum(record[:])
	record[20] ^= 0x01
	payload := append(record[:], sum...)
	_, err = DecodeBase58Check(mrbase58.Encode(payload))
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestParseRecordErrors(t *testing.T) {
	seed, err := hex.DecodeString(testVec1Seed)
	require.NoError(t, err)
	master, err := NewMaster(seed, VersionMainNetPrivate)
	require.NoError(t, err)

	record := master.Serialize()
	binary.BigEndian.PutUint32(record[0:4], uint32(VersionMainNetPublic))
	_, err = ParseRecord(record)
	require.ErrorIs(t, err, ErrNotPrivate)

	record = master.Serialize()
	binary.BigEndian.PutUint32(record[0:4], 0x04b2430c)
	_, err = ParseRecord(record)
	require.ErrorIs(t, err, ErrInvalidVersion)

	record = master.Serialize()
	record[45] = 0x02
	_, err = ParseRecord(record)
	require.ErrorIs(t, err, ErrNotPrivate)

	record = master.Serialize()
	copy(record[46:], make([]byte, 32))
	_, err = ParseRecord(record)
	require.ErrorIs(t, err, ErrInvalidPrivKey)
}
