package bip32

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

const (
	testVec1Seed = "000102030405060708090a0b0c0d0e0f"
	testVec1Root = "xprv9s21ZrQH143K3QTDL4LXw2F7HEK3wJUD2nW2nRk4stbPy6cq3jPP" +
		"qjiChkVvvNKmPGJxWUtg6LnF5kejMRNNU3TGtRBeJgk33yuGBxrMPHi"
)

func TestNewMasterVector(t *testing.T) {
	seed, err := hex.DecodeString(testVec1Seed)
	require.NoError(t, err)

	master, err := NewMaster(seed, VersionMainNetPrivate)
	require.NoError(t, err)

	require.Equal(t, testVec1Root, master.String())
	require.Equal(t, VersionMainNetPrivate, master.Version())
	require.Zero(t, master.Depth())
	require.Zero(t, master.ParentFingerprint())
	require.Zero(t, master.ChildIndex())
}

func TestNewMasterErrors(t *testing.T) {
	_, err := NewMaster(make([]byte, MinSeedBytes-1), VersionMainNetPrivate)
	require.ErrorIs(t, err, ErrInvalidSeedLen)

	_, err = NewMaster(make([]byte, MaxSeedBytes+1), VersionMainNetPrivate)
	require.ErrorIs(t, err, ErrInvalidSeedLen)

	_, err = NewMaster(make([]byte, 32), VersionMainNetPublic)
	require.ErrorIs(t, err, ErrInvalidVersion)

	_, err = NewMaster(make([]byte, 32), Version(0x049d7878))
	require.ErrorIs(t, err, ErrInvalidVersion)
}

// TestDeriveMatchesHdkeychain compares every node on a set of hardened and
// normal paths against btcd's hdkeychain implementation.
func TestDeriveMatchesHdkeychain(t *testing.T) {
	paths := [][]uint32{
		WalletPath,
		{HardenedKeyStart},
		{HardenedKeyStart + 84, HardenedKeyStart, HardenedKeyStart, 0, 7},
		{1, HardenedKeyStart + 2147483647, 2, 1000000000},
	}

	for i := 0; i < 8; i++ {
		seed := sha256.Sum256([]byte(fmt.Sprintf("seed %d", i)))

		for _, path := range paths {
			master, err := NewMaster(seed[:], VersionMainNetPrivate)
			require.NoError(t, err)

			refKey, err := hdkeychain.NewMaster(
				seed[:], &chaincfg.MainNetParams,
			)
			require.NoError(t, err)
			require.Equal(t, refKey.String(), master.String())

			key := master
			for _, index := range path {
				key, err = key.Child(index)
				require.NoError(t, err)

				refKey, err = refKey.Derive(index)
				require.NoError(t, err)

				require.Equal(t, refKey.String(), key.String())
				require.Equal(t, refKey.Depth(), key.Depth())
				require.Equal(t, refKey.ChildIndex(), key.ChildIndex())
				require.Equal(
					t, refKey.ParentFingerprint(),
					key.ParentFingerprint(),
				)
				require.Equal(t, refKey.ChainCode(), key.ChainCode())

				refPub, err := refKey.ECPubKey()
				require.NoError(t, err)
				require.Equal(
					t, refPub.SerializeCompressed(),
					key.PubKeyBytes(),
				)
			}

			viaPath, err := master.DerivePath(path)
			require.NoError(t, err)
			require.Equal(t, key.String(), viaPath.String())
		}
	}
}

func TestChildFingerprint(t *testing.T) {
	seed, err := hex.DecodeString(testVec1Seed)
	require.NoError(t, err)

	master, err := NewMaster(seed, VersionTestNetPrivate)
	require.NoError(t, err)

	child, err := master.Child(0)
	require.NoError(t, err)

	require.Equal(t, master.Fingerprint(), child.ParentFingerprint())
	require.Equal(t, uint8(1), child.Depth())
	require.Equal(t, VersionTestNetPrivate, child.Version())

	pubKey, err := child.ECPubKey()
	require.NoError(t, err)
	require.Equal(t, child.PubKeyBytes(), pubKey.SerializeCompressed())
	require.Equal(
		t, child.PubKeyBytes(),
		child.ECPrivKey().PubKey().SerializeCompressed(),
	)
}

func TestChildMaxDepth(t *testing.T) {
	seed := sha256.Sum256([]byte("depth"))
	master, err := NewMaster(seed[:], VersionMainNetPrivate)
	require.NoError(t, err)

	master.depth = math.MaxUint8
	_, err = master.Child(0)
	require.ErrorIs(t, err, ErrDeriveBeyondMaxDepth)

	master.depth = math.MaxUint8 - 1
	_, err = master.DerivePath(WalletPath)
	require.ErrorIs(t, err, ErrDeriveBeyondMaxDepth)
}

func TestAsRoot(t *testing.T) {
	seed := sha256.Sum256([]byte("as root"))
	master, err := NewMaster(seed[:], VersionTestNetPrivate)
	require.NoError(t, err)

	child, err := master.DerivePath([]uint32{0, 5})
	require.NoError(t, err)
	require.Equal(t, uint8(2), child.Depth())
	require.NotZero(t, child.ParentFingerprint())

	root, err := child.AsRoot(VersionMainNetPrivate)
	require.NoError(t, err)

	require.Equal(t, VersionMainNetPrivate, root.Version())
	require.Zero(t, root.Depth())
	require.Zero(t, root.ParentFingerprint())
	require.Equal(t, uint32(5), root.ChildIndex())
	require.Equal(t, child.ChainCode(), root.ChainCode())
	require.Equal(t, child.PubKeyBytes(), root.PubKeyBytes())

	// The source key is left untouched.
	require.Equal(t, VersionTestNetPrivate, child.Version())
	require.Equal(t, uint8(2), child.Depth())

	_, err = child.AsRoot(VersionMainNetPublic)
	require.ErrorIs(t, err, ErrInvalidVersion)
}

func TestZero(t *testing.T) {
	seed := sha256.Sum256([]byte("zero"))
	master, err := NewMaster(seed[:], VersionMainNetPrivate)
	require.NoError(t, err)

	master.Zero()
	require.Equal(t, [32]byte{}, master.key)
	require.Equal(t, make([]byte, 32), master.ChainCode())
	require.Equal(t, make([]byte, keyLen), master.PubKeyBytes())
}
