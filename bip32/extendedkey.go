// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bip32

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
)

const (
	// HardenedKeyStart is the index of the first hardened child.
	HardenedKeyStart = 0x80000000 // 2^31

	// MinSeedBytes is the minimum seed length accepted by NewMaster.
	MinSeedBytes = 16

	// MaxSeedBytes is the maximum seed length accepted by NewMaster.
	MaxSeedBytes = 64

	keyLen = 33
)

var (
	ErrInvalidChild = errors.New("the extended key at this index is " +
		"invalid")
	ErrUnusableSeed         = errors.New("unusable seed")
	ErrDeriveBeyondMaxDepth = errors.New("cannot derive a key with more " +
		"than 255 indices in its path")
	ErrInvalidSeedLen = fmt.Errorf("seed length must be between %d and "+
		"%d bits", MinSeedBytes*8, MaxSeedBytes*8)

	masterKey = []byte("Bitcoin seed")

	// WalletPath is the external chain of the default account, m/0/0,
	// which is where a CLN node derives its on-chain wallet keys from.
	WalletPath = []uint32{0, 0}
)

// ExtendedKey is a private node of a BIP32 key tree.
type ExtendedKey struct {
	version    Version
	depth      uint8
	parentFP   [4]byte
	childIndex uint32
	chainCode  [32]byte
	key        [32]byte
	pubKey     [keyLen]byte
}

func newExtendedKey(version Version, key *btcec.ModNScalar,
	chainCode []byte, parentFP [4]byte, depth uint8,
	childIndex uint32) *ExtendedKey {

	k := &ExtendedKey{
		version:    version,
		depth:      depth,
		parentFP:   parentFP,
		childIndex: childIndex,
		key:        key.Bytes(),
	}
	copy(k.chainCode[:], chainCode)

	_, pubKey := btcec.PrivKeyFromBytes(k.key[:])
	copy(k.pubKey[:], pubKey.SerializeCompressed())

	return k
}

// NewMaster creates the master node of a key tree from the given seed.
// ErrUnusableSeed is returned if the seed produces an invalid private key, in
// which case the caller should try another seed.
func NewMaster(seed []byte, version Version) (*ExtendedKey, error) {
	if len(seed) < MinSeedBytes || len(seed) > MaxSeedBytes {
		return nil, ErrInvalidSeedLen
	}
	if !version.Valid() || !version.IsPrivate() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVersion, version)
	}

	// First take the HMAC-SHA512 of the master key and the seed data:
	//   I = HMAC-SHA512(Key = "Bitcoin seed", Data = S)
	hmac512 := hmac.New(sha512.New, masterKey)
	_, _ = hmac512.Write(seed)
	lr := hmac512.Sum(nil)

	// Split "I" into two 32-byte sequences Il and Ir where:
	//   Il = master secret key
	//   Ir = master chain code
	secretKey := lr[:len(lr)/2]
	chainCode := lr[len(lr)/2:]

	// Ensure the key in usable.
	var keyNum btcec.ModNScalar
	if overflow := keyNum.SetByteSlice(secretKey); overflow ||
		keyNum.IsZero() {

		return nil, ErrUnusableSeed
	}
	defer keyNum.Zero()

	return newExtendedKey(version, &keyNum, chainCode, [4]byte{}, 0, 0),
		nil
}

// Child derives the child at index i. Indices from HardenedKeyStart onwards
// produce hardened children.
func (k *ExtendedKey) Child(i uint32) (*ExtendedKey, error) {
	if k.depth == math.MaxUint8 {
		return nil, ErrDeriveBeyondMaxDepth
	}

	// Hardened children commit to 0x00 || ser256(k_par), normal children
	// to serP(K_par). Both are followed by ser32(i).
	var data [keyLen + 4]byte
	if i >= HardenedKeyStart {
		copy(data[1:], k.key[:])
	} else {
		copy(data[:], k.pubKey[:])
	}
	binary.BigEndian.PutUint32(data[keyLen:], i)

	hmac512 := hmac.New(sha512.New, k.chainCode[:])
	_, _ = hmac512.Write(data[:])
	ilr := hmac512.Sum(nil)

	il := ilr[:len(ilr)/2]
	childChainCode := ilr[len(ilr)/2:]

	var ilNum btcec.ModNScalar
	if overflow := ilNum.SetByteSlice(il); overflow {
		return nil, ErrInvalidChild
	}
	defer ilNum.Zero()

	// k_i = parse256(I_L) + k_par (mod n), which must not be zero.
	var keyNum btcec.ModNScalar
	keyNum.SetBytes(&k.key)
	defer keyNum.Zero()

	ilNum.Add(&keyNum)
	if ilNum.IsZero() {
		return nil, ErrInvalidChild
	}

	var parentFP [4]byte
	copy(parentFP[:], btcutil.Hash160(k.pubKey[:])[:4])

	return newExtendedKey(
		k.version, &ilNum, childChainCode, parentFP, k.depth+1, i,
	), nil
}

// DerivePath derives the descendant at the given path relative to k.
func (k *ExtendedKey) DerivePath(path []uint32) (*ExtendedKey, error) {
	currentKey := k
	for _, pathPart := range path {
		derivedKey, err := currentKey.Child(pathPart)
		if err != nil {
			return nil, fmt.Errorf("could not derive child %d at "+
				"depth %d: %w", pathPart, currentKey.depth+1,
				err)
		}

		currentKey = derivedKey
	}

	return currentKey, nil
}

// AsRoot returns a copy of the key stamped with the given private version,
// with depth and parent fingerprint cleared. The copy serializes like a
// master key, its real position in the tree is not recoverable from it.
func (k *ExtendedKey) AsRoot(version Version) (*ExtendedKey, error) {
	if !version.Valid() || !version.IsPrivate() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVersion, version)
	}

	root := *k
	root.version = version
	root.depth = 0
	root.parentFP = [4]byte{}

	return &root, nil
}

func (k *ExtendedKey) Version() Version {
	return k.version
}

func (k *ExtendedKey) Depth() uint8 {
	return k.depth
}

func (k *ExtendedKey) ParentFingerprint() uint32 {
	return binary.BigEndian.Uint32(k.parentFP[:])
}

func (k *ExtendedKey) ChildIndex() uint32 {
	return k.childIndex
}

// ChainCode returns a copy of the chain code.
func (k *ExtendedKey) ChainCode() []byte {
	return append([]byte(nil), k.chainCode[:]...)
}

// PubKeyBytes returns the compressed public key.
func (k *ExtendedKey) PubKeyBytes() []byte {
	return append([]byte(nil), k.pubKey[:]...)
}

// Fingerprint is the fingerprint children of this key reference as their
// parent.
func (k *ExtendedKey) Fingerprint() uint32 {
	return binary.BigEndian.Uint32(btcutil.Hash160(k.pubKey[:])[:4])
}

func (k *ExtendedKey) ECPubKey() (*btcec.PublicKey, error) {
	return btcec.ParsePubKey(k.pubKey[:])
}

func (k *ExtendedKey) ECPrivKey() *btcec.PrivateKey {
	privKey, _ := btcec.PrivKeyFromBytes(k.key[:])
	return privKey
}

// Zero wipes the key material. The key is unusable afterwards.
func (k *ExtendedKey) Zero() {
	for i := range k.key {
		k.key[i] = 0
	}
	for i := range k.chainCode {
		k.chainCode[i] = 0
	}
	for i := range k.pubKey {
		k.pubKey[i] = 0
	}
	k.version = 0
	k.depth = 0
	k.parentFP = [4]byte{}
	k.childIndex = 0
}
