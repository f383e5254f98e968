package cln

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightninglabs/clndumpkeys/bip32"
	"golang.org/x/crypto/hkdf"
)

var (
	InfoNodeID    = []byte("nodeid")
	InfoBIP32Seed = []byte("bip32 seed")

	// newMasterKey turns a seed candidate into a master key.
	newMasterKey = bip32.NewMaster
)

// WalletKey is the BIP32 key lightningd derives its on-chain wallet addresses
// from, together with the information needed to reproduce it.
type WalletKey struct {
	// Key is the extended private key at Path.
	Key *bip32.ExtendedKey

	// Salt is the HKDF salt counter that produced a usable BIP32 seed.
	Salt uint32

	// Path is the derivation path of Key relative to the master key.
	Path []uint32
}

// Zero wipes the key material.
func (w *WalletKey) Zero() {
	if w.Key != nil {
		w.Key.Zero()
	}
}

// NodeKey derives a CLN node key from the given HSM secret.
func NodeKey(hsmSecret HsmSecret) (*btcec.PublicKey, *btcec.PrivateKey,
	error) {

	salt := make([]byte, 4)
	privKeyBytes, err := HkdfSha256(hsmSecret[:], salt, InfoNodeID)
	if err != nil {
		return nil, nil, err
	}

	privKey, pubKey := btcec.PrivKeyFromBytes(privKeyBytes[:])
	return pubKey, privKey, nil
}

// BIP32Seed expands the HSM secret into the 32-byte BIP32 seed candidate for
// the given salt counter. lightningd hashes the counter in host byte order,
// which is little endian on all platforms it supports.
func BIP32Seed(hsmSecret HsmSecret, salt uint32) ([32]byte, error) {
	var saltBytes [4]byte
	binary.LittleEndian.PutUint32(saltBytes[:], salt)

	return HkdfSha256(hsmSecret[:], saltBytes[:], InfoBIP32Seed)
}

// DeriveBIP32MasterKey derives the BIP32 master key of the node wallet. Seed
// candidates are generated with an increasing salt until one of them yields a
// valid master key. The salt that was used is returned as well.
func DeriveBIP32MasterKey(hsmSecret HsmSecret,
	version bip32.Version) (*bip32.ExtendedKey, uint32, error) {

	for salt := uint32(0); ; salt++ {
		seed, err := BIP32Seed(hsmSecret, salt)
		if err != nil {
			return nil, 0, fmt.Errorf("error expanding bip32 "+
				"seed: %w", err)
		}

		master, err := newMasterKey(seed[:], version)
		for i := range seed {
			seed[i] = 0
		}

		switch {
		case errors.Is(err, bip32.ErrUnusableSeed):
			log.Warnf("BIP32 seed with salt %d is unusable, "+
				"retrying", salt)

			continue

		case err != nil:
			return nil, 0, fmt.Errorf("error deriving master "+
				"key: %w", err)
		}

		return master, salt, nil
	}
}

// DeriveWalletKey derives the extended key at bip32.WalletPath from the HSM
// secret. The master key is tagged with the private version of the pair.
func DeriveWalletKey(hsmSecret HsmSecret,
	versions bip32.VersionPair) (*WalletKey, error) {

	if err := versions.Validate(); err != nil {
		return nil, err
	}

	master, salt, err := DeriveBIP32MasterKey(hsmSecret, versions.Private)
	if err != nil {
		return nil, err
	}
	defer master.Zero()

	key, err := master.DerivePath(bip32.WalletPath)
	if err != nil {
		return nil, fmt.Errorf("can't derive private bip32 key: %w",
			err)
	}

	log.Debugf("Derived wallet key at depth %d with salt %d", key.Depth(),
		salt)

	return &WalletKey{
		Key:  key,
		Salt: salt,
		Path: append([]uint32(nil), bip32.WalletPath...),
	}, nil
}

// HkdfSha256 derives a 32-byte key from the given input key material, salt, and
// info using the HKDF-SHA256 key derivation function.
func HkdfSha256(key, salt, info []byte) ([32]byte, error) {
	expander := hkdf.New(sha256.New, key, salt, info)

	var outputKey [32]byte
	_, err := expander.Read(outputKey[:])
	if err != nil {
		return [32]byte{}, err
	}

	return outputKey, nil
}
