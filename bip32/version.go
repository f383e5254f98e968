package bip32

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

// Version is the 4-byte tag at the start of a serialized extended key that
// identifies network and key type. Only the four standard bitcoin mainnet and
// testnet tags are valid.
type Version uint32

const (
	// VersionMainNetPrivate serializes as "xprv".
	VersionMainNetPrivate Version = 0x0488ade4

	// VersionMainNetPublic serializes as "xpub".
	VersionMainNetPublic Version = 0x0488b21e

	// VersionTestNetPrivate serializes as "tprv". It is shared by testnet,
	// regtest and signet.
	VersionTestNetPrivate Version = 0x04358394

	// VersionTestNetPublic serializes as "tpub".
	VersionTestNetPublic Version = 0x043587cf
)

var (
	// ErrInvalidVersion is returned for version tags outside of the known
	// set or of the wrong key type.
	ErrInvalidVersion = errors.New("invalid extended key version")

	// ErrInconsistentVersions is returned if a public/private version pair
	// mixes networks or key types.
	ErrInconsistentVersions = errors.New("inconsistent extended key " +
		"version pair")

	// MainNetVersions is the xpub/xprv pair.
	MainNetVersions = VersionPair{
		Public:  VersionMainNetPublic,
		Private: VersionMainNetPrivate,
	}

	// TestNetVersions is the tpub/tprv pair.
	TestNetVersions = VersionPair{
		Public:  VersionTestNetPublic,
		Private: VersionTestNetPrivate,
	}
)

// VersionFromBytes interprets a big-endian version tag.
func VersionFromBytes(b [4]byte) Version {
	return Version(binary.BigEndian.Uint32(b[:]))
}

// Valid returns true if the version is one of the four known tags.
func (v Version) Valid() bool {
	switch v {
	case VersionMainNetPrivate, VersionMainNetPublic,
		VersionTestNetPrivate, VersionTestNetPublic:

		return true

	default:
		return false
	}
}

// IsPrivate returns true for the private key tags.
func (v Version) IsPrivate() bool {
	return v == VersionMainNetPrivate || v == VersionTestNetPrivate
}

// IsMainNet returns true for the mainnet tags.
func (v Version) IsMainNet() bool {
	return v == VersionMainNetPrivate || v == VersionMainNetPublic
}

// Bytes returns the big-endian wire form of the version.
func (v Version) Bytes() [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return b
}

// String returns the textual prefix the version produces when serialized.
func (v Version) String() string {
	switch v {
	case VersionMainNetPrivate:
		return "xprv"

	case VersionMainNetPublic:
		return "xpub"

	case VersionTestNetPrivate:
		return "tprv"

	case VersionTestNetPublic:
		return "tpub"

	default:
		return fmt.Sprintf("unknown(0x%08x)", uint32(v))
	}
}

// VersionPair is the public/private version combination of one network.
type VersionPair struct {
	Public  Version
	Private Version
}

// NewVersionPair validates that pub and priv are the public and private tags
// of the same network.
func NewVersionPair(pub, priv Version) (VersionPair, error) {
	pair := VersionPair{Public: pub, Private: priv}
	if err := pair.Validate(); err != nil {
		return VersionPair{}, err
	}

	return pair, nil
}

// Validate checks the pairing invariant.
func (p VersionPair) Validate() error {
	if !p.Public.Valid() || p.Public.IsPrivate() {
		return fmt.Errorf("%w: %v is not a public version",
			ErrInvalidVersion, p.Public)
	}
	if !p.Private.Valid() || !p.Private.IsPrivate() {
		return fmt.Errorf("%w: %v is not a private version",
			ErrInvalidVersion, p.Private)
	}
	if p.Public.IsMainNet() != p.Private.IsMainNet() {
		return fmt.Errorf("%w: %v/%v", ErrInconsistentVersions,
			p.Public, p.Private)
	}

	return nil
}

// VersionPairForNet returns the version pair of the given chain parameters.
// Networks with non-standard HD key IDs (simnet for example) are rejected.
func VersionPairForNet(params *chaincfg.Params) (VersionPair, error) {
	pair, err := NewVersionPair(
		VersionFromBytes(params.HDPublicKeyID),
		VersionFromBytes(params.HDPrivateKeyID),
	)
	if err != nil {
		return VersionPair{}, fmt.Errorf("network %s: %w", params.Name,
			err)
	}

	return pair, nil
}

// OutputVariant is one line of the key dump: a label and the private version
// the exported key is stamped with.
type OutputVariant struct {
	Label   string
	Version Version
}

// StandardVariants returns the variants that are dumped by default, which is
// only the standard private version of the pair.
func StandardVariants(pair VersionPair) []OutputVariant {
	return []OutputVariant{{
		Label:   "standard",
		Version: pair.Private,
	}}
}
