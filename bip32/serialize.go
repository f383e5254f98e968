package bip32

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// SerializedKeyLen is the length of a serialized extended key:
	// version(4) || depth(1) || parent fingerprint(4) || child index(4) ||
	// chain code(32) || key data(33).
	SerializedKeyLen = 4 + 1 + 4 + 4 + 32 + keyLen

	// ChecksumLen is the length of the base58check checksum.
	ChecksumLen = 4

	// PayloadLen is the length of the checksummed payload that is base58
	// encoded.
	PayloadLen = SerializedKeyLen + ChecksumLen
)

var (
	// ErrEncoding is returned if a record can't be base58check encoded.
	ErrEncoding = errors.New("extended key encoding failed")

	// ErrInvalidKeyLen is returned if a decoded payload has the wrong
	// length.
	ErrInvalidKeyLen = errors.New("the provided serialized extended key " +
		"length is invalid")

	// ErrChecksumMismatch is returned if the checksum of a decoded
	// payload does not match.
	ErrChecksumMismatch = errors.New("bad extended key checksum")

	// ErrNotPrivate is returned when parsing a public key record.
	ErrNotPrivate = errors.New("serialized extended key is not private")

	// ErrInvalidPrivKey is returned if the key data of a record is zero or
	// not below the curve order.
	ErrInvalidPrivKey = errors.New("serialized private key is not a " +
		"valid scalar")
)

// SerializedKeyRecord is the fixed 78-byte binary form of an extended key.
type SerializedKeyRecord [SerializedKeyLen]byte

// Version returns the version tag of the record.
func (r *SerializedKeyRecord) Version() Version {
	var v [4]byte
	copy(v[:], r[:4])
	return VersionFromBytes(v)
}

// Serialize returns the binary form of the key.
func (k *ExtendedKey) Serialize() SerializedKeyRecord {
	var r SerializedKeyRecord

	binary.BigEndian.PutUint32(r[0:4], uint32(k.version))
	r[4] = k.depth
	copy(r[5:9], k.parentFP[:])
	binary.BigEndian.PutUint32(r[9:13], k.childIndex)
	copy(r[13:45], k.chainCode[:])

	// Private key data is padded with a leading zero byte to the length of
	// a compressed public key.
	r[45] = 0x00
	copy(r[46:], k.key[:])

	return r
}

// String returns the base58check encoding of the key. An empty string is
// returned in the impossible case that the encoding fails.
func (k *ExtendedKey) String() string {
	record := k.Serialize()
	text, err := EncodeBase58Check(record[:])
	if err != nil {
		return ""
	}

	return text
}

func checksum(data []byte) []byte {
	return chainhash.DoubleHashB(data)[:ChecksumLen]
}

// EncodeBase58Check appends the double SHA-256 checksum to a serialized key
// record and base58 encodes the result.
func EncodeBase58Check(record []byte) (string, error) {
	if len(record) != SerializedKeyLen {
		return "", fmt.Errorf("%w: record is %d bytes, expected %d",
			ErrEncoding, len(record), SerializedKeyLen)
	}

	payload := make([]byte, 0, PayloadLen)
	payload = append(payload, record...)
	payload = append(payload, checksum(record)...)
	if len(payload) != PayloadLen {
		return "", fmt.Errorf("%w: payload is %d bytes, expected %d",
			ErrEncoding, len(payload), PayloadLen)
	}

	text := base58.Encode(payload)
	if text == "" {
		return "", fmt.Errorf("%w: empty base58 output", ErrEncoding)
	}

	return text, nil
}

// DecodeBase58Check decodes a base58check extended key and verifies its
// length and checksum.
func DecodeBase58Check(text string) (SerializedKeyRecord, error) {
	var r SerializedKeyRecord

	payload := base58.Decode(text)
	if len(payload) != PayloadLen {
		return r, ErrInvalidKeyLen
	}

	record := payload[:SerializedKeyLen]
	if !bytes.Equal(checksum(record), payload[SerializedKeyLen:]) {
		return r, ErrChecksumMismatch
	}
	copy(r[:], record)

	return r, nil
}

// ParseRecord rebuilds a private extended key from its binary form.
func ParseRecord(r SerializedKeyRecord) (*ExtendedKey, error) {
	version := r.Version()
	if !version.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVersion, version)
	}
	if !version.IsPrivate() || r[45] != 0x00 {
		return nil, ErrNotPrivate
	}

	var keyNum btcec.ModNScalar
	if overflow := keyNum.SetByteSlice(r[46:]); overflow ||
		keyNum.IsZero() {

		return nil, ErrInvalidPrivKey
	}
	defer keyNum.Zero()

	var parentFP [4]byte
	copy(parentFP[:], r[5:9])

	return newExtendedKey(
		version, &keyNum, r[13:45], parentFP, r[4],
		binary.BigEndian.Uint32(r[9:13]),
	), nil
}

// NewKeyFromString parses a base58check private extended key.
func NewKeyFromString(text string) (*ExtendedKey, error) {
	r, err := DecodeBase58Check(text)
	if err != nil {
		return nil, err
	}

	return ParseRecord(r)
}
