package cln

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// HsmSecretSize is the size of a raw, unencrypted hsm_secret file.
	HsmSecretSize = 32

	// DefaultHsmSecretFile is the file name lightningd uses inside its
	// network directory.
	DefaultHsmSecretFile = "hsm_secret"
)

var (
	ErrShortHsmSecret = errors.New("hsm_secret is shorter than 32 bytes")
	ErrLongHsmSecret  = errors.New("hsm_secret is longer than 32 bytes; " +
		"encrypted hsm_secret files are not supported")
)

// HsmSecret is the 256-bit root secret of a CLN node. It never formats its
// content.
type HsmSecret [HsmSecretSize]byte

// String implements fmt.Stringer without revealing the secret.
func (s HsmSecret) String() string {
	return "<redacted hsm_secret>"
}

// GoString implements fmt.GoStringer without revealing the secret.
func (s HsmSecret) GoString() string {
	return s.String()
}

// Zero wipes the secret.
func (s *HsmSecret) Zero() {
	for i := range s {
		s[i] = 0
	}
}

// ReadHsmSecret reads exactly HsmSecretSize bytes from r.
func ReadHsmSecret(r io.Reader) (HsmSecret, error) {
	var secret HsmSecret

	_, err := io.ReadFull(r, secret[:])
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		secret.Zero()
		return secret, ErrShortHsmSecret

	case err != nil:
		secret.Zero()
		return secret, fmt.Errorf("reading: %w", err)
	}

	return secret, nil
}

// LoadHsmSecret reads a raw hsm_secret file. If no path is given, the file
// DefaultHsmSecretFile in the current directory is used. The file must be
// exactly HsmSecretSize bytes long.
func LoadHsmSecret(path fn.Option[string]) (HsmSecret, error) {
	fileName := path.UnwrapOr(DefaultHsmSecretFile)

	f, err := os.Open(fileName)
	if err != nil {
		return HsmSecret{}, fmt.Errorf("opening: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Errorf("Error closing %s: %v", fileName, err)
		}
	}()

	secret, err := ReadHsmSecret(f)
	if err != nil {
		return HsmSecret{}, fmt.Errorf("%s: %w", fileName, err)
	}

	// Anything after the first 32 bytes means this isn't a raw secret.
	var extra [1]byte
	n, err := f.Read(extra[:])
	switch {
	case n > 0:
		secret.Zero()
		return HsmSecret{}, fmt.Errorf("%s: %w", fileName,
			ErrLongHsmSecret)

	case err != nil && !errors.Is(err, io.EOF):
		secret.Zero()
		return HsmSecret{}, fmt.Errorf("%s: reading: %w", fileName,
			err)
	}

	log.Debugf("Loaded %d byte hsm_secret from %s", HsmSecretSize,
		fileName)

	return secret, nil
}
