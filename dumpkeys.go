package clndumpkeys

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightninglabs/clndumpkeys/bip32"
	"github.com/lightninglabs/clndumpkeys/cln"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrNoVariants is returned if a config has nothing to dump.
	ErrNoVariants = errors.New("no output variants configured")

	// ErrExportMismatch is returned if an exported key does not decode
	// back to the key it was produced from.
	ErrExportMismatch = errors.New("exported key does not round trip")

	deriveWalletKey = cln.DeriveWalletKey
)

// Config selects the versions the wallet key is derived and exported with.
type Config struct {
	// Versions is the version pair of the network. The private version
	// is used to derive the key tree.
	Versions bip32.VersionPair

	// Variants lists one output line each.
	Variants []bip32.OutputVariant
}

// DefaultConfig returns the mainnet configuration with the standard xprv
// output.
func DefaultConfig() *Config {
	return &Config{
		Versions: bip32.MainNetVersions,
		Variants: bip32.StandardVariants(bip32.MainNetVersions),
	}
}

// NewConfig returns the standard configuration for the given network.
func NewConfig(params *chaincfg.Params) (*Config, error) {
	versions, err := bip32.VersionPairForNet(params)
	if err != nil {
		return nil, err
	}

	return &Config{
		Versions: versions,
		Variants: bip32.StandardVariants(versions),
	}, nil
}

// Validate makes sure the version pair is consistent and every variant is a
// private version of the same network.
func (c *Config) Validate() error {
	if err := c.Versions.Validate(); err != nil {
		return err
	}

	if len(c.Variants) == 0 {
		return ErrNoVariants
	}

	for _, variant := range c.Variants {
		if strings.TrimSpace(variant.Label) == "" {
			return fmt.Errorf("variant with version %v has no "+
				"label", variant.Version)
		}

		if !variant.Version.Valid() || !variant.Version.IsPrivate() {
			return fmt.Errorf("variant %s: %w: %v", variant.Label,
				bip32.ErrInvalidVersion, variant.Version)
		}

		if variant.Version.IsMainNet() != c.Versions.Private.IsMainNet() {
			return fmt.Errorf("variant %s: %w: %v does not match "+
				"%v", variant.Label,
				bip32.ErrInconsistentVersions,
				variant.Version, c.Versions.Private)
		}
	}

	return nil
}

// provenance describes where the exported key really sits in the tree. The
// export itself presents the key as a root, so this is only logged.
type provenance struct {
	Path              string
	Salt              uint32
	Depth             uint8
	ParentFingerprint string
	ChildIndex        uint32
	PubKey            string
}

func formatPath(path []uint32) string {
	parts := make([]string, 0, len(path)+1)
	parts = append(parts, "m")
	for _, index := range path {
		if index >= bip32.HardenedKeyStart {
			parts = append(parts, fmt.Sprintf("%d'",
				index-bip32.HardenedKeyStart))

			continue
		}

		parts = append(parts, fmt.Sprintf("%d", index))
	}

	return strings.Join(parts, "/")
}

// DumpXprvFile loads the hsm_secret at path (or the default file name) and
// dumps its wallet key.
func DumpXprvFile(path fn.Option[string], cfg *Config, w io.Writer) error {
	secret, err := cln.LoadHsmSecret(path)
	if err != nil {
		return stageErr(StageIO, err)
	}
	defer secret.Zero()

	return DumpXprv(secret, cfg, w)
}

// DumpXprv derives the CLN wallet key from the secret and writes one
// base58check extended private key per configured variant to w. Nothing is
// written unless every variant could be derived and encoded.
func DumpXprv(secret cln.HsmSecret, cfg *Config, w io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return stageErr(StageConfig, err)
	}

	nodeID, _, err := cln.NodeKey(secret)
	if err != nil {
		return stageErr(StageDerivation, fmt.Errorf("can't derive "+
			"node key: %w", err))
	}
	log.Infof("Dumping wallet keys of node %x",
		nodeID.SerializeCompressed())

	walletKey, err := deriveWalletKey(secret, cfg.Versions)
	if err != nil {
		return stageErr(StageDerivation, err)
	}
	defer walletKey.Zero()

	log.Debugf("Wallet key provenance: %v", spew.Sdump(provenance{
		Path:  formatPath(walletKey.Path),
		Salt:  walletKey.Salt,
		Depth: walletKey.Key.Depth(),
		ParentFingerprint: fmt.Sprintf(
			"%08x", walletKey.Key.ParentFingerprint(),
		),
		ChildIndex: walletKey.Key.ChildIndex(),
		PubKey:     fmt.Sprintf("%x", walletKey.Key.PubKeyBytes()),
	}))

	lines := make([]string, 0, len(cfg.Variants))
	for _, variant := range cfg.Variants {
		line, err := exportKey(walletKey.Key, variant)
		if err != nil {
			return stageErr(StageEncoding, fmt.Errorf("variant "+
				"%s: %w", variant.Label, err))
		}

		lines = append(lines, line)
	}

	out := strings.Join(lines, "\n") + "\n"
	if _, err := io.WriteString(w, out); err != nil {
		return stageErr(StageIO, fmt.Errorf("writing: %w", err))
	}

	return nil
}

// exportKey re-stamps the key as a root with the variant's version and
// encodes it.
func exportKey(key *bip32.ExtendedKey,
	variant bip32.OutputVariant) (string, error) {

	root, err := key.AsRoot(variant.Version)
	if err != nil {
		return "", err
	}
	defer root.Zero()

	record := root.Serialize()
	text, err := bip32.EncodeBase58Check(record[:])
	if err != nil {
		return "", err
	}

	if err := verifyExport(text, root); err != nil {
		return "", err
	}

	log.Debugf("Exported %s key with version %v", variant.Label,
		variant.Version)

	return text, nil
}

// verifyExport decodes the exported text with both our own and btcd's
// decoder and makes sure it describes the exported root key.
func verifyExport(text string, root *bip32.ExtendedKey) error {
	record, err := bip32.DecodeBase58Check(text)
	if err != nil {
		return err
	}
	if record != root.Serialize() {
		return fmt.Errorf("%w: record differs", ErrExportMismatch)
	}

	refKey, err := hdkeychain.NewKeyFromString(text)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExportMismatch, err)
	}
	defer refKey.Zero()

	version := root.Version().Bytes()
	switch {
	case !refKey.IsPrivate():
		return fmt.Errorf("%w: not a private key", ErrExportMismatch)

	case !bytes.Equal(refKey.Version(), version[:]):
		return fmt.Errorf("%w: version %x", ErrExportMismatch,
			refKey.Version())

	case refKey.Depth() != 0 || refKey.ParentFingerprint() != 0:
		return fmt.Errorf("%w: not presented as root key",
			ErrExportMismatch)
	}

	refPubKey, err := refKey.ECPubKey()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExportMismatch, err)
	}
	if !bytes.Equal(refPubKey.SerializeCompressed(), root.PubKeyBytes()) {
		return fmt.Errorf("%w: public key differs", ErrExportMismatch)
	}

	return nil
}
