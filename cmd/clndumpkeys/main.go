package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btclog/v2"
	"github.com/lightninglabs/clndumpkeys"
	"github.com/lightninglabs/clndumpkeys/cln"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// version is the current version of the tool. It is set during build.
	version = "0.1.0"

	// envPrefix is the prefix of environment variables that override
	// flags, for example CLNDUMPKEYS_TESTNET=1.
	envPrefix = "CLNDUMPKEYS"

	usage = "usage: clndumpkeys <hsmd_secretfile>"

	exitCodeFatal = 1
	exitCodeUsage = 42
)

var (
	Commit = ""

	log = btclog.Disabled

	dumpXprvFile = clndumpkeys.DumpXprvFile
)

type dumpKeysCommand struct {
	SecretFile string
	Testnet    bool
	DebugLevel string

	stdout io.Writer
	stderr io.Writer
	cfg    *viper.Viper
	cmd    *cobra.Command
}

func newDumpKeysCommand(stdout, stderr io.Writer) *cobra.Command {
	cc := &dumpKeysCommand{
		stdout: stdout,
		stderr: stderr,
		cfg:    viper.New(),
	}
	cc.cmd = &cobra.Command{
		Use:   "clndumpkeys <hsmd_secretfile>",
		Short: "Dump the BIP32 wallet key of a CLN node",
		Long: `This tool reads the raw 32 byte hsm_secret of a Core
Lightning node, derives the extended private key the node uses for its
on-chain wallet (m/0/0 of the BIP32 tree seeded from the hsm_secret) and
prints it in the base58check xprv format.

The key is exported as if it was a root key: depth and parent fingerprint are
set to zero.`,
		Example: `clndumpkeys ~/.lightning/bitcoin/hsm_secret

clndumpkeys --testnet ~/.lightning/testnet/hsm_secret`,
		Version: fmt.Sprintf("v%s, commit %s", version, Commit),
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return clndumpkeys.UsageError("expected one "+
					"argument, got %d", len(args))
			}

			return nil
		},
		PreRunE:           cc.loadConfig,
		RunE:              cc.Execute,
		SilenceErrors:     true,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}
	cc.cmd.Flags().BoolVarP(
		&cc.Testnet, "testnet", "t", false, "export with the testnet "+
			"version pair (tprv) instead of mainnet (xprv)",
	)
	cc.cmd.Flags().StringVar(
		&cc.DebugLevel, "debuglevel", "info", "log level written to "+
			"stderr (trace, debug, info, warn, error, critical, off)",
	)
	cc.cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clndumpkeys.UsageError("%v", err)
	})
	cc.cmd.SetOut(stdout)
	cc.cmd.SetErr(stderr)

	return cc.cmd
}

// loadConfig resolves flag values that may also be given as environment
// variables and sets up logging.
func (c *dumpKeysCommand) loadConfig(cmd *cobra.Command, _ []string) error {
	c.cfg.SetEnvPrefix(envPrefix)
	c.cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.cfg.AutomaticEnv()
	if err := c.cfg.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	c.Testnet = c.cfg.GetBool("testnet")
	c.DebugLevel = c.cfg.GetString("debuglevel")

	return setupLogging(c.stderr, c.DebugLevel)
}

func (c *dumpKeysCommand) Execute(_ *cobra.Command, args []string) error {
	if len(args) == 1 {
		c.SecretFile = args[0]
	}
	if c.SecretFile == "" {
		return clndumpkeys.UsageError("no hsm_secret file given")
	}

	params := &chaincfg.MainNetParams
	if c.Testnet {
		params = &chaincfg.TestNet3Params
	}

	cfg, err := clndumpkeys.NewConfig(params)
	if err != nil {
		return err
	}

	log.Debugf("clndumpkeys version v%s commit %s, network %s", version,
		Commit, params.Name)

	return dumpXprvFile(fn.Some(c.SecretFile), cfg, c.stdout)
}

// setupLogging creates a logger per subsystem that writes to w.
func setupLogging(w io.Writer, debugLevel string) error {
	level, ok := btclog.LevelFromString(debugLevel)
	if !ok {
		return clndumpkeys.UsageError("invalid debug level %q",
			debugLevel)
	}

	backend := btclog.NewDefaultHandler(w)
	newLogger := func(subsystem string) btclog.Logger {
		logger := btclog.NewSLogger(backend.SubSystem(subsystem))
		logger.SetLevel(level)
		return logger
	}

	log = newLogger("MAIN")
	clndumpkeys.UseLogger(newLogger(clndumpkeys.Subsystem))
	cln.UseLogger(newLogger(cln.Subsystem))

	return nil
}

// run executes the command and maps its outcome to an exit code.
func run(args []string, stdout, stderr io.Writer) int {
	// A nil slice would make cobra fall back to os.Args.
	if args == nil {
		args = []string{}
	}

	cmd := newDumpKeysCommand(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return 0
	}

	if stage, ok := clndumpkeys.ErrorStage(err); ok &&
		stage == clndumpkeys.StageUsage {

		_, _ = fmt.Fprintln(stderr, err)
		_, _ = fmt.Fprintln(stderr, usage)
		return exitCodeUsage
	}

	_, _ = fmt.Fprintln(stderr, err)
	return exitCodeFatal
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
