package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cosmossdk.io/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/moffa90/go-mbfs/fault"
	"github.com/moffa90/go-mbfs/ihex"
	"github.com/moffa90/go-mbfs/memmap"
	"github.com/moffa90/go-mbfs/mpfs"
	"github.com/moffa90/go-mbfs/store"
	"github.com/moffa90/go-mbfs/uhex"
)

// EnvPrefix prefixes the environment variables read by mbfs, as in
// MBFS_LOG_LEVEL.
const EnvPrefix = "MBFS"

// app carries the state shared by every command once configuration is read.
type app struct {
	v      *viper.Viper
	logger log.Logger
	cache  *store.Store
}

func newApp() *app {
	return &app{v: viper.New(), logger: log.NewNopLogger()}
}

// NewRootCmd creates the mbfs command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(newApp())
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "mbfs",
		Short:         "Inspect and build micro:bit MicroPython firmware images",
		Long:          "Read and write the MicroPython filesystem of micro:bit Intel Hex files and combine V1 and V2 firmware into Universal Hex files.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default ./mbfs.yaml or $HOME/.config/mbfs/mbfs.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error or disabled")
	flags.String("cache-path", "", "bbolt database caching decoded firmware images")
	flags.String("format", uhex.FormatSections.String(), "Universal Hex format: sections or blocks")
	flags.Int("max-fs-size", 0, "limit the filesystem size in bytes (0 uses the full filesystem)")
	bindFlags(a.v, flags)

	root.AddCommand(
		newInfoCmd(a),
		newLsCmd(a),
		newCatCmd(a),
		newBuildCmd(a),
		newMergeCmd(a),
		newSplitCmd(a),
	)
	return root
}

// Run executes mbfs with args and releases the cache afterwards.
func Run(args []string, stdout, stderr io.Writer) error {
	a := newApp()
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

// ExitCode maps an error to a process exit status: the code of its fault
// kind, or 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if kind := fault.KindOf(err); kind != nil {
		return int(kind.ABCICode())
	}
	return 1
}

// bindFlags binds every flag to the viper key with dashes turned into
// underscores, so --log-level, MBFS_LOG_LEVEL and log_level agree.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		_ = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
}

// setup reads the configuration, builds the logger and opens the cache.
func (a *app) setup(cmd *cobra.Command) error {
	v := a.v
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mbfs")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "mbfs"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	level, err := zerolog.ParseLevel(v.GetString("log_level"))
	if err != nil {
		return fault.Usagef("invalid log level %q", v.GetString("log_level"))
	}
	a.logger = log.NewLogger(cmd.ErrOrStderr(), log.LevelOption(level), log.ColorOption(false))
	if v.ConfigFileUsed() != "" {
		a.logger.Debug("loaded config", "path", v.ConfigFileUsed())
	}

	if path := v.GetString("cache_path"); path != "" {
		cache, err := store.Open(path, store.WithLogger(a.logger))
		if err != nil {
			return err
		}
		a.cache = cache
	}
	return nil
}

func (a *app) close() {
	if a.cache == nil {
		return
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", "error", err)
	}
	a.cache = nil
}

// decode parses Intel Hex text, through the cache when one is configured.
func (a *app) decode(text string) (*memmap.Map, error) {
	if a.cache != nil {
		return a.cache.Decode(text)
	}
	return ihex.Decode(text)
}

func (a *app) format() (uhex.Format, error) {
	return uhex.ParseFormat(a.v.GetString("format"))
}

// fsOptions returns the mpfs options derived from the configuration.
func (a *app) fsOptions() ([]mpfs.Option, error) {
	format, err := a.format()
	if err != nil {
		return nil, err
	}
	opts := []mpfs.Option{
		mpfs.WithLogger(a.logger),
		mpfs.WithUniversalFormat(format),
		mpfs.WithDecoder(a.decode),
	}
	if size := a.v.GetInt("max_fs_size"); size > 0 {
		opts = append(opts, mpfs.WithMaxFsSize(size))
	}
	return opts, nil
}

// readHex reads a firmware file and checks it looks like Intel Hex.
func readHex(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := string(data)
	if !mpfs.ValidateHex(text) {
		return "", fault.Formatf("%s is not an Intel Hex file", path)
	}
	return text, nil
}

// writeOutput writes data to path, or to the command output when path is
// empty or "-".
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
