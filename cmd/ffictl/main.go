package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/ffi-bridge/buffer"
	"github.com/wippyai/ffi-bridge/config"
	"github.com/wippyai/ffi-bridge/export"
	"github.com/wippyai/ffi-bridge/handle"
	"github.com/wippyai/ffi-bridge/memory"
	"github.com/wippyai/ffi-bridge/object"
)

// app is the state shared by every command.
type app struct {
	fs  afero.Fs
	out io.Writer
	log *zap.Logger
	cfg config.Config
}

func main() {
	if err := newRootCmd(afero.NewOsFs(), os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(fs afero.Fs, out io.Writer) *cobra.Command {
	a := &app{fs: fs, out: out, log: zap.NewNop()}
	var cfgPath string

	root := &cobra.Command{
		Use:           "ffictl",
		Short:         "Inspect and exercise the ffi-bridge native library",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.fs, cfgPath, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			a.cfg = cfg

			l, err := newLogger(cfg.Log)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.log = l
			memory.SetLogger(l.Named("memory"))
			handle.SetLogger(l.Named("handle"))
			buffer.SetLogger(l.Named("buffer"))
			object.SetLogger(l.Named("object"))
			export.SetLogger(l.Named("export"))
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Sync()
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVarP(&cfgPath, "config", "c", "", "config file (default: ./ffibridge.yaml, then ~/.config/ffibridge/config.yaml)")
	config.RegisterFlags(flags)

	root.AddCommand(
		newLayoutCmd(a),
		newSymbolsCmd(a),
		newManifestCmd(a),
		newSchemaCmd(a),
		newDemoCmd(a),
		newInteractiveCmd(a),
	)
	return root
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
