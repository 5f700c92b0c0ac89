package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bvisness/wasm-validate/module"
	"github.com/bvisness/wasm-validate/utils"
	"github.com/bvisness/wasm-validate/wasm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var rootCmd *cobra.Command
	rootCmd = &cobra.Command{
		Use:   "wasm-validate <file>",
		Short: "Validate the function bodies of a WebAssembly module.",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 {
				rootCmd.Usage()
				os.Exit(1)
			}
			filename := args[0]

			var wasmFile io.Reader
			if filename == "-" {
				wasmFile = os.Stdin
			} else {
				f, err := os.Open(filename)
				if err != nil {
					err := err.(*os.PathError)
					exitWithError("could not open file %s: %v", err.Path, err.Err)
				}
				defer f.Close()
				wasmFile = f
			}

			flags := rootCmd.PersistentFlags()
			log := newLogger(utils.Must1(flags.GetBool("verbose")))
			defer log.Sync()

			features, err := readFeatures(
				utils.Must1(flags.GetString("features")),
				utils.Must1(flags.GetStringSlice("enable")),
				utils.Must1(flags.GetStringSlice("disable")),
			)
			if err != nil {
				exitWithError("%v", err)
			}
			log.Debug("features", zap.Stringer("enabled", features))

			var funcs []uint32
			if funcsStr := utils.Must1(flags.GetString("funcs")); funcsStr != "" {
				for _, idxStr := range strings.Split(funcsStr, ",") {
					idx, err := strconv.ParseUint(strings.TrimSpace(idxStr), 10, 32)
					if err != nil {
						exitWithError("invalid function index %s", idxStr)
					}
					funcs = append(funcs, uint32(idx))
				}
			}

			m, err := module.Decode(wasmFile, features)
			if err != nil {
				exitWithError("%v", err)
			}
			log.Debug("decoded module",
				zap.Int("types", len(m.Types)),
				zap.Int("funcs", len(m.Funcs)),
				zap.Uint32("imported funcs", m.NumImportedFuncs),
			)

			err = module.Validate(context.Background(), m, module.Options{
				Concurrency: utils.Must1(flags.GetInt("concurrency")),
				Funcs:       funcs,
				Logger:      log,
			})
			if err != nil {
				exitWithError("%v", err)
			}
			fmt.Println("ok")
		},
	}
	rootCmd.PersistentFlags().StringP("funcs", "f", "", "The function indices to validate, separated by commas. Defaults to every function with a body.")
	rootCmd.PersistentFlags().String("features", "", "A YAML file of features to enable or disable.")
	rootCmd.PersistentFlags().StringSlice("enable", nil, fmt.Sprintf("Features to enable, in addition to the defaults. One of: %s.", strings.Join(wasm.FeatureNames(), ", ")))
	rootCmd.PersistentFlags().StringSlice("disable", nil, "Features to disable.")
	rootCmd.PersistentFlags().IntP("concurrency", "j", 0, "The number of functions to validate at once. Defaults to the number of CPUs.")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log progress for every function.")
	utils.Must(rootCmd.Execute())
}

func newLogger(verbose bool) *zap.Logger {
	if verbose {
		return utils.Must1(zap.NewDevelopment())
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.Encoding = "console"
	return utils.Must1(cfg.Build())
}

// readFeatures applies the feature file and then the individual flags on top
// of the default feature set.
func readFeatures(path string, enable, disable []string) (wasm.Features, error) {
	features := wasm.DefaultFeatures
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return 0, fmt.Errorf("could not open feature file: %w", err)
		}
		defer f.Close()
		if features, err = wasm.LoadFeatures(f, features); err != nil {
			return 0, err
		}
	}
	for _, name := range enable {
		f, err := wasm.ParseFeature(name)
		if err != nil {
			return 0, err
		}
		features = features.Set(f, true)
	}
	for _, name := range disable {
		f, err := wasm.ParseFeature(name)
		if err != nil {
			return 0, err
		}
		features = features.Set(f, false)
	}
	return features, nil
}

func exitWithError(msg string, args ...any) {
	msg = fmt.Sprintf(msg, args...)
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", msg)
	os.Exit(1)
}
