// Copyright 2021-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package confighelpers

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/mitchellh/mapstructure"
	flag "github.com/spf13/pflag"

	"github.com/histproof/histproof/util/colors"
)

// BeginCommonParse parses args into f and loads flag defaults, command line
// values and environment variables into a new koanf instance. Positional
// arguments are left in f.Args().
func BeginCommonParse(f *flag.FlagSet, args []string) (*koanf.Koanf, error) {
	if err := f.Parse(args); err != nil {
		return nil, err
	}

	var k = koanf.New(".")

	// Initial application of command line parameters and defaults
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("error loading command line parameters: %w", err)
	}

	if envPrefix := k.String("conf.env-prefix"); len(envPrefix) != 0 {
		if err := k.Load(env.Provider(envPrefix+"_", ".", func(s string) string {
			// FOO__BAR -> foo-bar to handle dash in config names
			s = strings.ReplaceAll(strings.ToLower(
				strings.TrimPrefix(s, envPrefix+"_")), "__", "-")
			return strings.ReplaceAll(s, "_", ".")
		}), nil); err != nil {
			return nil, fmt.Errorf("error loading environment variables: %w", err)
		}
	}

	return k, nil
}

// ApplyOverrides loads configuration files and the conf.string JSON on top
// of k, then reapplies the command line so explicit flags always win.
func ApplyOverrides(f *flag.FlagSet, k *koanf.Koanf) error {
	for _, configFile := range k.Strings("conf.file") {
		if configFile == "" {
			continue
		}
		if err := k.Load(file.Provider(configFile), json.Parser()); err != nil {
			return fmt.Errorf("error loading local config file %s: %w", configFile, err)
		}
	}

	if configString := k.String("conf.string"); configString != "" {
		if err := k.Load(rawbytes.Provider([]byte(configString)), json.Parser()); err != nil {
			return fmt.Errorf("error loading config string: %w", err)
		}
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return fmt.Errorf("error loading command line parameters: %w", err)
	}
	return nil
}

// EndCommonParse decodes k into config. Unknown keys are an error.
func EndCommonParse(k *koanf.Koanf, config interface{}) error {
	decoderConfig := mapstructure.DecoderConfig{
		ErrorUnused: true,

		// Default values
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Metadata:         nil,
		Result:           config,
		WeaklyTypedInput: true,
	}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{DecoderConfig: &decoderConfig}); err != nil {
		return err
	}
	return nil
}

// DumpConfig prints the active configuration as JSON after replacing the
// given keys, so secrets are not printed.
func DumpConfig(k *koanf.Koanf, extraOverrideFields map[string]interface{}) error {
	overrideFields := map[string]interface{}{"conf.dump": false}
	for key, value := range extraOverrideFields {
		overrideFields[key] = value
	}
	if err := k.Load(confmap.Provider(overrideFields, "."), nil); err != nil {
		return fmt.Errorf("error removing extra parameters before dump: %w", err)
	}
	c, err := k.Marshal(json.Parser())
	if err != nil {
		return fmt.Errorf("unable to marshal config file to JSON: %w", err)
	}
	fmt.Println(string(c))
	return nil
}

// PrintErrorAndExit prints err and usage and exits; --help exits cleanly.
func PrintErrorAndExit(err error, usage func(string)) {
	usage(os.Args[0])
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		colors.Fprint(os.Stderr, colors.Red, fmt.Sprintf("\nERROR: %s\n", err.Error()))
		os.Exit(1)
	}
	os.Exit(0)
}
