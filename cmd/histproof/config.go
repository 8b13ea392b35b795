// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package main

import (
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/histproof/histproof/cmd/genericconf"
	"github.com/histproof/histproof/cmd/util/confighelpers"
	"github.com/histproof/histproof/gateway"
	"github.com/histproof/histproof/observation"
	"github.com/histproof/histproof/pipeline"
	"github.com/histproof/histproof/prover"
	"github.com/histproof/histproof/util/rpcclient"
)

type HistproofConfig struct {
	Conf        genericconf.ConfConfig        `koanf:"conf"`
	LogLevel    string                        `koanf:"log-level"`
	LogType     string                        `koanf:"log-type"`
	FileLogging genericconf.FileLoggingConfig `koanf:"file-logging"`
	Ledger      rpcclient.ClientConfig        `koanf:"ledger"`
	Prover      prover.Config                 `koanf:"prover"`
	Gateway     gateway.Config                `koanf:"gateway"`
	Pipeline    pipeline.Config               `koanf:"pipeline"`
}

var HistproofConfigDefault = HistproofConfig{
	Conf:        genericconf.ConfConfigDefault,
	LogLevel:    "info",
	LogType:     "plaintext",
	FileLogging: genericconf.DefaultFileLoggingConfig,
	Ledger:      observation.DefaultLedgerRPCConfig,
	Prover:      prover.DefaultConfig,
	Gateway:     gateway.DefaultConfig,
	Pipeline:    pipeline.DefaultConfig,
}

func HistproofConfigAddOptions(f *flag.FlagSet) {
	genericconf.ConfConfigAddOptions("conf", f)
	f.String("log-level", HistproofConfigDefault.LogLevel, "log level, valid values are CRIT, ERROR, WARN, INFO, DEBUG, TRACE")
	f.String("log-type", HistproofConfigDefault.LogType, "log type (plaintext or json)")
	genericconf.FileLoggingConfigAddOptions("file-logging", f)
	rpcclient.RPCClientAddOptions("ledger", f, &HistproofConfigDefault.Ledger)
	prover.ConfigAddOptions("prover", f)
	gateway.ConfigAddOptions("gateway", f)
	pipeline.ConfigAddOptions("pipeline", f)
}

func (c *HistproofConfig) Validate() error {
	if err := c.FileLogging.Validate(); err != nil {
		return err
	}
	if err := c.Ledger.Validate(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if err := c.Prover.Validate(); err != nil {
		return err
	}
	if err := c.Gateway.Validate(); err != nil {
		return err
	}
	return c.Pipeline.Validate()
}

var errTooManyArgs = errors.New("too many positional arguments")

// ParseHistproof returns the configuration and the run input taken from the
// positional arguments <identifier> [partner-key] [callback-address].
func ParseHistproof(args []string) (*HistproofConfig, *pipeline.Input, error) {
	f := flag.NewFlagSet("", flag.ContinueOnError)
	HistproofConfigAddOptions(f)

	k, err := confighelpers.BeginCommonParse(f, args)
	if err != nil {
		return nil, nil, err
	}
	if err := confighelpers.ApplyOverrides(f, k); err != nil {
		return nil, nil, err
	}

	var config HistproofConfig
	if err := confighelpers.EndCommonParse(k, &config); err != nil {
		return nil, nil, err
	}

	positional := f.Args()
	if len(positional) > 3 {
		return nil, nil, fmt.Errorf("%w: %v", errTooManyArgs, positional[3:])
	}
	input := &pipeline.Input{}
	if len(positional) > 0 {
		input.Identifier = positional[0]
	}
	if len(positional) > 1 {
		input.PartnerKey = positional[1]
	}
	if len(positional) > 2 {
		input.CallbackAddress = positional[2]
	}

	if err := config.Validate(); err != nil {
		return nil, nil, err
	}

	// Only a configuration that would actually run is dumped.
	if config.Conf.Dump {
		err = confighelpers.DumpConfig(k, map[string]interface{}{
			"ledger.jwtsecret":      "",
			"prover.rpc.jwtsecret":  "",
			"gateway.rpc.jwtsecret": "",
		})
		if err != nil {
			return nil, nil, err
		}
	}
	return &config, input, nil
}
