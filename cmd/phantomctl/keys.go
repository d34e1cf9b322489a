package main

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/phantomstreams/phantom-sequencer/crypto/ethereum"
	"github.com/phantomstreams/phantom-sequencer/envelope"
	"github.com/phantomstreams/phantom-sequencer/types"
	"github.com/spf13/cobra"
)

func keygenCmd() *cobra.Command {
	var authority bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an owner channel key pair, or an authority key with --authority",
		RunE: func(_ *cobra.Command, _ []string) error {
			if authority {
				keys := ethereum.NewSignKeys()
				if err := keys.Generate(); err != nil {
					return err
				}
				_, priv := keys.HexString()
				return printJSON(map[string]string{
					"address":    keys.AddressString(),
					"privateKey": priv,
				})
			}
			kp, err := envelope.GenerateKeypair()
			if err != nil {
				return err
			}
			return printJSON(map[string]string{
				"publicKey":  kp.PublicKey().String(),
				"privateKey": hex.EncodeToString(kp.Private[:]),
			})
		},
	}
	cmd.Flags().BoolVar(&authority, "authority", false, "generate an ethereum key for the authority")
	return cmd
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the public parameters of the node",
		RunE: func(_ *cobra.Command, _ []string) error {
			cli, err := newClient()
			if err != nil {
				return err
			}
			info, err := cli.Info()
			if err != nil {
				return err
			}
			return printJSON(info)
		},
	}
}

// parseWord reads a 0x prefixed hex word or a decimal number.
func parseWord(s string) (types.Word, error) {
	var w types.Word
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		err := w.UnmarshalText([]byte(s))
		return w, err
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 || n.BitLen() > 256 {
		return w, fmt.Errorf("invalid word %q: expected 0x hex or a decimal number below 2^256", s)
	}
	return types.WordFromBig(n), nil
}
