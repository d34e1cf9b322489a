package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/phantomstreams/phantom-sequencer/api/client"
	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/crypto/hash"
	"github.com/phantomstreams/phantom-sequencer/envelope"
	"github.com/phantomstreams/phantom-sequencer/storage"
	"github.com/spf13/cobra"
)

// ownerChannel opens the channel of the owner key with the node cluster.
func ownerChannel() (*client.HTTPclient, *envelope.Channel, error) {
	keys, err := ownerKeys()
	if err != nil {
		return nil, nil, err
	}
	cli, err := newClient()
	if err != nil {
		return nil, nil, err
	}
	ch, err := cli.OwnerChannel(keys)
	if err != nil {
		return nil, nil, err
	}
	return cli, ch, nil
}

// sealedResult is the printed form of a finished computation whose output
// was opened with the owner key.
type sealedResult struct {
	*storage.Result
	Opened any `json:"opened,omitempty"`
}

func verifyCmd() *cobra.Command {
	var index uint32
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Prove ownership of a registered claim without revealing it",
		RunE: func(_ *cobra.Command, _ []string) error {
			reg, closeFn, err := openRegistry()
			if err != nil {
				return err
			}
			record, err := reg.Record(index)
			closeFn()
			if err != nil {
				return err
			}
			cli, ch, err := ownerChannel()
			if err != nil {
				return err
			}
			sealed, err := ch.Seal(record.Marshal())
			if err != nil {
				return err
			}
			id, err := cli.VerifyOwnership(sealed)
			if err != nil {
				return err
			}
			res, err := wait(cli, id)
			if err != nil || res == nil {
				return err
			}
			out := &sealedResult{Result: res}
			if res.Output != nil {
				data, err := ch.Open(*res.Output)
				if err != nil {
					return err
				}
				var vr circuits.VerificationResult
				if err := vr.Unmarshal(data); err != nil {
					return err
				}
				out.Opened = vr
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&registryDir, "registry", envOr("PHANTOM_REGISTRY", "registry"), "local registry database directory")
	cmd.Flags().StringVar(&registryHasher, "hasher", envOr("PHANTOM_HASHER", hash.DefaultHasher), "hasher of the registry tree")
	cmd.Flags().Uint32Var(&index, "index", 0, "holder index in the registry")
	return cmd
}

func paymentCmd() *cobra.Command {
	var (
		payer, track      string
		amount, timestamp uint64
		minimum           uint64
	)
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Check that a confidential payment reaches a public minimum",
		RunE: func(_ *cobra.Command, _ []string) error {
			p, err := parseWord(payer)
			if err != nil {
				return err
			}
			t, err := parseWord(track)
			if err != nil {
				return err
			}
			cli, ch, err := ownerChannel()
			if err != nil {
				return err
			}
			payment := circuits.PaymentProof{Payer: p, Track: t, Amount: amount, Timestamp: timestamp}
			sealed, err := ch.Seal(payment.Marshal())
			if err != nil {
				return err
			}
			id, err := cli.VerifyPayment(sealed, minimum)
			if err != nil {
				return err
			}
			res, err := wait(cli, id)
			if err != nil || res == nil {
				return err
			}
			out := &sealedResult{Result: res}
			if res.Output != nil {
				data, err := ch.Open(*res.Output)
				if err != nil {
					return err
				}
				meets, err := circuits.UnmarshalBool(data)
				if err != nil {
					return err
				}
				out.Opened = map[string]bool{"meetsThreshold": meets}
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&payer, "payer", "0", "payer identity")
	cmd.Flags().StringVar(&track, "track", "0", "track id")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "paid amount, kept secret")
	cmd.Flags().Uint64Var(&timestamp, "timestamp", 0, "payment timestamp")
	cmd.Flags().Uint64Var(&minimum, "minimum", 0, "public minimum")
	return cmd
}

func resultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "result <computationId>",
		Short: "Show the result of a computation",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid computation id: %w", err)
			}
			cli, err := newClient()
			if err != nil {
				return err
			}
			res, err := cli.Computation(id)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func eventsCmd() *cobra.Command {
	var (
		from  uint64
		limit int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List the ledger events",
		RunE: func(_ *cobra.Command, _ []string) error {
			cli, err := newClient()
			if err != nil {
				return err
			}
			events, err := cli.Events(from, limit)
			if err != nil {
				return err
			}
			return printJSON(events)
		},
	}
	cmd.Flags().Uint64Var(&from, "from", 0, "first sequence number")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events")
	return cmd
}
