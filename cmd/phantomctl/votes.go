package main

import (
	"fmt"
	"time"

	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/types"
	"github.com/phantomstreams/phantom-sequencer/util"
	"github.com/spf13/cobra"
)

func voteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vote",
		Short: "Create, cast, reveal and inspect royalty votes",
	}
	cmd.AddCommand(voteCreateCmd(), voteCastCmd(), voteRevealCmd(), voteShowCmd())
	return cmd
}

func parseVoteArg(args []string) (types.VoteID, error) {
	id, err := types.ParseVoteID(args[0])
	if err != nil {
		return id, fmt.Errorf("invalid vote id: %w", err)
	}
	return id, nil
}

func voteCreateCmd() *cobra.Command {
	var (
		nonce    uint64
		options  uint8
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a royalty vote, signed by the authority",
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := authorityKeys()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("nonce") {
				nonce = util.RandomUint64()
			}
			cli, err := newClient()
			if err != nil {
				return err
			}
			resp, err := cli.NewVote(keys, nonce, options, time.Now().Add(duration))
			if err != nil {
				return err
			}
			res, err := wait(cli, resp.ComputationID)
			if err != nil {
				return err
			}
			out := map[string]any{"voteId": resp.VoteID, "nonce": nonce}
			if res != nil {
				out["initialization"] = res.Status
			}
			return printJSON(out)
		},
	}
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "vote nonce, random if not set")
	cmd.Flags().Uint8Var(&options, "options", 2, fmt.Sprintf("number of options, 1 to %d", circuits.MaxOptions))
	cmd.Flags().DurationVar(&duration, "duration", time.Hour, "time until the vote closes")
	return cmd
}

func voteCastCmd() *cobra.Command {
	var (
		choice uint8
		weight uint64
	)
	cmd := &cobra.Command{
		Use:   "cast <voteId>",
		Short: "Cast a sealed weighted ballot",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := parseVoteArg(args)
			if err != nil {
				return err
			}
			cli, ch, err := ownerChannel()
			if err != nil {
				return err
			}
			ballot, err := ch.Seal(circuits.RoyaltyVote{Choice: choice, Weight: weight}.Marshal())
			if err != nil {
				return err
			}
			computationID, err := cli.CastBallot(id, ballot)
			if err != nil {
				return err
			}
			res, err := wait(cli, computationID)
			if err != nil || res == nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().Uint8Var(&choice, "choice", 0, "chosen option")
	cmd.Flags().Uint64Var(&weight, "weight", 1, "ballot weight")
	return cmd
}

func voteRevealCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reveal <voteId>",
		Short: "Reveal the winner of a closed vote, signed by the authority",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := parseVoteArg(args)
			if err != nil {
				return err
			}
			keys, err := authorityKeys()
			if err != nil {
				return err
			}
			cli, err := newClient()
			if err != nil {
				return err
			}
			computationID, err := cli.RevealVote(keys, id)
			if err != nil {
				return err
			}
			res, err := wait(cli, computationID)
			if err != nil || res == nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func voteShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <voteId>",
		Short: "Show a vote",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := parseVoteArg(args)
			if err != nil {
				return err
			}
			cli, err := newClient()
			if err != nil {
				return err
			}
			vote, err := cli.Vote(id)
			if err != nil {
				return err
			}
			return printJSON(vote)
		},
	}
}
