package main

import (
	"fmt"

	"github.com/phantomstreams/phantom-sequencer/crypto/hash"
	"github.com/phantomstreams/phantom-sequencer/registry"
	"github.com/spf13/cobra"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

var (
	registryDir    string
	registryHasher string
)

// openRegistry opens the local registry. The returned function closes it.
func openRegistry() (*registry.Registry, func(), error) {
	hasher, err := hash.New(registryHasher)
	if err != nil {
		return nil, nil, err
	}
	database, err := metadb.New(db.TypePebble, registryDir)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open registry database: %w", err)
	}
	reg, err := registry.New(database, hasher)
	if err != nil {
		_ = database.Close()
		return nil, nil, err
	}
	return reg, func() { _ = database.Close() }, nil
}

func registryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage the local rights registry and publish its root",
	}
	cmd.PersistentFlags().StringVar(&registryDir, "registry", envOr("PHANTOM_REGISTRY", "registry"), "local registry database directory")
	cmd.PersistentFlags().StringVar(&registryHasher, "hasher", envOr("PHANTOM_HASHER", hash.DefaultHasher), "hasher of the registry tree, must match the node")
	cmd.AddCommand(registryAddCmd(), registryRootCmd(), registryProofCmd(), registryPublishCmd(), registryPublishedCmd())
	return cmd
}

func registryAddCmd() *cobra.Command {
	var wallet, token, track string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a (wallet, token, track) claim",
		RunE: func(_ *cobra.Command, _ []string) error {
			w, err := parseWord(wallet)
			if err != nil {
				return err
			}
			tk, err := parseWord(token)
			if err != nil {
				return err
			}
			tr, err := parseWord(track)
			if err != nil {
				return err
			}
			reg, closeFn, err := openRegistry()
			if err != nil {
				return err
			}
			defer closeFn()
			index, err := reg.AddHolder(w, tk, tr)
			if err != nil {
				return err
			}
			root, err := reg.Root()
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"index": index, "root": root})
		},
	}
	cmd.Flags().StringVar(&wallet, "wallet", "", "wallet identity")
	cmd.Flags().StringVar(&token, "token", "", "rights token")
	cmd.Flags().StringVar(&track, "track", "", "track id")
	_ = cmd.MarkFlagRequired("wallet")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("track")
	return cmd
}

func registryRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "root",
		Short: "Show the root and size of the local registry",
		RunE: func(_ *cobra.Command, _ []string) error {
			reg, closeFn, err := openRegistry()
			if err != nil {
				return err
			}
			defer closeFn()
			root, err := reg.Root()
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"root": root, "size": reg.Size(), "hasher": reg.Hasher().Name()})
		},
	}
}

func registryProofCmd() *cobra.Command {
	var index uint32
	cmd := &cobra.Command{
		Use:   "proof",
		Short: "Print the ownership record of a holder, with its authentication path",
		RunE: func(_ *cobra.Command, _ []string) error {
			reg, closeFn, err := openRegistry()
			if err != nil {
				return err
			}
			defer closeFn()
			record, err := reg.Record(index)
			if err != nil {
				return err
			}
			return printJSON(record)
		},
	}
	cmd.Flags().Uint32Var(&index, "index", 0, "holder index")
	return cmd
}

func registryPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish the local registry root to the node, signed by the authority",
		RunE: func(_ *cobra.Command, _ []string) error {
			keys, err := authorityKeys()
			if err != nil {
				return err
			}
			reg, closeFn, err := openRegistry()
			if err != nil {
				return err
			}
			defer closeFn()
			root, err := reg.Root()
			if err != nil {
				return err
			}
			cli, err := newClient()
			if err != nil {
				return err
			}
			if err := cli.UpdateRegistryRoot(keys, root); err != nil {
				return err
			}
			return printJSON(map[string]any{"root": root})
		},
	}
}

func registryPublishedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "published",
		Short: "Show the registry root stored by the node",
		RunE: func(_ *cobra.Command, _ []string) error {
			cli, err := newClient()
			if err != nil {
				return err
			}
			root, err := cli.RegistryRoot()
			if err != nil {
				return err
			}
			return printJSON(root)
		},
	}
}
