package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/phantomstreams/phantom-sequencer/api/client"
	"github.com/phantomstreams/phantom-sequencer/crypto/ethereum"
	"github.com/phantomstreams/phantom-sequencer/envelope"
	"github.com/phantomstreams/phantom-sequencer/log"
	"github.com/phantomstreams/phantom-sequencer/storage"
	"github.com/phantomstreams/phantom-sequencer/util"
	"github.com/spf13/cobra"
)

const (
	defaultAPI  = "http://127.0.0.1:9090"
	pollPeriod  = 200 * time.Millisecond
	envAPI      = "PHANTOM_API"
	envOwnerKey = "PHANTOM_OWNER_KEY"
	envAuthKey  = "PHANTOM_AUTHORITY_KEY"
)

// globals shared by every command
var (
	apiURL      string
	apiRetries  int
	apiTimeout  time.Duration
	waitTimeout time.Duration
	ownerKeyHex string
	authKeyHex  string
)

func main() {
	_ = godotenv.Load()
	log.Init(log.LogLevelWarn, "stderr", nil)

	rootCmd := &cobra.Command{
		Use:           "phantomctl",
		Short:         "Client of a phantom node: registry, ownership proofs, royalty votes and payments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr(envAPI, defaultAPI), "node API URL")
	rootCmd.PersistentFlags().IntVar(&apiRetries, "retries", client.DefaultRetries, "attempts of each API request")
	rootCmd.PersistentFlags().DurationVar(&apiTimeout, "timeout", client.DefaultTimeout, "timeout of each API request")
	rootCmd.PersistentFlags().DurationVar(&waitTimeout, "wait", time.Minute, "how long to wait for a computation, 0 to return right after queueing")
	rootCmd.PersistentFlags().StringVar(&ownerKeyHex, "owner-key", os.Getenv(envOwnerKey), "owner X25519 private key (hex)")
	rootCmd.PersistentFlags().StringVar(&authKeyHex, "authority-key", os.Getenv(envAuthKey), "authority ethereum private key (hex)")

	rootCmd.AddCommand(
		keygenCmd(),
		infoCmd(),
		registryCmd(),
		verifyCmd(),
		voteCmd(),
		paymentCmd(),
		resultCmd(),
		eventsCmd(),
	)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func newClient() (*client.HTTPclient, error) {
	return client.New(apiURL, client.WithRetries(apiRetries), client.WithTimeout(apiTimeout))
}

func ownerKeys() (*envelope.Keypair, error) {
	if ownerKeyHex == "" {
		return nil, fmt.Errorf("--owner-key flag or %s env var is required", envOwnerKey)
	}
	priv, err := hex.DecodeString(util.TrimHex(ownerKeyHex))
	if err != nil {
		return nil, fmt.Errorf("invalid owner key: %w", err)
	}
	return envelope.KeypairFromPrivate(priv)
}

func authorityKeys() (*ethereum.SignKeys, error) {
	if authKeyHex == "" {
		return nil, fmt.Errorf("--authority-key flag or %s env var is required", envAuthKey)
	}
	keys := ethereum.NewSignKeys()
	if err := keys.AddHexKey(authKeyHex); err != nil {
		return nil, fmt.Errorf("invalid authority key: %w", err)
	}
	return keys, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// wait polls the computation until it finishes. With a zero wait timeout
// only the id is printed.
func wait(cli *client.HTTPclient, id uuid.UUID) (*storage.Result, error) {
	if waitTimeout == 0 {
		return nil, printJSON(map[string]string{"computationId": id.String()})
	}
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	return cli.WaitComputation(ctx, id, pollPeriod)
}
