package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/phantomstreams/phantom-sequencer/cluster"
	"github.com/phantomstreams/phantom-sequencer/config"
	"github.com/phantomstreams/phantom-sequencer/ledger"
	"github.com/phantomstreams/phantom-sequencer/log"
	"github.com/phantomstreams/phantom-sequencer/service"
	"github.com/phantomstreams/phantom-sequencer/storage"
	flag "github.com/spf13/pflag"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

func main() {
	envFile := ".env"
	// the env file sets the flag defaults, so it is read before parsing
	for i, arg := range os.Args[1:] {
		if arg == "--env" && i+2 < len(os.Args) {
			envFile = os.Args[i+2]
		}
		if v, ok := strings.CutPrefix(arg, "--env="); ok {
			envFile = v
		}
	}
	if err := config.LoadDotEnv(envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	conf := config.Default()
	if err := conf.ApplyEnv(os.Getenv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	authority := conf.Authority.Hex()
	if conf.Authority == (common.Address{}) {
		authority = ""
	}
	flag.String("env", envFile, "file with PHANTOM_* variables")
	flag.StringVar(&conf.DataDir, "datadir", conf.DataDir, "data directory")
	flag.StringVar(&conf.APIHost, "host", conf.APIHost, "API listen host")
	flag.IntVar(&conf.APIPort, "port", conf.APIPort, "API listen port")
	flag.StringVar(&conf.LogLevel, "logLevel", conf.LogLevel, "log level (debug, info, warn, error)")
	flag.StringVar(&conf.LogOutput, "logOutput", conf.LogOutput, "log output (stdout, stderr or file path)")
	flag.StringVar(&authority, "authority", authority, "address of the authority that publishes roots and manages votes")
	flag.StringVar(&conf.Hasher, "hasher", conf.Hasher, "hasher of the registry tree and the nullifiers")
	flag.StringVar(&conf.Curve, "curve", conf.Curve, "curve of the cluster key")
	flag.IntVar(&conf.Nodes, "nodes", conf.Nodes, "number of cluster nodes")
	flag.IntVar(&conf.Threshold, "threshold", conf.Threshold, "partial decryptions required to open a cluster envelope")
	flag.BoolVar(&conf.Attest, "attest", conf.Attest, "attach a groth16 proof to every revealed winner")
	flag.IntVar(&conf.Workers, "workers", conf.Workers, "number of sequencer workers")
	flag.DurationVar(&conf.Tick, "tick", conf.Tick, "sequencer polling interval")
	flag.DurationVar(&conf.MonitorInterval, "monitorInterval", conf.MonitorInterval, "vote monitor interval")
	flag.Parse()

	if authority != "" {
		if !common.IsHexAddress(authority) {
			fmt.Fprintf(os.Stderr, "invalid authority address %q\n", authority)
			os.Exit(1)
		}
		conf.Authority = common.HexToAddress(authority)
	}
	if err := conf.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(1)
	}
	log.Init(conf.LogLevel, conf.LogOutput, nil)

	ledgerDB, err := metadb.New(db.TypePebble, conf.Path(config.LedgerDir))
	if err != nil {
		log.Fatal(err)
	}
	queueDB, err := metadb.New(db.TypePebble, conf.Path(config.QueueDir))
	if err != nil {
		log.Fatal(err)
	}
	clusterDB, err := metadb.New(db.TypePebble, conf.Path(config.ClusterDir))
	if err != nil {
		log.Fatal(err)
	}

	lg, err := ledger.New(ledgerDB, conf.Authority)
	if err != nil {
		log.Fatal(err)
	}
	cl, err := cluster.New(conf.Cluster(), clusterDB)
	if err != nil {
		log.Fatal(err)
	}
	stg := storage.New(queueDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seq := service.NewSequencer(stg, cl, lg, conf.Workers, conf.Tick)
	if err := seq.Start(ctx); err != nil {
		log.Fatal(err)
	}
	vm := service.NewVoteMonitor(lg, stg, conf.MonitorInterval)
	if err := vm.Start(ctx); err != nil {
		log.Fatal(err)
	}
	api := service.NewAPI(stg, lg, cl, conf.APIHost, conf.APIPort)
	if err := api.Start(ctx); err != nil {
		log.Fatal(err)
	}
	host, port := api.HostPort()
	log.Infow("phantom node started",
		"api", fmt.Sprintf("%s:%d", host, port),
		"authority", conf.Authority.Hex(),
		"datadir", conf.DataDir)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Infow("shutting down")

	api.Stop()
	vm.Stop()
	seq.Stop()
	stg.Close()
	for _, d := range []db.Database{ledgerDB, clusterDB} {
		if err := d.Close(); err != nil {
			log.Warnw("failed to close database", "error", err.Error())
		}
	}
}
