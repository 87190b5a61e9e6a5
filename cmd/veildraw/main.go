package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/veildraw/veildraw/internal/config"
	"github.com/veildraw/veildraw/internal/contract"
	"github.com/veildraw/veildraw/internal/stateclient"
	"github.com/veildraw/veildraw/internal/store"
	"github.com/veildraw/veildraw/pkg/db/pebble"
	"github.com/veildraw/veildraw/pkg/log"
	"github.com/veildraw/veildraw/pkg/serialization/abi"
)

type accountView struct {
	Address    string `json:"address"`
	BalanceVar uint32 `json:"balance_var"`
}

type lotteryView struct {
	LotteryID    string  `json:"lottery_id"`
	Creator      string  `json:"creator"`
	Status       string  `json:"status"`
	Deadline     string  `json:"deadline"`
	EntryCost    string  `json:"entry_cost"`
	PrizePool    string  `json:"prize_pool"`
	Winner       *string `json:"winner,omitempty"`
	WinnerIndex  *string `json:"winner_index,omitempty"`
	Entries      int     `json:"entries"`
	PrizeClaimed bool    `json:"prize_claimed"`
}

type lotteryAccountView struct {
	LotteryID  string `json:"lottery_id"`
	BalanceVar uint32 `json:"balance_var"`
}

type stateView struct {
	Token           string               `json:"token"`
	API             string               `json:"api"`
	Accounts        []accountView        `json:"accounts"`
	Lotteries       []lotteryView        `json:"lotteries"`
	LotteryAccounts []lotteryAccountView `json:"lottery_accounts"`
	QueueDepth      int                  `json:"queue_depth"`
}

// main fetches and decodes the lottery contract state from a chain node.
// go run main.go -contract <hex address> -node http://localhost:8300
func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	contractHex := flag.String("contract", "", "hex contract address (overrides config)")
	nodeURL := flag.String("node", "", "chain node base URL (overrides config)")
	shard := flag.String("shard", "", "shard identifier (overrides config)")
	logLevel := flag.String("loglevel", "", "zerolog level (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *contractHex != "" {
		cfg.Contract = *contractHex
	}
	if *nodeURL != "" {
		cfg.Node.URL = *nodeURL
	}
	if *shard != "" {
		cfg.Node.Shard = *shard
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if cfg.Contract == "" {
		fmt.Fprintln(os.Stderr, "a contract address is required (-contract or config)")
		os.Exit(1)
	}

	initLogging(cfg.Log)

	addr, err := cfg.ContractAddress()
	if err != nil {
		log.Root.Fatal().Err(err).Msg("invalid contract address")
	}

	var opts []stateclient.Option
	if cfg.Node.Shard != "" {
		opts = append(opts, stateclient.WithShard(cfg.Node.Shard))
	}
	client, err := stateclient.New(cfg.Node.URL, opts...)
	if err != nil {
		log.Root.Fatal().Err(err).Msg("invalid node url")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	raw, err := client.RawState(ctx, addr)
	if err != nil {
		log.Root.Fatal().Err(err).Msg("fetch contract state")
	}
	if cfg.DataDir != "" {
		cacheSnapshot(cfg.DataDir, addr, raw)
	}

	state, err := contract.DecodeContractState(raw, client.TreeStore(ctx, addr))
	if err != nil {
		log.Root.Fatal().Err(err).Msg("decode contract state")
	}
	snap, err := state.Snapshot()
	if err != nil {
		log.Root.Fatal().Err(err).Msg("enumerate contract state")
	}

	out, err := json.MarshalIndent(buildView(snap), "", "  ")
	if err != nil {
		log.Root.Fatal().Err(err).Msg("encode view")
	}
	fmt.Println(string(out))
}

func initLogging(cfg config.LogConfig) {
	level, err := log.ParseLogLevel(cfg.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	loggerType := log.JSONLogger
	if cfg.Format == "console" {
		loggerType = log.ConsoleLogger
	}
	log.Init(log.Options{LogLevel: level, Type: loggerType})
}

func cacheSnapshot(dataDir string, addr abi.Address, raw []byte) {
	kv, err := pebble.NewPersistentKVStore(dataDir)
	if err != nil {
		log.Store.Warn().Err(err).Msg("open snapshot cache")
		return
	}
	snapshots := store.NewSnapshots(kv)
	defer snapshots.Close() //nolint:errcheck
	if err := snapshots.Put(addr, uint64(time.Now().Unix()), raw); err != nil {
		log.Store.Warn().Err(err).Msg("cache snapshot")
	}
}

func buildView(snap *contract.Snapshot) stateView {
	view := stateView{
		Token:      hex.EncodeToString(snap.Token[:]),
		API:        hex.EncodeToString(snap.API[:]),
		QueueDepth: snap.QueueDepth,
	}
	for _, a := range snap.Accounts {
		view.Accounts = append(view.Accounts, accountView{
			Address:    hex.EncodeToString(a.Address[:]),
			BalanceVar: uint32(a.BalanceVar),
		})
	}
	for _, l := range snap.Lotteries {
		lv := lotteryView{
			LotteryID:    l.LotteryID.Dec(),
			Creator:      hex.EncodeToString(l.Creator[:]),
			Status:       l.Status.String(),
			Deadline:     time.Unix(l.Deadline, 0).UTC().Format(time.RFC3339),
			EntryCost:    l.EntryCost.Dec(),
			PrizePool:    l.PrizePool.Dec(),
			Entries:      len(l.EntriesSvars),
			PrizeClaimed: l.PrizeClaimed,
		}
		if l.Winner != nil {
			winner := hex.EncodeToString(l.Winner[:])
			lv.Winner = &winner
		}
		if l.WinnerIndex != nil {
			index := l.WinnerIndex.Dec()
			lv.WinnerIndex = &index
		}
		view.Lotteries = append(view.Lotteries, lv)
	}
	for _, la := range snap.LotteryAccounts {
		view.LotteryAccounts = append(view.LotteryAccounts, lotteryAccountView{
			LotteryID:  la.LotteryID.Dec(),
			BalanceVar: uint32(la.BalanceVar),
		})
	}
	return view
}
