package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hookorder/params"
	"github.com/uhyunpark/hookorder/pkg/chain"
	"github.com/uhyunpark/hookorder/pkg/crypto"
	"github.com/uhyunpark/hookorder/pkg/order"
	"github.com/uhyunpark/hookorder/pkg/orderbook"
	"github.com/uhyunpark/hookorder/pkg/pipeline"
	"github.com/uhyunpark/hookorder/pkg/util"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (env and .env still override it)")
	envPath := flag.String("env", "", ".env file (default: ./.env)")
	dryRun := flag.Bool("dry-run", false, "sign the order and print it without submitting")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *envPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Log.File != "" {
		logger, err = util.NewLoggerWithFile(cfg.Log.File, cfg.Log.Level)
	} else {
		logger, err = util.NewLogger(cfg.Log.Level)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *dryRun); err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			sugar.Errorw("order_failed", "stage", stageErr.Stage, "err", stageErr.Err)
		} else {
			sugar.Errorw("order_failed", "err", err)
		}
		var subErr *orderbook.SubmissionError
		if errors.As(err, &subErr) && subErr.Transient {
			sugar.Warnw("order_book_unavailable", "status", subErr.Status, "hint", "safe to run again")
		}
		logger.Sync()
		os.Exit(1)
	}
}

func loadConfig(path, envPath string) (params.Config, error) {
	var cfg params.Config
	if path != "" {
		var err error
		if cfg, err = params.LoadFile(path, envPath); err != nil {
			return cfg, err
		}
	} else {
		cfg = params.LoadFromEnv(envPath)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, cfg.ValidateWallet()
}

func loadKey(w params.Wallet) (*crypto.Signer, error) {
	if w.Mnemonic != "" {
		return crypto.FromMnemonic(w.Mnemonic, w.DerivationPath)
	}
	return crypto.FromPrivateKeyHex(w.PrivateKey)
}

func run(ctx context.Context, cfg params.Config, logger *zap.Logger, dryRun bool) error {
	sugar := logger.Sugar()

	key, err := loadKey(cfg.Wallet)
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}

	client, err := chain.Dial(ctx, cfg.Network.RPCURL)
	if err != nil {
		return err
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return err
	}
	sugar.Infow("connected",
		"chain_id", chainID,
		"network", params.NetworkName(chainID),
		"account", key.Address().Hex(),
	)
	if chainID != cfg.Network.ChainID {
		return fmt.Errorf("node is on chain %d, config expects %d", chainID, cfg.Network.ChainID)
	}

	buyAmount, err := order.ParseAmount(cfg.Sweep.BuyAmount)
	if err != nil {
		return err
	}
	feeAmount, err := order.ParseAmount(cfg.Sweep.FeeAmount)
	if err != nil {
		return err
	}

	req, err := pipeline.PlanSweep(ctx, client, pipeline.SweepParams{
		Token:     common.HexToAddress(cfg.Sweep.Token),
		Holder:    common.HexToAddress(cfg.Sweep.Holder),
		Recipient: common.HexToAddress(cfg.Sweep.Recipient),
		BuyToken:  common.HexToAddress(cfg.Sweep.BuyToken),
		BuyAmount: buyAmount,
		FeeAmount: feeAmount,
		Validity:  cfg.Sweep.Validity,
		AppCode:   cfg.AppData.AppCode,
	})
	if err != nil {
		return err
	}
	req.Document.Environment = cfg.AppData.Environment
	req.Scheme = crypto.SigningScheme(cfg.Sweep.SigningScheme)

	deps := pipeline.Deps{
		Signer:        crypto.NewOrderSigner(crypto.DomainFor(chainID)),
		Key:           key,
		Logger:        logger,
		UploadAppData: cfg.Sweep.UploadAppData,
		Submitter: orderbook.NewClient(cfg.Network.OrderBook(),
			orderbook.WithExplorer(cfg.Network.Explorer())),
	}
	if cfg.Wallet.ExpectedAddress != "" {
		deps.ExpectedOwner = common.HexToAddress(cfg.Wallet.ExpectedAddress)
	}
	p := pipeline.New(deps)

	if dryRun {
		res, err := p.Prepare(req)
		if err != nil {
			return err
		}
		oc := orderbook.NewOrderCreation(res.Order, res.Signature, res.Owner, res.AppData)
		sugar.Infow("dry_run", "order", oc)
		fmt.Println(res.AppData.Text())
		return nil
	}

	res, err := p.Run(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println(res.Submission.ExplorerURL)
	return nil
}
