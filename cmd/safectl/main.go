// safectl is the command-line client for the Safe signature protocol
// engine: hash transactions, pack and inspect signature sets, and check
// authorization against the on-chain owner set.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/safekit/safe/pkg/chain"
	"github.com/safekit/safe/pkg/config"
	"github.com/safekit/safe/pkg/exchange"
	"github.com/safekit/safe/pkg/hashing"
	"github.com/safekit/safe/pkg/logger"
	"github.com/safekit/safe/pkg/proposal"
	"github.com/safekit/safe/pkg/signature"
	"github.com/safekit/safe/pkg/types"
	"github.com/safekit/safe/pkg/verify"
)

const Version = "0.1.0"

func main() {
	app := &cli.Command{
		Name:    "safectl",
		Usage:   "Safe multisig client: hashing, signature packing, quorum checks",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Directory holding safectl.yaml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			hashCommand(),
			encodeCommand(),
			decodeCommand(),
			verifyCommand(),
			ownersCommand(),
			proposeCommand(),
			proposalsCommand(),
			collectCommand(),
			{
				Name:  "version",
				Usage: "Display version information",
				Action: func(ctx context.Context, c *cli.Command) error {
					fmt.Printf("safectl version %s\n", Version)
					return nil
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if c.String("log-level") != "" {
		level = c.String("log-level")
	}
	if err := logger.Init(level, true); err != nil {
		return nil, err
	}
	return cfg, nil
}

func txFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "to", Usage: "Target address", Required: true},
		&cli.StringFlag{Name: "value", Usage: "Native value in wei (decimal)", Value: "0"},
		&cli.StringFlag{Name: "data", Usage: "Calldata (0x-hex)"},
		&cli.UintFlag{Name: "operation", Usage: "0=call, 1=delegatecall", Value: 0},
		&cli.StringFlag{Name: "safe-tx-gas", Usage: "SafeTxGas (decimal)", Value: "0"},
		&cli.StringFlag{Name: "base-gas", Usage: "BaseGas (decimal)", Value: "0"},
		&cli.StringFlag{Name: "gas-price", Usage: "GasPrice (decimal)", Value: "0"},
		&cli.StringFlag{Name: "gas-token", Usage: "Gas token address (default native)"},
		&cli.StringFlag{Name: "refund-receiver", Usage: "Refund receiver address"},
		&cli.StringFlag{Name: "nonce", Usage: "Safe nonce (decimal; fetched from chain when omitted)"},
		&cli.StringFlag{Name: "safe", Usage: "Safe address (overrides config)"},
		&cli.Int64Flag{Name: "chain-id", Usage: "Chain id (overrides config)"},
	}
}

func buildTransaction(ctx context.Context, c *cli.Command, cfg *config.Config) (*types.SafeTransaction, error) {
	safe := cfg.SafeAddress
	if s := c.String("safe"); s != "" {
		var err error
		if safe, err = types.ParseAddress(s); err != nil {
			return nil, err
		}
	}
	if safe.IsZero() {
		return nil, fmt.Errorf("no safe address: set safe_address in config or pass --safe")
	}
	chainID := cfg.ChainID
	if c.Int64("chain-id") != 0 {
		chainID = c.Int64("chain-id")
	}

	to, err := types.ParseAddress(c.String("to"))
	if err != nil {
		return nil, err
	}
	op, err := types.ParseOperation(uint8(c.Uint("operation")))
	if err != nil {
		return nil, err
	}
	value, err := parseDecimal(c.String("value"))
	if err != nil {
		return nil, err
	}
	safeTxGas, err := parseDecimal(c.String("safe-tx-gas"))
	if err != nil {
		return nil, err
	}
	baseGas, err := parseDecimal(c.String("base-gas"))
	if err != nil {
		return nil, err
	}
	gasPrice, err := parseDecimal(c.String("gas-price"))
	if err != nil {
		return nil, err
	}
	data, err := parseHex(c.String("data"))
	if err != nil {
		return nil, err
	}
	gasToken := types.ZeroAddress
	if s := c.String("gas-token"); s != "" {
		if gasToken, err = types.ParseAddress(s); err != nil {
			return nil, err
		}
	}
	refund := types.ZeroAddress
	if s := c.String("refund-receiver"); s != "" {
		if refund, err = types.ParseAddress(s); err != nil {
			return nil, err
		}
	}

	var nonce *big.Int
	if s := c.String("nonce"); s != "" {
		if nonce, err = parseDecimal(s); err != nil {
			return nil, err
		}
	} else {
		client := chain.NewClient(chain.DefaultConfig(cfg.RPCURL), logger.L())
		reader := chain.NewReader(client, safe, nil)
		cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if nonce, err = reader.Nonce(cctx); err != nil {
			return nil, err
		}
	}

	return &types.SafeTransaction{
		MetaTransaction: types.MetaTransaction{To: to, Value: value, Data: data},
		Operation:       op,
		SafeTxGas:       safeTxGas,
		BaseGas:         baseGas,
		GasPrice:        gasPrice,
		GasToken:        gasToken,
		RefundReceiver:  refund,
		Nonce:           nonce,
		SafeAddress:     safe,
		ChainID:         big.NewInt(chainID),
	}, nil
}

func hashCommand() *cli.Command {
	return &cli.Command{
		Name:  "hash",
		Usage: "Compute the EIP-712 transaction hash owners must sign",
		Flags: txFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			tx, err := buildTransaction(ctx, c, cfg)
			if err != nil {
				return err
			}
			hash, err := hashing.TransactionHash(hashing.DefaultTypeHashes(), tx)
			if err != nil {
				return err
			}
			fmt.Printf("0x%x\n", hash)
			return nil
		},
	}
}

func encodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "encode",
		Usage: "Pack a proposal's collected signatures for execTransaction",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "hash", Usage: "Transaction hash (0x-hex)", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			hash, err := parseHash(c.String("hash"))
			if err != nil {
				return err
			}
			store, err := proposal.Open(cfg.DBPath, logger.L())
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck
			packed, err := store.Packed(hash)
			if err != nil {
				return err
			}
			fmt.Printf("0x%x\n", packed)
			return nil
		},
	}
}

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "decode",
		Usage: "Decode a packed signature buffer into structured signatures",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "hash", Usage: "Signed transaction hash (0x-hex)", Required: true},
			&cli.StringFlag{Name: "packed", Usage: "Packed signatures (0x-hex)", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if _, err := loadConfig(c); err != nil {
				return err
			}
			hash, err := parseHash(c.String("hash"))
			if err != nil {
				return err
			}
			packed, err := parseHex(c.String("packed"))
			if err != nil {
				return err
			}
			sigs, err := signature.Decode(packed, hash)
			if err != nil {
				return err
			}
			return printJSON(sigs)
		},
	}
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Check a packed signature set against the on-chain owner quorum",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "hash", Usage: "Signed transaction hash (0x-hex)", Required: true},
			&cli.StringFlag{Name: "packed", Usage: "Packed signatures (0x-hex; defaults to the stored proposal)"},
			&cli.StringFlag{Name: "safe", Usage: "Safe address (overrides config)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			safe := cfg.SafeAddress
			if s := c.String("safe"); s != "" {
				if safe, err = types.ParseAddress(s); err != nil {
					return err
				}
			}
			hash, err := parseHash(c.String("hash"))
			if err != nil {
				return err
			}

			var sigs []signature.Signature
			if s := c.String("packed"); s != "" {
				packed, err := parseHex(s)
				if err != nil {
					return err
				}
				if sigs, err = signature.Decode(packed, hash); err != nil {
					return err
				}
			} else {
				store, err := proposal.Open(cfg.DBPath, logger.L())
				if err != nil {
					return err
				}
				rec, err := store.Get(hash)
				store.Close() //nolint:errcheck
				if err != nil {
					return err
				}
				sigs = rec.Signatures
			}

			client := chain.NewClient(chain.DefaultConfig(cfg.RPCURL), logger.L())
			reader := chain.NewReader(client, safe, nil)
			cctx, cancel := context.WithTimeout(ctx, 60*time.Second)
			defer cancel()

			owners, err := reader.Owners(cctx)
			if err != nil {
				return err
			}
			threshold, err := reader.Threshold(cctx)
			if err != nil {
				return err
			}
			if threshold == 0 {
				return fmt.Errorf("safe reports threshold 0; refusing to verify")
			}

			validator := verify.NewValidator(client, safe, nil, logger.L())
			decision, err := validator.Authorize(cctx, sigs, owners, threshold, hash, nil)
			if err != nil {
				return err
			}
			return printJSON(decisionView(decision, threshold))
		},
	}
}

func ownersCommand() *cli.Command {
	return &cli.Command{
		Name:  "owners",
		Usage: "Read the Safe's owner set and threshold",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "safe", Usage: "Safe address (overrides config)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			safe := cfg.SafeAddress
			if s := c.String("safe"); s != "" {
				if safe, err = types.ParseAddress(s); err != nil {
					return err
				}
			}
			client := chain.NewClient(chain.DefaultConfig(cfg.RPCURL), logger.L())
			reader := chain.NewReader(client, safe, nil)
			cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			owners, err := reader.Owners(cctx)
			if err != nil {
				return err
			}
			threshold, err := reader.Threshold(cctx)
			if err != nil {
				return err
			}
			for _, o := range owners {
				fmt.Println(o.Hex())
			}
			fmt.Printf("threshold: %d\n", threshold)
			return nil
		},
	}
}

func proposeCommand() *cli.Command {
	return &cli.Command{
		Name:  "propose",
		Usage: "Store a pending transaction and optionally announce it over NATS",
		Flags: append(txFlags(),
			&cli.BoolFlag{Name: "announce", Usage: "Announce the proposal to co-owners"},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			tx, err := buildTransaction(ctx, c, cfg)
			if err != nil {
				return err
			}
			hash, err := hashing.TransactionHash(hashing.DefaultTypeHashes(), tx)
			if err != nil {
				return err
			}
			store, err := proposal.Open(cfg.DBPath, logger.L())
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck
			rec := &proposal.Record{Hash: hash, Transaction: *tx, CreatedAt: time.Now().UTC()}
			if err := store.Put(rec); err != nil {
				return err
			}
			if c.Bool("announce") {
				ex, err := exchange.Connect(cfg.NATSURL, logger.L())
				if err != nil {
					return err
				}
				defer ex.Close()
				if err := ex.Announce(exchange.Announcement{Hash: hash, Transaction: *tx}); err != nil {
					return err
				}
			}
			fmt.Printf("0x%x\n", hash)
			return nil
		},
	}
}

func proposalsCommand() *cli.Command {
	return &cli.Command{
		Name:  "proposals",
		Usage: "List pending proposals",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			store, err := proposal.Open(cfg.DBPath, logger.L())
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck
			recs, err := store.List()
			if err != nil {
				return err
			}
			for _, rec := range recs {
				fmt.Printf("0x%x  to=%s nonce=%s sigs=%d\n",
					rec.Hash, rec.Transaction.To.Hex(), rec.Transaction.Nonce, len(rec.Signatures))
			}
			return nil
		},
	}
}

func collectCommand() *cli.Command {
	return &cli.Command{
		Name:  "collect",
		Usage: "Collect co-owner signatures for a proposal over NATS",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "hash", Usage: "Transaction hash (0x-hex)", Required: true},
			&cli.IntFlag{Name: "want", Usage: "Number of signatures to wait for", Value: 1},
			&cli.DurationFlag{Name: "timeout", Usage: "Collection deadline", Value: 5 * time.Minute},
			&cli.StringFlag{Name: "safe", Usage: "Safe address (overrides config)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			safe := cfg.SafeAddress
			if s := c.String("safe"); s != "" {
				if safe, err = types.ParseAddress(s); err != nil {
					return err
				}
			}
			hash, err := parseHash(c.String("hash"))
			if err != nil {
				return err
			}
			store, err := proposal.Open(cfg.DBPath, logger.L())
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck
			ex, err := exchange.Connect(cfg.NATSURL, logger.L())
			if err != nil {
				return err
			}
			defer ex.Close()

			cctx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
			defer cancel()
			sigs, err := ex.Collect(cctx, safe, hash, int(c.Int("want")))
			for _, sig := range sigs {
				if addErr := store.AddSignature(hash, sig); addErr != nil {
					return addErr
				}
			}
			if err != nil {
				return fmt.Errorf("collected %d signature(s): %w", len(sigs), err)
			}
			fmt.Printf("collected %d signature(s)\n", len(sigs))
			return nil
		},
	}
}

func decisionView(d verify.Decision, threshold int) map[string]any {
	results := make([]map[string]any, 0, len(d.Results))
	for _, r := range d.Results {
		entry := map[string]any{"valid": r.Valid, "signer": r.Signer.Hex()}
		if r.Err != nil {
			entry["error"] = r.Err.Error()
		}
		results = append(results, entry)
	}
	return map[string]any{
		"valid":     d.Valid,
		"count":     d.Count,
		"threshold": threshold,
		"results":   results,
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func parseDecimal(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal value %q", s)
	}
	return n, nil
}

func parseHex(s string) ([]byte, error) {
	if s == "" || s == "0x" {
		return nil, nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}

func parseHash(s string) ([]byte, error) {
	b, err := parseHex(s)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(b))
	}
	return b, nil
}
