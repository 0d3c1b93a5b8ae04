package query

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/abicall/abicall/cli/cmdargs"
	"github.com/abicall/abicall/cli/options"
	"github.com/abicall/abicall/pkg/encoding/address"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli"
)

// NewCommands returns 'query' command.
func NewCommands() []cli.Command {
	queryFlags := append([]cli.Flag{options.ConfigFile}, options.RPC...)
	return []cli.Command{{
		Name:  "query",
		Usage: "query chain state",
		Subcommands: []cli.Command{
			{
				Name:      "chain",
				Usage:     "print chain ID and height",
				UsageText: "abicall query chain [-r endpoint]",
				Action:    queryChain,
				Flags:     queryFlags,
			},
			{
				Name:      "balance",
				Usage:     "print native currency balance of the account in wei",
				UsageText: "abicall query balance [-r endpoint] <address>",
				Action:    queryBalance,
				Flags:     queryFlags,
			},
			{
				Name:      "tx",
				Usage:     "query transaction status",
				UsageText: "abicall query tx [-r endpoint] <hash>",
				Action:    queryTx,
				Flags:     queryFlags,
			},
		},
	}}
}

func queryChain(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	c, exitErr := options.GetRPCClient(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	chainID, err := c.ChainID()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	height, err := c.BlockNumber()
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	buf := bytes.NewBuffer(nil)
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	_, _ = tw.Write([]byte("ChainID:\t" + chainID.String() + "\n"))
	_, _ = tw.Write([]byte(fmt.Sprintf("Height:\t%d\n", height)))
	_ = tw.Flush()
	fmt.Fprint(ctx.App.Writer, buf.String())
	return nil
}

func queryBalance(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) != 1 {
		return cli.NewExitError("address is missing", 1)
	}
	addr, err := address.StringToAddress(args[0])
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	c, exitErr := options.GetRPCClient(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	balance, err := c.GetBalance(addr)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, balance.String())
	return nil
}

func queryTx(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) == 0 {
		return cli.NewExitError("transaction hash is missing", 1)
	}
	b, err := hexutil.Decode(args[0])
	if err != nil || len(b) != common.HashLength {
		return cli.NewExitError(fmt.Sprintf("invalid tx hash: %s", args[0]), 1)
	}
	txHash := common.BytesToHash(b)

	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	c, exitErr := options.GetRPCClient(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	rcpt, err := c.GetTransactionReceipt(txHash)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	buf := bytes.NewBuffer(nil)
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	_, _ = tw.Write([]byte("Hash:\t" + txHash.Hex() + "\n"))
	_, _ = tw.Write([]byte(fmt.Sprintf("OnChain:\t%t\n", rcpt != nil)))
	if rcpt != nil {
		_, _ = tw.Write([]byte("BlockHash:\t" + rcpt.BlockHash.Hex() + "\n"))
		_, _ = tw.Write([]byte(fmt.Sprintf("GasUsed:\t%d\n", uint64(rcpt.GasUsed))))
		_, _ = tw.Write([]byte(fmt.Sprintf("Success:\t%t\n", rcpt.Succeeded())))
	}
	_ = tw.Flush()
	fmt.Fprint(ctx.App.Writer, buf.String())
	return nil
}
