package smartcontract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/abicall/abicall/cli/cmdargs"
	"github.com/abicall/abicall/cli/flags"
	"github.com/abicall/abicall/cli/options"
	"github.com/abicall/abicall/pkg/abi"
	"github.com/abicall/abicall/pkg/contract"
	"github.com/abicall/abicall/pkg/ethrpc"
	"github.com/abicall/abicall/pkg/manifest"
	"github.com/abicall/abicall/pkg/rpcclient/actor"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli"
)

var errNoMethod = errors.New("no method specified")

// NewCommands returns 'contract' command.
func NewCommands() []cli.Command {
	abiFlags := append([]cli.Flag{options.ConfigFile}, options.Contract...)
	callFlags := append(append([]cli.Flag{options.ConfigFile, options.Debug}, options.RPC...), options.Contract...)
	callFlags = append(callFlags, options.Key)
	sendFlags := append(callFlags,
		flags.AmountFlag{
			Name:  "value",
			Usage: "amount of native currency to attach (wei, or with 'gwei'/'eth' suffix)",
		},
		cli.BoolFlag{
			Name:  "await",
			Usage: "wait for the transaction to be included into a block",
		},
	)
	waitFlags := append([]cli.Flag{options.ConfigFile}, options.RPC...)

	return []cli.Command{{
		Name:  "contract",
		Usage: "call contract methods using its ABI",
		Subcommands: []cli.Command{
			{
				Name:      "methods",
				Usage:     "list contract methods",
				UsageText: "abicall contract methods [--config-file file] [--abi file] [--standard list]",
				Description: `Prints selectors and declarations of all methods known for the contract,
   no RPC connection is made.`,
				Action: listMethods,
				Flags:  abiFlags,
			},
			{
				Name:      "call",
				Usage:     "call pure or view method and print its results",
				UsageText: "abicall contract call [-r endpoint] [-a address] [--abi file] [--standard list] [-k key] <method> [<arg>...]",
				Description: `Executes read-only contract method and prints decoded results, one per
   line. If the key is given, the call is made on behalf of its address.
   State-changing methods can't be called, use 'send' for them.

` + cmdargs.ParamsParsingDoc,
				Action: callMethod,
				Flags:  callFlags,
			},
			{
				Name:      "send",
				Usage:     "send transaction calling state-changing method",
				UsageText: "abicall contract send [-r endpoint] [-a address] [--abi file] [--standard list] [-k key] [--value amount] [--await] <method> [<arg>...]",
				Description: `Signs and sends transaction calling the contract method and prints its
   hash. The key is required. Pure and view methods can't be sent, use 'call'
   for them. Native currency can only be attached to payable methods. With
   --await the command waits for the transaction to be included into a block
   and prints its receipt.

` + cmdargs.ParamsParsingDoc,
				Action: sendMethod,
				Flags:  sendFlags,
			},
			{
				Name:      "invoke",
				Usage:     "call or send contract method depending on its mutability",
				UsageText: "abicall contract invoke [-r endpoint] [-a address] [--abi file] [--standard list] [-k key] [--value amount] [--await] <method> [<arg>...]",
				Description: `Prints decoded results for pure and view methods, sends transaction
   and prints its hash for others.

` + cmdargs.ParamsParsingDoc,
				Action: invokeMethod,
				Flags:  sendFlags,
			},
			{
				Name:      "wait",
				Usage:     "wait for the transaction and print its receipt",
				UsageText: "abicall contract wait [-r endpoint] [-s timeout] <hash>",
				Action:    waitTx,
				Flags:     waitFlags,
			},
		},
	}}
}

func listMethods(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	a, err := cfg.Contract.LoadABI()
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	buf := bytes.NewBuffer(nil)
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	for _, m := range a.Methods() {
		sel := m.Selector()
		_, _ = tw.Write([]byte(hexutil.Encode(sel[:]) + "\t" + m.String() + "\n"))
	}
	_ = tw.Flush()
	fmt.Fprint(ctx.App.Writer, buf.String())
	return nil
}

// getMethodArgs resolves the method named by the first argument and converts
// the rest to its parameters.
func getMethodArgs(ctx *cli.Context, c *contract.Contract) (*manifest.Method, []abi.Value, error) {
	args := ctx.Args()
	if !args.Present() {
		return nil, nil, errNoMethod
	}
	_, params, err := cmdargs.ParseParams(args[1:], true)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to parse arguments: %w", err)
	}
	m, vals, err := cmdargs.ResolveMethod(c.ABI().Overloads(args[0]), params)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", args[0], err)
	}
	return m, vals, nil
}

func callMethod(ctx *cli.Context) error {
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	h, exitErr := options.GetContract(gctx, ctx, false)
	if exitErr != nil {
		return exitErr
	}
	defer h.Close()

	m, args, err := getMethodArgs(ctx, h.Contract)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	vals, err := h.Query(m.Name, args...)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	printValues(ctx, vals)
	return nil
}

func sendMethod(ctx *cli.Context) error {
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	h, exitErr := options.GetContract(gctx, ctx, true)
	if exitErr != nil {
		return exitErr
	}
	defer h.Close()

	m, args, err := getMethodArgs(ctx, h.Contract)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	txHash, err := h.SubmitWithValue(flags.AmountFromContext(ctx, "value"), m.Name, args...)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	return handleTx(ctx, h, txHash)
}

func invokeMethod(ctx *cli.Context) error {
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	h, exitErr := options.GetContract(gctx, ctx, false)
	if exitErr != nil {
		return exitErr
	}
	defer h.Close()

	m, args, err := getMethodArgs(ctx, h.Contract)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	inv, err := h.InvokeWithValue(flags.AmountFromContext(ctx, "value"), m.Name, args...)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if inv.IsReadOnly() {
		printValues(ctx, inv.Values)
		return nil
	}
	return handleTx(ctx, h, inv.TxID)
}

func waitTx(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) != 1 {
		return cli.NewExitError("transaction hash is missing", 1)
	}
	txHash, err := parseHash(args[0])
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	timeout := options.DefaultAwaitableTimeout
	if ctx.IsSet("timeout") {
		timeout = ctx.Duration("timeout")
	}
	gctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c, exitErr := options.GetRPCClientFromConfig(gctx, cfg)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	rcpt, err := actor.PollReceipt(gctx, c, txHash, cfg.Signer.PollInterval, nil)
	if rcpt != nil {
		dumpReceipt(ctx, rcpt)
	}
	if err != nil {
		return cli.NewExitError(fmt.Errorf("%s: %w", txHash.Hex(), err), 1)
	}
	return nil
}

// handleTx prints the hash of the transaction sent and awaits it if
// requested.
func handleTx(ctx *cli.Context, h *options.Handle, txHash common.Hash) error {
	if !ctx.Bool("await") {
		fmt.Fprintln(ctx.App.Writer, txHash.Hex())
		return nil
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	rcpt, err := h.Wait(gctx, txHash)
	if rcpt != nil {
		dumpReceipt(ctx, rcpt)
	}
	if err != nil {
		return cli.NewExitError(fmt.Errorf("%s: %w", txHash.Hex(), err), 1)
	}
	return nil
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid transaction hash: %s", s)
	}
	return common.BytesToHash(b), nil
}

func printValues(ctx *cli.Context, vals []abi.Value) {
	for _, v := range vals {
		fmt.Fprintln(ctx.App.Writer, v.String())
	}
}

func dumpReceipt(ctx *cli.Context, rcpt *ethrpc.Receipt) {
	buf := bytes.NewBuffer(nil)

	// Ignore the errors below because `Write` to buffer doesn't return error.
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	_, _ = tw.Write([]byte("Hash:\t" + rcpt.TxHash.Hex() + "\n"))
	_, _ = tw.Write([]byte("BlockHash:\t" + rcpt.BlockHash.Hex() + "\n"))
	if rcpt.BlockNumber != nil {
		_, _ = tw.Write([]byte("BlockNumber:\t" + rcpt.BlockNumber.ToInt().String() + "\n"))
	}
	_, _ = tw.Write([]byte(fmt.Sprintf("GasUsed:\t%d\n", uint64(rcpt.GasUsed))))
	_, _ = tw.Write([]byte(fmt.Sprintf("Success:\t%t\n", rcpt.Succeeded())))
	_ = tw.Flush()
	fmt.Fprint(ctx.App.Writer, buf.String())
}
