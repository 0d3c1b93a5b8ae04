package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/abicall/abicall/cli/query"
	"github.com/abicall/abicall/cli/smartcontract"
	"github.com/abicall/abicall/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "abicall\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates an abicall instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "abicall"
	ctl.Version = config.Version
	ctl.Usage = "ABI-driven client for deployed smart contracts"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, smartcontract.NewCommands()...)
	ctl.Commands = append(ctl.Commands, query.NewCommands()...)
	return ctl
}
