package flags

import (
	"errors"
	"flag"
	"fmt"
	"math/big"
	"strings"

	"github.com/urfave/cli"
)

// Denominations of native currency amounts accepted by Amount, "gwei" must
// be checked before "wei".
var units = []struct {
	suffix   string
	decimals int
}{
	{"gwei", 9},
	{"wei", 0},
	{"ether", 18},
	{"eth", 18},
}

// Amount is a native currency amount in wei with flag.Value methods.
type Amount struct {
	Value *big.Int
}

// AmountFlag is a flag with type Amount. Values are integers of wei or
// decimals with "gwei", "eth" or "ether" suffix ("0.5eth").
type AmountFlag struct {
	Name  string
	Usage string
	Value Amount
}

var (
	_ flag.Value = (*Amount)(nil)
	_ cli.Flag   = AmountFlag{}
)

// String implements the fmt.Stringer interface.
func (a Amount) String() string {
	if a.Value == nil {
		return "0"
	}
	return a.Value.String()
}

// Set implements the flag.Value interface.
func (a *Amount) Set(s string) error {
	v, err := ParseAmount(s)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	a.Value = v
	return nil
}

// String returns a readable representation of this value
// (for usage defaults).
func (f AmountFlag) String() string {
	var names []string
	eachName(f.Name, func(name string) {
		names = append(names, getNameHelp(name))
	})

	return strings.Join(names, ", ") + "\t" + f.Usage
}

// GetName returns the name of the flag.
func (f AmountFlag) GetName() string {
	return f.Name
}

// Apply populates the flag given the flag set and environment.
// Ignores errors.
func (f AmountFlag) Apply(set *flag.FlagSet) {
	eachName(f.Name, func(name string) {
		set.Var(&f.Value, name, f.Usage)
	})
}

// AmountFromContext returns the amount set for the flag with the given
// name, it's nil if the flag wasn't set.
func AmountFromContext(ctx *cli.Context, name string) *big.Int {
	a, ok := ctx.Generic(name).(*Amount)
	if !ok {
		return nil
	}
	return a.Value
}

// ParseAmount parses an amount of wei, integer part and fractional part are
// scaled by the unit given as suffix.
func ParseAmount(s string) (*big.Int, error) {
	num := strings.TrimSpace(strings.ToLower(s))
	var decimals int
	for _, u := range units {
		if n, ok := strings.CutSuffix(num, u.suffix); ok {
			num, decimals = strings.TrimSpace(n), u.decimals
			break
		}
	}
	intPart, frac, _ := strings.Cut(num, ".")
	if intPart == "" && frac == "" {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("invalid amount %q: too many decimal places", s)
	}
	digits := intPart + frac + strings.Repeat("0", decimals-len(frac))
	if strings.ContainsAny(digits, "+-") {
		return nil, errors.New("amount can't be signed")
	}
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
