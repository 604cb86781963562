package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"fintrack/internal/auth"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/currency"
	"fintrack/internal/storage"
)

func commands(out io.Writer) []subcommands.Command {
	return []subcommands.Command{
		&ratesCmd{out: out},
		&convertCmd{out: out},
		&tokenCmd{out: out},
		&migrateCmd{out: out},
		&sheetsAuthCmd{out: out},
	}
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}

type ratesCmd struct {
	out     io.Writer
	base    string
	asJSON  bool
	timeout time.Duration
}

func (*ratesCmd) Name() string     { return "rates" }
func (*ratesCmd) Synopsis() string { return "print the latest exchange rates for a base currency" }
func (*ratesCmd) Usage() string {
	return `fintrackctl rates [-base <code>] [-json]

  Fetches the upstream rate table pivoted on the base currency. With -json the
  upstream body is printed unchanged.
`
}

func (c *ratesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.base, "base", "USD", "ISO-4217 code the table is pivoted on.")
	f.BoolVar(&c.asJSON, "json", false, "Print the raw upstream JSON.")
	f.DurationVar(&c.timeout, "timeout", 15*time.Second, "Overall timeout.")
}

func (c *ratesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	base, err := core.NormalizeCurrency(c.base)
	if err != nil {
		return fail(err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	snap, err := cli.NewRateProvider(config.Load()).Rates(ctx, base)
	if err != nil {
		return fail(err)
	}
	if c.asJSON {
		fmt.Fprintln(c.out, string(snap.Raw))
		return subcommands.ExitSuccess
	}

	codes := make([]string, 0, len(snap.Rates))
	for code := range snap.Rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	fmt.Fprintf(c.out, "1 %s as of %s\n", snap.Base, snap.FetchedAt.UTC().Format(time.RFC3339))
	for _, code := range codes {
		fmt.Fprintf(c.out, "%-4s %s\n", code, snap.Rates[code].String())
	}
	return subcommands.ExitSuccess
}

type convertCmd struct {
	out     io.Writer
	amount  string
	from    string
	to      string
	fresh   bool
	timeout time.Duration
}

func (*convertCmd) Name() string     { return "convert" }
func (*convertCmd) Synopsis() string { return "convert an amount between two currencies" }
func (*convertCmd) Usage() string {
	return `fintrackctl convert -amount <n> -from <code> -to <code> [-fresh]

  Converts with the table pivoted on -to, honouring RATES_STRICT. With -fresh
  the table pivoted on -from is used instead and the result is rounded to
  two decimals.
`
}

func (c *convertCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.amount, "amount", "", "Amount to convert.")
	f.StringVar(&c.from, "from", "", "Currency of the amount.")
	f.StringVar(&c.to, "to", "", "Target currency.")
	f.BoolVar(&c.fresh, "fresh", false, "Restate using the table pivoted on -from.")
	f.DurationVar(&c.timeout, "timeout", 15*time.Second, "Overall timeout.")
}

func (c *convertCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, err := decimal.NewFromString(c.amount)
	if err != nil {
		return fail(core.NewValidationError("amount", "%q is not a number", c.amount))
	}
	from, err := core.NormalizeCurrency(c.from)
	if err != nil {
		return fail(err)
	}
	to, err := core.NormalizeCurrency(c.to)
	if err != nil {
		return fail(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cfg := config.Load()
	provider := cli.NewRateProvider(cfg)

	var result decimal.Decimal
	if c.fresh {
		result, err = currency.ConvertFresh(ctx, provider, amount, from, to)
	} else {
		var table currency.Rates
		table, err = provider.Latest(ctx, to)
		if err == nil {
			result, err = cli.NewConverter(cfg).Convert(amount, from, to, table)
		}
	}
	if err != nil {
		return fail(err)
	}

	fmt.Fprintf(c.out, "%s = %s\n", currency.Format(amount, from), currency.Format(result, to))
	return subcommands.ExitSuccess
}

type tokenCmd struct {
	out  io.Writer
	user string
	ttl  time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "mint a bearer token for a user" }
func (*tokenCmd) Usage() string {
	return `fintrackctl token -user <id> [-ttl <duration>]

  Signs a token with JWT_SECRET and JWT_ISSUER.
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "User id carried by the token.")
	f.DurationVar(&c.ttl, "ttl", auth.DefaultTokenTTL, "Token lifetime.")
}

func (c *tokenCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg := config.Load()
	if len(cfg.JWTSecret) < 16 {
		return fail(fmt.Errorf("%w: JWT_SECRET must be set and at least 16 characters long", core.ErrConfiguration))
	}
	token, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer).Issue(c.user, c.ttl)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintln(c.out, token)
	return subcommands.ExitSuccess
}

type migrateCmd struct {
	out    io.Writer
	dbPath string
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply pending SQLite migrations" }
func (*migrateCmd) Usage() string {
	return `fintrackctl migrate [-db <path>]

  Applies the embedded schema and currency seed to the database, defaulting
  to SQLITE_DB_PATH.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dbPath, "db", "", "SQLite database path.")
}

func (c *migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	dbPath := c.dbPath
	if dbPath == "" {
		dbPath = config.Load().SQLiteDBPath
	}
	version, err := storage.RunMigrations(dbPath)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(c.out, "%s at schema version %d\n", dbPath, version)
	return subcommands.ExitSuccess
}
