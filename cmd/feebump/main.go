// Command feebump inspects unconfirmed wallet transactions and drafts
// RBF or CPFP fee bumps for them.
package main

import (
	"errors"
	"os"

	"github.com/jessevdk/go-flags"
)

// options are the global flags. Set flags override the config file.
type options struct {
	DataDir    string `short:"d" long:"datadir" description:"Directory holding config, address book and boost history"`
	ConfigFile string `short:"C" long:"configfile" description:"Path to the config file (default <datadir>/config)"`
	Network    string `short:"n" long:"network" description:"mainnet, testnet, signet or regtest"`
	Backend    string `short:"b" long:"backend" description:"Chain backend: rpc or esplora"`
	RPCURL     string `long:"rpcurl" description:"bitcoind JSON-RPC URL"`
	RPCUser    string `long:"rpcuser" description:"bitcoind RPC username"`
	RPCPass    string `long:"rpcpass" description:"bitcoind RPC password" default-mask:"-"`
	EsploraURL string `long:"esploraurl" description:"Esplora API base URL"`
	LogLevel   string `long:"loglevel" description:"trace, debug, info, warn, error, critical or off"`
}

var opts options

func newParser() *flags.Parser {
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "bitcoin fee bump tool"

	mustAdd(parser.AddCommand("check", "Check whether a transaction can be boosted",
		"Reports RBF and CPFP support for an unconfirmed wallet transaction.", &checkCmd{}))
	mustAdd(parser.AddCommand("draft", "Build a boost draft",
		"Builds an unsigned RBF or CPFP draft and prints it as JSON.", &draftCmd{}))
	mustAdd(parser.AddCommand("history", "Show a transaction's boost chain",
		"Prints the recorded ancestors and descendants of a transaction and its logical value.", &historyCmd{}))
	mustAdd(parser.AddCommand("record", "Record a broadcast boost",
		"Stores a boost and its parents in the history database.", &recordCmd{}))
	mustAdd(parser.AddCommand("address", "Add wallet addresses",
		"Adds receive or change addresses to the address book.", &addressCmd{}))
	return parser
}

func mustAdd(_ *flags.Command, err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	if _, err := newParser().Parse(); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
