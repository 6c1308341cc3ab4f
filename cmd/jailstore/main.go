// jailstore runs single storage operations against a configured store.
//
//	jailstore [flags] <command> [args]
//
// The store URI, jail and working directory come from the configuration
// file, JAILSTORE_* environment variables and flags, in increasing order of
// precedence.
package main

import (
	"context"
	stderr "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/objectfs/jailstore/internal/adapter"
	"github.com/objectfs/jailstore/internal/config"
	"github.com/objectfs/jailstore/pkg/errors"
	"github.com/objectfs/jailstore/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()

	if err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var storeErr *errors.StoreError
		if stderr.As(err, &storeErr) {
			fmt.Fprintf(os.Stderr, "hint: %s\n", storeErr.GetRecommendation())
		}
		os.Exit(1)
	}
}

type options struct {
	configFile string
	uri        string
	jail       string
	pwd        string
	readOnly   bool
	logLevel   string
	logFormat  string
	quota      string
	slot       string
	compress   bool

	recursive bool
	absolute  bool
	to        string
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, errOut io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("jailstore", pflag.ContinueOnError)
	flagSet.SetOutput(errOut)
	flagSet.StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	flagSet.StringVar(&opts.uri, "uri", "", "store URI (memory://, file://, badger://, s3://)")
	flagSet.StringVar(&opts.jail, "jail", "", "absolute jail directory")
	flagSet.StringVar(&opts.pwd, "pwd", "", "working directory inside the jail")
	flagSet.BoolVar(&opts.readOnly, "read-only", false, "reject mutations (file:// only)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR")
	flagSet.StringVar(&opts.logFormat, "log-format", "", "text or json")
	flagSet.StringVar(&opts.quota, "quota", "", "slot quota, e.g. 64MB")
	flagSet.StringVar(&opts.slot, "slot", "", "default slot name for blob stores")
	flagSet.BoolVar(&opts.compress, "compress", false, "zstd-compress persisted slots")
	flagSet.BoolVarP(&opts.recursive, "recursive", "r", false, "recurse (ls, mkdir, rm, rmdir, write)")
	flagSet.BoolVar(&opts.absolute, "absolute", false, "print absolute paths (ls)")
	flagSet.StringVar(&opts.to, "to", "", "target store URI for cp (default: same store)")
	flagSet.Usage = func() {
		fmt.Fprintf(errOut, "usage: jailstore [flags] <command> [args]\n\ncommands:\n")
		for _, name := range commandNames() {
			fmt.Fprintf(errOut, "  %-7s %s\n", name, commands[name].usage)
		}
		fmt.Fprintf(errOut, "\nflags:\n%s", flagSet.FlagUsages())
	}

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		flagSet.Usage()
		return fmt.Errorf("no command given")
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		flagSet.Usage()
		return fmt.Errorf("unknown command %q", rest[0])
	}
	if len(rest)-1 < cmd.minArgs || (cmd.maxArgs >= 0 && len(rest)-1 > cmd.maxArgs) {
		return fmt.Errorf("usage: jailstore %s %s", rest[0], cmd.usage)
	}

	cfg, err := loadConfig(flagSet, &opts)
	if err != nil {
		return err
	}

	logOut := errOut
	if cfg.Global.LogFile != "" {
		file, err := utils.OpenLogFile(cfg.Global.LogFile)
		if err != nil {
			return err
		}
		defer file.Close()
		logOut = file
	}
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:  cfg.Global.LogLevel,
		Format: cfg.Global.LogFormat,
		Output: logOut,
		Prefix: "jailstore",
	})
	if err != nil {
		return err
	}

	a, err := adapter.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	env := &environment{
		ctx:     ctx,
		config:  cfg,
		adapter: a,
		opts:    opts,
		stdin:   stdin,
		stdout:  stdout,
		logger:  logger,
	}
	if err := cmd.run(env, rest[1:]); err != nil {
		return err
	}
	return a.Store().Flush(ctx)
}

func loadConfig(flagSet *pflag.FlagSet, opts *options) (*config.Configuration, error) {
	cfg := config.NewDefault()
	if opts.configFile != "" {
		if err := cfg.LoadFromFile(opts.configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	if flagSet.Changed("uri") {
		cfg.Store.URI = opts.uri
	}
	if flagSet.Changed("jail") {
		cfg.Store.Jail = opts.jail
	}
	if flagSet.Changed("pwd") {
		cfg.Store.Pwd = opts.pwd
	}
	if flagSet.Changed("read-only") {
		cfg.Store.ReadOnly = opts.readOnly
	}
	if flagSet.Changed("log-level") {
		cfg.Global.LogLevel = opts.logLevel
	}
	if flagSet.Changed("log-format") {
		cfg.Global.LogFormat = opts.logFormat
	}
	if flagSet.Changed("slot") {
		cfg.Slots.Slot = opts.slot
	}
	if flagSet.Changed("compress") {
		cfg.Slots.Compression.Enabled = opts.compress
	}
	if flagSet.Changed("quota") {
		quota, err := utils.ParseBytes(opts.quota)
		if err != nil {
			return nil, errors.NewError(errors.ErrCodeInvalidConfig, fmt.Sprintf("invalid --quota: %v", err)).
				WithComponent("cli").
				WithContext("field", "slots.quota_bytes")
		}
		cfg.Slots.QuotaBytes = quota
	}

	return cfg, nil
}
