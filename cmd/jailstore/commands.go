package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/objectfs/jailstore/internal/adapter"
	"github.com/objectfs/jailstore/internal/config"
	"github.com/objectfs/jailstore/pkg/store"
	"github.com/objectfs/jailstore/pkg/types"
)

type environment struct {
	ctx     context.Context
	config  *config.Configuration
	adapter *adapter.Adapter
	opts    options
	stdin   io.Reader
	stdout  io.Writer
	logger  *slog.Logger
}

func (e *environment) store() *store.Store {
	return e.adapter.Store()
}

type command struct {
	usage   string
	minArgs int
	// maxArgs < 0 means unbounded.
	maxArgs int
	run     func(env *environment, args []string) error
}

var commands = map[string]command{
	"cat":   {usage: "PATH...", minArgs: 1, maxArgs: -1, run: runCat},
	"write": {usage: "PATH [CONTENT]  (stdin when CONTENT is omitted)", minArgs: 1, maxArgs: 2, run: runWrite},
	"ls":    {usage: "[PATH]", minArgs: 0, maxArgs: 1, run: runLs},
	"mkdir": {usage: "PATH...", minArgs: 1, maxArgs: -1, run: runMkdir},
	"rm":    {usage: "PATH...", minArgs: 1, maxArgs: -1, run: runRm},
	"rmdir": {usage: "PATH...", minArgs: 1, maxArgs: -1, run: runRmdir},
	"stat":  {usage: "PATH", minArgs: 1, maxArgs: 1, run: runStat},
	"touch": {usage: "PATH...", minArgs: 1, maxArgs: -1, run: runTouch},
	"cp":    {usage: "SOURCE TARGET  (--to URI copies into another store)", minArgs: 2, maxArgs: 2, run: runCp},
	"glob":  {usage: "PATTERN", minArgs: 1, maxArgs: 1, run: runGlob},
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func runCat(env *environment, args []string) error {
	for _, p := range args {
		content, err := env.store().Read(env.ctx, p)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(env.stdout, content); err != nil {
			return err
		}
	}
	return nil
}

func runWrite(env *environment, args []string) error {
	var content string
	if len(args) == 2 {
		content = args[1]
	} else {
		data, err := io.ReadAll(env.stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		content = string(data)
	}
	return env.store().Write(env.ctx, args[0], content, types.WriteOptions{Recursive: env.opts.recursive})
}

func runLs(env *environment, args []string) error {
	p := "."
	if len(args) == 1 {
		p = args[0]
	}
	names, err := env.store().Readdir(env.ctx, p, types.ReaddirOptions{
		Recursive: env.opts.recursive,
		Absolute:  env.opts.absolute,
	})
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(env.stdout, name)
	}
	return nil
}

func runMkdir(env *environment, args []string) error {
	for _, p := range args {
		if err := env.store().Mkdir(env.ctx, p, types.MkdirOptions{Recursive: env.opts.recursive}); err != nil {
			return err
		}
	}
	return nil
}

func runRm(env *environment, args []string) error {
	for _, p := range args {
		if err := env.store().Rm(env.ctx, p, types.RemoveOptions{Recursive: env.opts.recursive}); err != nil {
			return err
		}
	}
	return nil
}

func runRmdir(env *environment, args []string) error {
	for _, p := range args {
		if err := env.store().Rmdir(env.ctx, p, types.RemoveOptions{Recursive: env.opts.recursive}); err != nil {
			return err
		}
	}
	return nil
}

func runStat(env *environment, args []string) error {
	stats, err := env.store().Stats(env.ctx, args[0])
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(struct {
		Path string `json:"path"`
		*types.FileStats
	}{Path: env.store().Resolve(args[0]), FileStats: stats}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(env.stdout, string(data))
	return err
}

func runTouch(env *environment, args []string) error {
	for _, p := range args {
		if err := env.store().Touch(env.ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func runGlob(env *environment, args []string) error {
	matches, err := env.store().Glob(env.ctx, args[0])
	if err != nil {
		return err
	}
	for _, m := range matches {
		fmt.Fprintln(env.stdout, m)
	}
	return nil
}

// runCp copies a file or a directory tree. Directories are merged into the
// target with store.Overwrite.
func runCp(env *environment, args []string) error {
	source := env.store()
	target := source

	if env.opts.to != "" {
		cfg := *env.config
		cfg.Store.URI = env.opts.to
		cfg.Store.ReadOnly = false
		other, err := adapter.Open(env.ctx, &cfg, env.logger)
		if err != nil {
			return err
		}
		defer other.Close()
		target = other.Store()
	}

	isFile, err := source.IsFile(env.ctx, args[0])
	if err != nil {
		return err
	}
	if isFile {
		content, err := source.Read(env.ctx, args[0])
		if err != nil {
			return err
		}
		if err := target.Write(env.ctx, args[1], content, types.WriteOptions{Recursive: true}); err != nil {
			return err
		}
	} else if err := store.Overwrite(env.ctx, source.Child(args[0]), target.Child(args[1])); err != nil {
		return err
	}

	if target != source {
		return target.Flush(env.ctx)
	}
	return nil
}
