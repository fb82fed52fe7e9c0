// Command novadb-shell is an interactive REPL over a single on-disk
// novadb store: a buffer pool, an optional WAL, and one named B+tree
// index, driven by readline the way the teacher's cmd/client built its
// SQL console.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/novadb/novadb/internal/bptree"
	"github.com/novadb/novadb/internal/bufferpool"
	"github.com/novadb/novadb/internal/config"
	"github.com/novadb/novadb/internal/replacer"
	"github.com/novadb/novadb/internal/storage"
	"github.com/novadb/novadb/internal/wal"
)

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".novadb_history"
	}
	return filepath.Join(home, ".novadb_history")
}

func printHelp() {
	fmt.Println(`meta commands:
  insert <key>          insert key with a synthesized RID
  get <key>             look up key
  remove <key>          delete key
  range <key>           scan from the first key >= <key> to the end
  load <path>           InsertFromFile: one key per line
  unload <path>         RemoveFromFile: one key per line
  dump                  print the tree's page structure
  \q | quit | exit      quit
  \help                 show this help`)
}

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file (optional, defaults used otherwise)")
		indexName  = flag.String("index", "shell", "name of the B+tree index to open")
		histPath   = flag.String("history", defaultHistoryPath(), "history file path")
	)
	flag.Parse()

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir %s: %v\n", cfg.Storage.DataDir, err)
		os.Exit(1)
	}

	dm, err := storage.NewFileDiskManager(cfg.Storage.DataDir, "novadb")
	if err != nil {
		fmt.Fprintf(os.Stderr, "disk manager: %v\n", err)
		os.Exit(1)
	}
	defer dm.Close()

	var poolOpts []bufferpool.Option
	if cfg.BufferPool.BucketSize > 0 {
		poolOpts = append(poolOpts, bufferpool.WithBucketSize(cfg.BufferPool.BucketSize))
	}
	if cfg.BufferPool.ReplacerKind == "clock" {
		poolOpts = append(poolOpts, bufferpool.WithReplacer(replacer.NewClock(cfg.BufferPool.PoolSize)))
	}

	var logMgr *wal.Manager
	if cfg.WAL.Enabled {
		logMgr, err = wal.Open(filepath.Join(cfg.Storage.DataDir, cfg.WAL.Path))
		if err != nil {
			fmt.Fprintf(os.Stderr, "wal: %v\n", err)
			os.Exit(1)
		}
		defer logMgr.Close()
		poolOpts = append(poolOpts, bufferpool.WithLogManager(logMgr))
	}

	pool := bufferpool.NewPool(cfg.BufferPool.PoolSize, dm, poolOpts...)

	tree, err := bptree.New(*indexName, pool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open index %q: %v\n", *indexName, err)
		os.Exit(1)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "novadb> ",
		HistoryFile:     *histPath,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Printf("novadb shell: index %q on %s\n", *indexName, cfg.Storage.DataDir)
	fmt.Println("type \\help for help")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			fmt.Println("^C")
			continue
		}
		if err != nil {
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "\\q" || line == "quit" || line == "exit" {
			return
		}
		if line == "\\help" {
			printHelp()
			continue
		}

		if err := runCommand(tree, line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func runCommand(tree *bptree.Tree, line string) error {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "insert":
		key, err := parseKey(args)
		if err != nil {
			return err
		}
		ok, err := tree.Insert(key, bptree.RID(key))
		if err != nil {
			return err
		}
		if ok {
			fmt.Printf("inserted %d\n", key)
		} else {
			fmt.Printf("key %d already exists\n", key)
		}
		return nil

	case "get":
		key, err := parseKey(args)
		if err != nil {
			return err
		}
		v, ok, err := tree.GetValue(key)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("key %d not found\n", key)
			return nil
		}
		fmt.Printf("%d -> page=%d slot=%d\n", key, v.PageID, v.Slot)
		return nil

	case "remove":
		key, err := parseKey(args)
		if err != nil {
			return err
		}
		ok, err := tree.Remove(key)
		if err != nil {
			return err
		}
		if ok {
			fmt.Printf("removed %d\n", key)
		} else {
			fmt.Printf("key %d not found\n", key)
		}
		return nil

	case "range":
		key, err := parseKey(args)
		if err != nil {
			return err
		}
		it, err := tree.Begin(key)
		if err != nil {
			return err
		}
		defer it.Close()
		for !it.IsEnd() {
			fmt.Printf("%d\n", it.Key())
			it.Next()
		}
		return nil

	case "load":
		if len(args) != 1 {
			return fmt.Errorf("usage: load <path>")
		}
		return bptree.InsertFromFile(tree, args[0])

	case "unload":
		if len(args) != 1 {
			return fmt.Errorf("usage: unload <path>")
		}
		return bptree.RemoveFromFile(tree, args[0])

	case "dump":
		s, err := tree.DebugString()
		if err != nil {
			return err
		}
		fmt.Print(s)
		return nil

	default:
		return fmt.Errorf("unknown command %q, try \\help", cmd)
	}
}

func parseKey(args []string) (bptree.KeyType, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one integer key argument")
	}
	key, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse key %q: %w", args[0], err)
	}
	return key, nil
}
