package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/jeremytregunna/ringdb/pkg/queue"
	"github.com/jeremytregunna/ringdb/pkg/store"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".open"),
	readline.PcItem(".close"),
	readline.PcItem(".exit"),
	readline.PcItem(".stats"),
	readline.PcItem("PUT"),
	readline.PcItem("GET"),
	readline.PcItem("DELETE"),
	readline.PcItem("CHECK"),
)

const helpText = `
kvshell - interactive shell over the single-file LSM store

Usage:
  kvshell [database_path]   - start with an optional database path

Commands:
  .help                     - show this help message
  .open PATH                - open a database at PATH
  .close                    - close the current database
  .exit                     - exit the program
  .stats                    - show operation counters

  PUT key value             - store a key-value pair
  GET key                   - retrieve a value by key, cascading through
                              the memtable, frozen snapshot, and tables
  DELETE key                - tombstone a key
  CHECK                     - force a durable checkpoint of the journal
`

func main() {
	fmt.Println("kvshell version 1.0.0")
	fmt.Println("Enter .help for usage hints.")

	var db *store.Store
	var err error
	var dbPath string

	if len(os.Args) > 1 {
		dbPath = os.Args[1]
		fmt.Printf("Opening database at %s\n", dbPath)
		db, err = store.Open(dbPath, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %s\n", err)
			os.Exit(1)
		}
	}

	historyFile := filepath.Join(os.TempDir(), ".kvshell_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "kvshell> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %s\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		var prompt string
		if dbPath != "" {
			prompt = fmt.Sprintf("kvshell:%s> ", dbPath)
		} else {
			prompt = "kvshell> "
		}
		rl.SetPrompt(prompt)

		line, readErr := rl.Readline()
		if readErr != nil {
			if readErr == readline.ErrInterrupt {
				if len(line) == 0 {
					break
				}
				continue
			} else if readErr == io.EOF {
				fmt.Println("Goodbye!")
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", readErr)
			continue
		}

		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToUpper(parts[0])

		if strings.HasPrefix(cmd, ".") {
			switch strings.ToLower(cmd) {
			case ".help":
				fmt.Print(helpText)

			case ".open":
				if len(parts) < 2 {
					fmt.Println("Error: missing path argument")
					continue
				}
				if db != nil {
					db.Close()
				}
				dbPath = parts[1]
				db, err = store.Open(dbPath, nil)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error opening database: %s\n", err)
					dbPath = ""
					continue
				}
				fmt.Printf("Database opened at %s\n", dbPath)

			case ".close":
				if db == nil {
					fmt.Println("No database open")
					continue
				}
				if err := db.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Error closing database: %s\n", err)
				} else {
					fmt.Printf("Database %s closed\n", dbPath)
					db = nil
					dbPath = ""
				}

			case ".exit":
				if db != nil {
					db.Close()
				}
				fmt.Println("Goodbye!")
				return

			case ".stats":
				if db == nil {
					fmt.Println("No database open")
					continue
				}
				s := db.Stats()
				fmt.Println("Database statistics:")
				fmt.Printf("  put=%v get=%v delete=%v check=%v flush=%v\n",
					s["put_ops"], s["get_ops"], s["delete_ops"], s["check_ops"], s["flush_count"])

			default:
				fmt.Printf("Unknown command: %s\n", cmd)
			}
			continue
		}

		if db == nil {
			fmt.Println("Error: no database open")
			continue
		}

		switch cmd {
		case "PUT":
			if len(parts) < 3 {
				fmt.Println("Error: PUT requires key and value arguments")
				continue
			}
			if err := db.Put([]byte(parts[1]), []byte(strings.Join(parts[2:], " "))); err != nil {
				fmt.Fprintf(os.Stderr, "Error putting value: %s\n", err)
			} else {
				fmt.Println("Value stored")
			}

		case "GET":
			if len(parts) < 2 {
				fmt.Println("Error: GET requires a key argument")
				continue
			}
			val, ok, err := db.Get([]byte(parts[1]))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error getting value: %s\n", err)
			} else if !ok {
				fmt.Println("Key not found")
			} else {
				fmt.Printf("%s\n", val)
			}

		case "DELETE":
			if len(parts) < 2 {
				fmt.Println("Error: DELETE requires a key argument")
				continue
			}
			if err := db.Delete([]byte(parts[1])); err != nil {
				fmt.Fprintf(os.Stderr, "Error deleting key: %s\n", err)
			} else {
				fmt.Println("Key deleted")
			}

		case "CHECK":
			start := time.Now()
			if _, err := db.Submit(queue.KindCheck, nil, nil); err != nil {
				fmt.Fprintf(os.Stderr, "Error checkpointing: %s\n", err)
			} else {
				fmt.Printf("Checkpointed (%.2f ms)\n", float64(time.Since(start).Microseconds())/1000.0)
			}

		default:
			fmt.Printf("Unknown command: %s\n", cmd)
		}
	}
}
