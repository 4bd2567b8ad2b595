// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/chatsession"
	"github.com/urfave/cli/v2"
)

func main() {
	app := newApp(os.Stdout, os.Stdin)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the CLI. opts are passed to every chatsession.Open.
func newApp(out io.Writer, in io.Reader, opts ...chatsession.DatabaseOption) *cli.App {
	r := &runner{out: out, in: in, opts: opts}
	return &cli.App{
		Name:      "chatsession",
		Usage:     "Chat history storage and retrieval for conversational assistants",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags:     globalFlags(),
		Before:    setupLogger,
		Commands: []*cli.Command{
			{
				Name:  "schema",
				Usage: "Manage the history schema",
				Subcommands: []*cli.Command{
					{
						Name:   "ensure",
						Usage:  "Create the schema if it does not exist",
						Action: r.schemaEnsure,
					},
					{
						Name:   "exists",
						Usage:  "Report whether the schema exists",
						Action: r.schemaExists,
					},
					{
						Name:   "delete",
						Usage:  "Delete the schema and every stored document",
						Action: r.schemaDelete,
					},
				},
			},
			{
				Name:   "add",
				Usage:  "Add one conversational turn",
				Action: r.add,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Document id (generated when empty)"},
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User id", Required: true},
					&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Session id"},
					&cli.StringFlag{Name: "question", Aliases: []string{"q"}, Usage: "Question text", Required: true},
					&cli.StringFlag{Name: "content", Aliases: []string{"c"}, Usage: "Response text"},
					&cli.StringFlag{Name: "ip", Usage: "Client IP address"},
					&cli.StringFlag{Name: "role", Usage: "Role of the turn", Value: "user"},
				},
			},
			{
				Name:      "get",
				Usage:     "Print a document by id",
				ArgsUsage: "<id>",
				Action:    r.get,
			},
			{
				Name:   "list",
				Usage:  "List the documents of a user or session",
				Action: r.list,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User id", Required: true},
					&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Restrict to one session"},
				},
			},
			{
				Name:   "delete",
				Usage:  "Delete a document, a user's documents or a session",
				Action: r.delete,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Document id"},
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User id"},
					&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Session id (requires --user)"},
				},
			},
			{
				Name:      "query",
				Usage:     "Run a hybrid query for a user",
				ArgsUsage: "<text>",
				Action:    r.query,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User id", Required: true},
					&cli.IntFlag{Name: "top-k", Aliases: []string{"k"}, Usage: "Maximum number of documents (default from config)"},
					&cli.Float64Flag{Name: "threshold", Usage: "Minimum rerank score (default from config)"},
				},
			},
			{
				Name:   "history",
				Usage:  "Print the transcript of a session",
				Action: r.history,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User id", Required: true},
					&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Session id", Required: true},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question with the session's history and store the turn",
				ArgsUsage: "<question>",
				Action:    r.ask,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User id", Required: true},
					&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Session id"},
					&cli.BoolFlag{Name: "trace", Usage: "Print each step of the turn before the answer"},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Bulk load documents from JSON lines",
				ArgsUsage: "[file|-]",
				Action:    r.ingest,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "pool-size", Usage: "Concurrent writers", Value: 8},
					&cli.IntFlag{Name: "batch-size", Usage: "Questions embedded per request", Value: 32},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Re-embed the questions of every stored document",
				Action: r.reembed,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Restrict to one user"},
					&cli.IntFlag{Name: "batch-size", Usage: "Number of documents to process in each batch", Value: 100},
					&cli.IntFlag{Name: "report-interval", Usage: "Report progress every N documents", Value: 100},
					&cli.IntFlag{Name: "max-retries", Usage: "Maximum retry attempts for failed operations", Value: 3},
					&cli.DurationFlag{Name: "retry-delay", Usage: "Base delay for exponential backoff", Value: 1 * time.Second},
					&cli.IntFlag{Name: "workers", Usage: "Batches embedded concurrently", Value: 4},
				},
			},
			seedCommand(r),
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: r.serve,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "Listen address (default from config)", EnvVars: []string{"CHATSESSION_ADDR"}},
				},
			},
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Aliases: []string{"l"},
			Usage:   "Set logging level (debug, info, warn, error)",
			Value:   "info",
			EnvVars: []string{"CHATSESSION_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Path to a TOML configuration file",
			EnvVars: []string{"CHATSESSION_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "backend",
			Usage:   "Storage backend (badger, redis)",
			EnvVars: []string{"CHATSESSION_BACKEND"},
		},
		&cli.StringFlag{
			Name:    "schema",
			Usage:   "Schema name",
			EnvVars: []string{"CHATSESSION_SCHEMA"},
		},
		&cli.IntFlag{
			Name:    "dimension",
			Usage:   "Embedding dimension",
			EnvVars: []string{"CHATSESSION_DIMENSION"},
		},
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory",
			EnvVars: []string{"CHATSESSION_DB"},
		},
		&cli.BoolFlag{
			Name:  "in-memory",
			Usage: "Use a throwaway in-memory BadgerDB",
		},
		&cli.StringFlag{
			Name:    "redis-host",
			Usage:   "Redis host",
			EnvVars: []string{"CHATSESSION_REDIS_HOST"},
		},
		&cli.IntFlag{
			Name:    "redis-port",
			Usage:   "Redis port",
			EnvVars: []string{"CHATSESSION_REDIS_PORT"},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			EnvVars: []string{"CHATSESSION_REDIS_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "embedding-host",
			Usage:   "Embedding service host URL",
			EnvVars: []string{"CHATSESSION_EMBEDDING_HOST"},
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			EnvVars: []string{"CHATSESSION_EMBEDDING_MODEL"},
		},
		&cli.StringFlag{
			Name:    "completion-host",
			Usage:   "Chat completion service host URL",
			EnvVars: []string{"CHATSESSION_COMPLETION_HOST"},
		},
		&cli.StringFlag{
			Name:    "completion-model",
			Usage:   "Chat completion model name",
			EnvVars: []string{"CHATSESSION_COMPLETION_MODEL"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "API key for the AI services",
			EnvVars: []string{"CHATSESSION_API_KEY"},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
