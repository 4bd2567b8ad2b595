package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/poiesic/chatsession"
	"github.com/poiesic/chatsession/config"
	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/history"
	"github.com/poiesic/chatsession/ingestion"
	"github.com/poiesic/chatsession/reembed"
	"github.com/poiesic/chatsession/session"
	"github.com/poiesic/chatsession/storage"
	"github.com/urfave/cli/v2"
)

// runner holds what every command needs besides its flags.
type runner struct {
	out  io.Writer
	in   io.Reader
	opts []chatsession.DatabaseOption
}

// loadConfig reads --config when given and applies the global flags over it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if c.IsSet("backend") {
		cfg.History.Backend = c.String("backend")
	}
	if c.IsSet("schema") {
		cfg.History.Schema = c.String("schema")
	}
	if c.IsSet("dimension") {
		cfg.History.Dimension = c.Int("dimension")
	}
	if c.IsSet("db") {
		cfg.Badger.Path = c.String("db")
	}
	if c.Bool("in-memory") {
		cfg.Badger.InMemory = true
	}
	if c.IsSet("redis-host") {
		cfg.Redis.Host = c.String("redis-host")
	}
	if c.IsSet("redis-port") {
		cfg.Redis.Port = c.Int("redis-port")
	}
	if c.IsSet("redis-password") {
		cfg.Redis.Password = c.String("redis-password")
	}
	if c.IsSet("embedding-host") {
		cfg.AI.EmbeddingHost = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.AI.EmbeddingModel = c.String("embedding-model")
	}
	if c.IsSet("completion-host") {
		cfg.AI.CompletionHost = c.String("completion-host")
	}
	if c.IsSet("completion-model") {
		cfg.AI.CompletionModel = c.String("completion-model")
	}
	if c.IsSet("api-key") {
		cfg.AI.APIKey = c.String("api-key")
	}
	return cfg, nil
}

func (r *runner) open(c *cli.Context) (*chatsession.Database, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	db, err := chatsession.Open(c.Context, cfg, r.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// report prints msgs and turns a failed operation into a non-zero exit.
func (r *runner) report(msgs core.Messages, ok bool) error {
	if len(msgs) > 0 {
		fmt.Fprintln(r.out, msgs.String())
	}
	if !ok {
		return cli.Exit("operation failed", 1)
	}
	return nil
}

func (r *runner) printJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *runner) schemaEnsure(c *cli.Context) error {
	db, err := r.open(c)
	if err != nil {
		return err
	}
	defer db.Close()
	return r.report(db.History().EnsureSchema(c.Context))
}

func (r *runner) schemaExists(c *cli.Context) error {
	db, err := r.open(c)
	if err != nil {
		return err
	}
	defer db.Close()
	exists := db.History().SchemaExists(c.Context)
	fmt.Fprintf(r.out, "%s exists: %t\n", db.Store().Name(), exists)
	return nil
}

func (r *runner) schemaDelete(c *cli.Context) error {
	db, err := r.open(c)
	if err != nil {
		return err
	}
	defer db.Close()
	return r.report(db.History().DeleteSchemaIfExists(c.Context))
}

func (r *runner) add(c *cli.Context) error {
	db, err := r.open(c)
	if err != nil {
		return err
	}
	defer db.Close()

	doc := &core.ChatDocument{
		ID:        c.String("id"),
		UserID:    c.String("user"),
		SessionID: c.String("session"),
		Question:  c.String("question"),
		Content:   c.String("content"),
		IPAddress: c.String("ip"),
		Role:      c.String("role"),
	}
	if doc.ID == "" {
		doc.ID = core.NewDocumentID()
	}

	// The pipeline fills the timestamp and embeds the question
	pipeline, err := db.NewIngestionPipeline(ingestion.WithPoolSize(1))
	if err != nil {
		return err
	}
	defer pipeline.Release()
	return r.report(pipeline.Ingest(c.Context, doc))
}

func (r *runner) get(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return cli.Exit("document id is required", 1)
	}
	db, err := r.open(c)
	if err != nil {
		return err
	}
	defer db.Close()

	doc := db.History().FindByID(c.Context, id)
	if doc == nil {
		return cli.Exit(fmt.Sprintf("ChatDocument %s not found", id), 1)
	}
	return r.printJSON(doc)
}

func (r *runner) list(c *cli.Context) error {
	db, err := r.open(c)
	if err != nil {
		return err
	}
	defer db.Close()

	var docs []*core.ChatDocument
	if sessionID := c.String("session"); sessionID != "" {
		docs = db.History().FindByUserAndSession(c.Context, c.String("user"), sessionID)
	} else {
		docs = db.History().FindAllByUserID(c.Context, c.String("user"))
	}
	if docs == nil {
		return cli.Exit("failed to read documents", 1)
	}
	return r.printJSON(docs)
}

func (r *runner) delete(c *cli.Context) error {
	id, userID, sessionID := c.String("id"), c.String("user"), c.String("session")
	if id == "" && userID == "" {
		return cli.Exit("one of --id or --user is required", 1)
	}
	if sessionID != "" && userID == "" {
		return cli.Exit("--session requires --user", 1)
	}

	db, err := r.open(c)
	if err != nil {
		return err
	}
	defer db.Close()

	switch {
	case id != "":
		return r.report(db.History().DeleteByID(c.Context, id))
	case sessionID != "":
		return r.report(db.History().DeleteByUserAndSession(c.Context, userID, sessionID))
	default:
		return r.report(db.History().DeleteByUserID(c.Context, userID))
	}
}

func (r *runner) query(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return cli.Exit("query text is required", 1)
	}
	db, err := r.open(c)
	if err != nil {
		return err
	}
	defer db.Close()

	vector, err := db.Embedder().EmbedText(c.Context, text)
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}

	cfg := db.Config().History
	q := history.NewHybridQuery(text, vector, cfg.TopK, c.String("user"))
	q.RerankThreshold = cfg.RerankThreshold
	if c.IsSet("top-k") {
		q.TopK = c.Int("top-k")
	}
	if c.IsSet("threshold") {
		q.RerankThreshold = c.Float64("threshold")
	}
	return r.printJSON(db.History().HybridQuery(c.Context, q))
}

func (r *runner) history(c *cli.Context) error {
	db, err := r.open(c)
	if err != nil {
		return err
	}
	defer db.Close()

	hc := db.History().BuildHistoryContext(c.Context, storage.Filter{
		UserID:    c.String("user"),
		SessionID: c.String("session"),
	})
	if hc == nil {
		fmt.Fprintln(r.out, "No history found")
		return nil
	}
	fmt.Fprint(r.out, hc.String())
	return nil
}

func (r *runner) ask(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	db, err := r.open(c)
	if err != nil {
		return err
	}
	defer db.Close()

	manager, err := db.NewSessionManager()
	if err != nil {
		return err
	}
	question := session.Question{
		UserID:    c.String("user"),
		SessionID: c.String("session"),
		Text:      text,
	}
	var answer *session.Answer
	if c.Bool("trace") {
		answer, err = manager.AskWithMonitor(c.Context, question, &traceMonitor{w: r.out})
	} else {
		answer, err = manager.Ask(c.Context, question)
	}
	if err != nil {
		return fmt.Errorf("failed to answer question: %w", err)
	}

	fmt.Fprintln(r.out, answer.Text)
	if !answer.Stored {
		fmt.Fprintln(os.Stderr, answer.Messages.String())
		return cli.Exit("answer was not stored", 1)
	}
	return nil
}

// traceMonitor prints the steps of a turn, one "#" line each.
type traceMonitor struct {
	w io.Writer
}

var _ session.Monitor = (*traceMonitor)(nil)

func (t *traceMonitor) Start(q session.Question) {
	fmt.Fprintf(t.w, "# asking for %s/%s: %q\n", q.UserID, q.SessionID, q.Text)
}

func (t *traceMonitor) AfterEmbedding(dimension int) {
	fmt.Fprintf(t.w, "# embedded question (%d dimensions)\n", dimension)
}

func (t *traceMonitor) AfterRetrieval(h *core.HistoryContext, fromTranscript bool) {
	source := "hybrid query"
	if fromTranscript {
		source = "session transcript"
	}
	fmt.Fprintf(t.w, "# %d history turns from %s\n", h.Len(), source)
}

func (t *traceMonitor) AfterCompletion(answer string) {
	fmt.Fprintf(t.w, "# completion returned %d characters\n", len(answer))
}

func (t *traceMonitor) Finish(*session.Answer) {}

func (r *runner) ingest(c *cli.Context) error {
	in := r.in
	if path := c.Args().First(); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	docs, err := ingestion.ReadDocuments(in)
	if err != nil {
		return fmt.Errorf("failed to read documents: %w", err)
	}

	db, err := r.open(c)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := db.NewIngestionPipeline(
		ingestion.WithPoolSize(c.Int("pool-size")),
		ingestion.WithBatchSize(c.Int("batch-size")),
	)
	if err != nil {
		return err
	}
	defer pipeline.Release()
	return r.report(pipeline.Ingest(c.Context, docs...))
}

func (r *runner) reembed(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		Workers:        c.Int("workers"),
		Filter:         storage.Filter{UserID: c.String("user")},
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, err := r.open(c)
	if err != nil {
		return err
	}
	defer db.Close()

	reembedder, err := db.NewReembedder(reembedConfig, r.out)
	if err != nil {
		return err
	}

	cfg := db.Config()
	fmt.Fprintf(r.out, "Schema: %s (%s)\n", db.Store().Name(), cfg.History.Backend)
	fmt.Fprintf(r.out, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(r.out, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(r.out)

	if _, err := reembedder.Run(c.Context); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func (r *runner) serve(c *cli.Context) error {
	db, err := r.open(c)
	if err != nil {
		return err
	}
	defer db.Close()

	addr := db.Config().Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}

	server, err := db.NewServer()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.ListenAndServe(ctx, addr)
}

