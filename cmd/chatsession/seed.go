package main

import (
	"bufio"
	"fmt"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/ingestion"
	"github.com/urfave/cli/v2"
)

// Demo turns used when seed has no source file. Each is question<TAB>answer.
var sampleTurns = []string{
	"What is the capital of France?\tParis is the capital of France.",
	"How tall is the Eiffel Tower?\tAbout 330 metres including its antennas.",
	"When was it built?\tIt was completed in 1889 for the World's Fair.",
	"Can I visit the top floor?\tYes, the summit is open to visitors most of the year.",
	"What is a good time to go?\tEarly morning on weekdays has the shortest queues.",
	"How do I reset my password?\tUse the Forgot password link on the sign-in page.",
	"The reset email never arrived.\tCheck your spam folder, then request a new link.",
	"Can I change my username?\tUsernames can be changed once every 30 days in Settings.",
	"How do I export my data?\tGo to Settings, then Privacy, then Export data.",
	"What format is the export?\tA zip archive of JSON files.",
	"Which plan includes SSO?\tSingle sign-on is part of the Business plan.",
	"Is there a discount for nonprofits?\tYes, registered nonprofits get 50 percent off.",
	"How do I cancel my subscription?\tOpen Billing and choose Cancel plan.",
	"Will I lose my data after cancelling?\tData is kept for 90 days after cancellation.",
	"What is a goroutine?\tA lightweight thread managed by the Go runtime.",
	"How do goroutines communicate?\tUsually through channels, or shared memory guarded by a mutex.",
	"What does context cancellation do?\tIt signals every goroutine holding the context to stop its work.",
	"When should I use a buffered channel?\tWhen the sender should not block until a receiver is ready.",
}

func seedCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:   "seed",
		Usage:  "Load demo conversation turns for a user",
		Action: r.seed,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "src", Usage: "File of question<TAB>answer lines (default: built-in samples)"},
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User id", Value: "demo-user"},
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Session id", Value: "demo-session"},
			&cli.IntFlag{Name: "batch-size", Usage: "Turns ingested per batch", Value: 5},
		},
	}
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

// turnsFromLines turns question<TAB>answer lines into documents of one
// session, one second apart so the transcript keeps line order.
func turnsFromLines(lines iter.Seq[string], userID, sessionID string, start time.Time) iter.Seq[*core.ChatDocument] {
	return func(yield func(*core.ChatDocument) bool) {
		i := 0
		for line := range lines {
			question, answer, _ := strings.Cut(line, "\t")
			if strings.TrimSpace(question) == "" {
				continue
			}
			doc := &core.ChatDocument{
				ID:        core.NewDocumentID(),
				UserID:    userID,
				SessionID: sessionID,
				Question:  strings.TrimSpace(question),
				Content:   strings.TrimSpace(answer),
				Role:      ingestion.DefaultRole,
				Timestamp: start.Add(time.Duration(i) * time.Second),
			}
			i++
			if !yield(doc) {
				return
			}
		}
	}
}

// ingestBatched reads documents from source and ingests them in batches.
// It returns the number stored and the messages of every failed batch.
func ingestBatched(c *cli.Context, pipeline *ingestion.Pipeline, source iter.Seq[*core.ChatDocument], batchSize int) (int, core.Messages) {
	var failures core.Messages
	stored := 0
	batch := make([]*core.ChatDocument, 0, batchSize)

	flush := func() {
		msgs, ok := pipeline.Ingest(c.Context, batch...)
		if ok {
			stored += len(batch)
		} else {
			failures = append(failures, msgs...)
		}
		batch = batch[:0]
	}

	for doc := range source {
		batch = append(batch, doc)
		if len(batch) == batchSize {
			flush()
		}
	}

	// Process any remaining documents
	if len(batch) > 0 {
		flush()
	}

	return stored, failures
}

func (r *runner) seed(c *cli.Context) error {
	batchSize := c.Int("batch-size")
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}

	var lines iter.Seq[string]
	if src := c.String("src"); src != "" {
		var err error
		lines, err = linesFromFile(src)
		if err != nil {
			return err
		}
	} else {
		lines = linesFromSlice(sampleTurns)
	}

	db, err := r.open(c)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := db.NewIngestionPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Release()

	start := time.Now().UTC()
	stored, failures := ingestBatched(c, pipeline, turnsFromLines(lines, c.String("user"), c.String("session"), start), batchSize)
	fmt.Fprintf(r.out, "Seeded %d turns for %s/%s\n", stored, c.String("user"), c.String("session"))
	if len(failures) > 0 {
		fmt.Fprintln(r.out, failures.String())
		return cli.Exit("some turns were not stored", 1)
	}
	return nil
}
