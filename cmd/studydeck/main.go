// Command studydeck is the personal study assistant: it keeps subjects,
// lectures, notes and flashcards in a local SQLite file, imports decks
// from markdown files or git repositories, and drives spaced-repetition
// review sessions.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/conorfennell/studydeck/internal/config"
	"github.com/conorfennell/studydeck/internal/export"
	"github.com/conorfennell/studydeck/internal/gitsource"
	"github.com/conorfennell/studydeck/internal/importer"
	"github.com/conorfennell/studydeck/internal/repository"
	"github.com/conorfennell/studydeck/internal/review"
	"github.com/conorfennell/studydeck/internal/storage"
)

const usage = `Usage: studydeck [flags] <command> [args]

Commands:
  subjects                        list subjects
  subjects add <name> [color]     create a subject
  subjects rename <id> <name>     rename a subject
  subjects rm <id>                delete a subject and everything under it
  lectures <subject-id>           list a subject's lectures
  import <subject-id> <path>      import decks from a file or directory
  import-git <subject-id> <url>   import decks from a git repository
  review [subject-id]             run an interactive review session
  stats                           show card counts
  export                          write a JSON snapshot to stdout
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stdin); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, in io.Reader) error {
	def := config.Default()
	flags := flag.NewFlagSet("studydeck", flag.ContinueOnError)
	flags.Usage = func() { fmt.Fprint(os.Stderr, usage); flags.PrintDefaults() }
	configPath := flags.String("config", "studydeck.yaml", "path to the config file")
	flags.String("db_path", def.DBPath, "path to the SQLite database")
	flags.String("log_level", def.LogLevel, "log level: debug, info, warn, error")
	flags.String("cache_dir", def.CacheDir, "directory for mirrored deck repositories")
	flags.Int("review.daily_limit", def.Review.DailyLimit, "max cards per review session")
	flags.String("review.scope", def.Review.Scope, "review scope: overdue, new, all")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	ctx := context.Background()

	store, err := storage.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	repo := repository.New(store, logger)

	rest := flags.Args()
	if len(rest) == 0 {
		flags.Usage()
		return fmt.Errorf("no command given")
	}

	switch rest[0] {
	case "subjects":
		return runSubjects(ctx, repo, rest[1:], out)
	case "lectures":
		if len(rest) != 2 {
			return fmt.Errorf("usage: lectures <subject-id>")
		}
		return runLectures(ctx, repo, rest[1], out)
	case "import":
		if len(rest) != 3 {
			return fmt.Errorf("usage: import <subject-id> <path>")
		}
		return runImport(ctx, repo, logger, rest[1], rest[2], out)
	case "import-git":
		if len(rest) != 3 {
			return fmt.Errorf("usage: import-git <subject-id> <url>")
		}
		local, err := gitsource.Fetch(rest[2], cfg.CacheDir, logger)
		if err != nil {
			return err
		}
		return runImport(ctx, repo, logger, rest[1], local, out)
	case "review":
		subjectID := ""
		if len(rest) > 1 {
			subjectID = rest[1]
		}
		return runReview(ctx, repo, cfg, subjectID, out, in)
	case "stats":
		return runStats(ctx, repo, out)
	case "export":
		snap, err := export.Build(ctx, repo, time.Now())
		if err != nil {
			return err
		}
		return export.Write(out, snap)
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func runSubjects(ctx context.Context, repo *repository.Repository, args []string, out io.Writer) error {
	if len(args) == 0 {
		subjects, err := repo.ListSubjects(ctx)
		if err != nil {
			return err
		}
		for _, s := range subjects {
			fmt.Fprintf(out, "%s  %s\n", s.ID, s.Name)
		}
		return nil
	}

	switch args[0] {
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: subjects add <name> [color]")
		}
		color := ""
		if len(args) > 2 {
			color = args[2]
		}
		subject, err := repo.CreateSubject(ctx, args[1], color)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, subject.ID)
		return nil
	case "rename":
		if len(args) != 3 {
			return fmt.Errorf("usage: subjects rename <id> <name>")
		}
		_, err := repo.RenameSubject(ctx, args[1], args[2])
		return err
	case "rm":
		if len(args) != 2 {
			return fmt.Errorf("usage: subjects rm <id>")
		}
		return repo.DeleteSubject(ctx, args[1])
	default:
		return fmt.Errorf("unknown subjects subcommand %q", args[0])
	}
}

func runLectures(ctx context.Context, repo *repository.Repository, subjectID string, out io.Writer) error {
	lectures, err := repo.ListLecturesBySubject(ctx, subjectID)
	if err != nil {
		return err
	}
	for _, l := range lectures {
		fmt.Fprintf(out, "%s  %s  (%s)\n", l.ID, l.Title, l.CreatedAt.Format("2006-01-02"))
	}
	return nil
}

func runImport(ctx context.Context, repo *repository.Repository, logger *slog.Logger, subjectID, path string, out io.Writer) error {
	imp := importer.New(repo, logger)

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	var res importer.Result
	if info.IsDir() {
		res, err = imp.ImportDir(ctx, subjectID, path)
	} else {
		res, err = imp.ImportFile(ctx, subjectID, path)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d files, %d cards added, %d duplicates skipped\n",
		res.Files, res.Added, res.Duplicates)
	return nil
}

func runReview(ctx context.Context, repo *repository.Repository, cfg config.Config, subjectID string, out io.Writer, in io.Reader) error {
	queue, err := review.Build(ctx, repo, review.Options{
		SubjectID:  subjectID,
		Scope:      review.Scope(cfg.Review.Scope),
		DailyLimit: cfg.Review.DailyLimit,
	})
	if err != nil {
		return err
	}

	if queue.Remaining() == 0 {
		fmt.Fprintln(out, "Nothing to review.")
		return nil
	}
	stats := queue.Stats()
	fmt.Fprintf(out, "%d cards queued (pool: %d overdue, %d new, %d done)\n\n",
		queue.Remaining(), stats.Overdue, stats.New, stats.Done)

	reader := bufio.NewReader(in)
	for !queue.Exhausted() {
		card, err := queue.Current()
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Q: %s\n", card.Question)
		fmt.Fprint(out, "[press enter to show the answer] ")
		if _, err := reader.ReadString('\n'); err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		fmt.Fprintf(out, "A: %s\n", card.Answer)
		known, err := askKnown(reader, out)
		if err != nil {
			return err
		}

		graded, err := queue.Grade(ctx, known)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "next review in %d day(s), %d remaining\n\n", graded.Interval, queue.Remaining())
	}

	session := queue.Session()
	fmt.Fprintf(out, "Session done: %d known, %d unknown.\n", session.Known, session.Unknown)
	return nil
}

func askKnown(reader *bufio.Reader, out io.Writer) (bool, error) {
	for {
		fmt.Fprint(out, "Did you know it? [y/n] ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, fmt.Errorf("read input: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}

func runStats(ctx context.Context, repo *repository.Repository, out io.Writer) error {
	now := time.Now()
	subjects, err := repo.ListSubjects(ctx)
	if err != nil {
		return err
	}
	due, err := repo.ListDueFlashcards(ctx, now)
	if err != nil {
		return err
	}
	all, err := repo.ListFlashcards(ctx)
	if err != nil {
		return err
	}

	newCount := 0
	for _, card := range all {
		if card.Repetition == 0 {
			newCount++
		}
	}

	fmt.Fprintf(out, "subjects: %d\n", len(subjects))
	fmt.Fprintf(out, "cards:    %d (%d due, %d new)\n", len(all), len(due), newCount)
	return nil
}
