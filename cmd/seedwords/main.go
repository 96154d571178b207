// Command seedwords fills the words table from the embedded bank and,
// optionally, with fresh suggestions from a Gemini model.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"sketchroom/internal/logging"
	"sketchroom/internal/rules"
	"sketchroom/internal/storage"
	"sketchroom/internal/words"
)

type options struct {
	generate   bool
	categories []string
	count      int
	dryRun     bool
	timeout    time.Duration
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "seedwords:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("seedwords", flag.ContinueOnError)
	var (
		opts       options
		categories string
	)
	fs.BoolVar(&opts.generate, "generate", false, "ask Gemini for extra words after seeding the bank")
	fs.StringVar(&categories, "categories", "animals,food,objects,places,nature,sports", "comma separated categories to generate")
	fs.IntVar(&opts.count, "count", 20, "words to request per category and difficulty")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "print generated words instead of storing them")
	fs.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall deadline")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	for _, c := range strings.Split(categories, ",") {
		if c = strings.TrimSpace(c); c != "" {
			opts.categories = append(opts.categories, c)
		}
	}
	if opts.generate && len(opts.categories) == 0 {
		return options{}, errors.New("-generate needs at least one category")
	}
	if opts.count <= 0 {
		return options{}, errors.New("-count must be positive")
	}
	return opts, nil
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	log, err := logging.New(getenv("LOG_LEVEL", "info"), getenv("LOG_FORMAT", "console"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	var pg *storage.Postgres
	if !opts.dryRun {
		url := os.Getenv("POSTGRES_URL")
		if url == "" {
			return errors.New("POSTGRES_URL is not set")
		}
		if err := storage.Migrate(url); err != nil {
			return err
		}
		pg, err = storage.NewPostgres(ctx, url)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()

		bank, err := words.LoadBank()
		if err != nil {
			return err
		}
		added, err := pg.SeedWords(ctx, bank.All())
		if err != nil {
			return fmt.Errorf("seed bank: %w", err)
		}
		log.Info().Int("added", added).Int("bank", len(bank.All())).Msg("bank seeded")
	}

	if !opts.generate {
		return nil
	}
	gen, err := words.NewGenerator(ctx, words.GeneratorConfig{
		APIKey:   os.Getenv("GEMINI_API_KEY"),
		Project:  os.Getenv("GOOGLE_CLOUD_PROJECT"),
		Location: getenv("GOOGLE_CLOUD_REGION", "us-central1"),
		Model:    os.Getenv("GENAI_MODEL"),
	})
	if err != nil {
		return err
	}
	var store seeder
	if pg != nil {
		store = pg
	}
	return generate(ctx, gen, store, opts, log)
}

type generator interface {
	Generate(ctx context.Context, d rules.Difficulty, category string, count int) ([]words.Entry, error)
}

type seeder interface {
	SeedWords(ctx context.Context, entries []words.Entry) (int, error)
}

// generate walks every category and difficulty. A failed request is logged
// and skipped so one bad response does not waste the rest of the run.
func generate(ctx context.Context, gen generator, store seeder, opts options, log zerolog.Logger) error {
	var total int
	for _, category := range opts.categories {
		for _, d := range rules.Difficulties {
			entries, err := gen.Generate(ctx, d, category, opts.count)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Str("category", category).Str("difficulty", string(d)).Msg("generation failed")
				continue
			}
			if opts.dryRun || store == nil {
				for _, e := range entries {
					fmt.Printf("%s\t%s\t%s\n", e.Difficulty, e.Category, e.Word)
				}
				continue
			}
			added, err := store.SeedWords(ctx, entries)
			if err != nil {
				return fmt.Errorf("store %s/%s: %w", category, d, err)
			}
			total += added
			log.Info().Str("category", category).Str("difficulty", string(d)).
				Int("suggested", len(entries)).Int("added", added).Msg("generated")
		}
	}
	log.Info().Int("added", total).Msg("generation done")
	return nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
