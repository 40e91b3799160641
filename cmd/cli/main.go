package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/statement-converter/internal/config"
	"github.com/dvloznov/statement-converter/internal/convert"
	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/dvloznov/statement-converter/internal/export"
	"github.com/dvloznov/statement-converter/internal/extract"
	"github.com/dvloznov/statement-converter/internal/logger"
	"github.com/dvloznov/statement-converter/internal/session"
	"github.com/dvloznov/statement-converter/internal/table"
	"github.com/rs/zerolog"
)

func main() {
	log := logger.NewWithLevel(os.Getenv("LOG_LEVEL"))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "convert":
		runConvert(log)
	case "extract":
		runExtract(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Statement Converter CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  convert   Convert a PDF bank statement into a spreadsheet")
	fmt.Println("  extract   Print the text extracted from a PDF")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runConvert(log zerolog.Logger) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to the PDF statement")
	out := fs.String("out", "", "Output path or gs://bucket/object (defaults to <file>.<format>)")
	formatName := fs.String("format", "xlsx", "Output format: xlsx or csv")
	start := fs.String("start", "", "Earliest date to keep (YYYY-MM-DD)")
	end := fs.String("end", "", "Latest date to keep (YYYY-MM-DD)")
	sortKey := fs.String("sort", "date", "Sort by date, description, debit, credit or category")
	direction := fs.String("direction", "desc", "Sort direction: asc or desc")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Usage: cli convert -file PATH [-out PATH|gs://bucket/object] [-format xlsx|csv]")
	}

	format, err := export.ParseFormat(*formatName)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -format")
	}
	filter, err := table.ParseFilter(*start, *end)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid date range")
	}
	sortBy, err := table.ParseSort(*sortKey, *direction)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid sort")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = log.Level(logger.ParseLevel(cfg.Log.Level))

	ctx := logger.WithContext(context.Background(), log)

	client, err := convert.NewClient(ctx, convert.Config{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		Timeout: cfg.Gemini.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create conversion client")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read statement")
	}

	s := session.New(extract.NewPDFExtractor(), client)
	if err := s.Select(filepath.Base(*filePath), data); err != nil {
		log.Fatal().Err(err).Msg("Failed to select statement")
	}

	log.Info().Str("file", *filePath).Str("model", client.Model()).Msg("Converting statement")

	result, err := s.Convert(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, session.UserMessage(err))
		os.Exit(exitCode(err))
	}

	rows := table.Apply(result.Transactions, filter, sortBy)
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, export.MessageNoRows)
		os.Exit(1)
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, rows); err != nil {
		log.Fatal().Err(err).Msg("Failed to build export")
	}

	dest := *out
	if dest == "" {
		dest = filepath.Join(filepath.Dir(*filePath), export.FileName(export.BaseName(*filePath), format))
	}
	if err := writeOutput(ctx, dest, format, &buf); err != nil {
		log.Fatal().Err(err).Str("destination", dest).Msg("Failed to write export")
	}

	summary := result.Summary
	if len(rows) != len(result.Transactions) {
		summary = domain.Summarize(rows)
	}
	fmt.Printf("Converted %d transactions (%d after filtering) to %s\n", len(result.Transactions), len(rows), dest)
	fmt.Printf("Income: %.2f  Spending: %.2f  Net: %.2f\n", summary.TotalIncome, summary.TotalSpending, summary.NetFlow())
}

func runExtract(log zerolog.Logger) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to the PDF statement")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Usage: cli extract -file PATH")
	}

	text, err := extract.TextFromFile(*filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Fatal().Err(err).Msg("Statement not found")
		}
		fmt.Fprintln(os.Stderr, session.UserMessage(fmt.Errorf("%w: %w", session.ErrExtraction, err)))
		os.Exit(1)
	}

	fmt.Println(text)
}

func writeOutput(ctx context.Context, dest string, format export.Format, buf *bytes.Buffer) error {
	if !strings.HasPrefix(dest, "gs://") {
		return os.WriteFile(dest, buf.Bytes(), 0o644)
	}

	bucket, object, err := export.ParseGCSURI(dest)
	if err != nil {
		return err
	}
	sink, err := export.NewGCSSink(ctx, bucket)
	if err != nil {
		return err
	}
	defer sink.Close()

	_, err = sink.Upload(ctx, object, format.ContentType(), buf)
	return err
}

// exitCode distinguishes throttling (try later) from other failures.
func exitCode(err error) int {
	if errors.Is(err, convert.ErrRateLimit) {
		return 75 // EX_TEMPFAIL
	}
	return 1
}
