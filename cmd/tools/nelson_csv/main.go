package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/soltixdb/nelson/internal/config"
	"github.com/soltixdb/nelson/internal/logging"
	"github.com/soltixdb/nelson/internal/models"
	"github.com/soltixdb/nelson/internal/services"
)

func main() {
	// Command line flags
	input := flag.String("input", "", "Input CSV file with a header row (timestamp,value[,dimension])")
	output := flag.String("output", "", "Output CSV file (default: stdout)")
	configPath := flag.String("config", "", "Optional service config file for engine settings")
	metric := flag.String("metric", "", "Metric name, also accepted as the value column name")
	grainName := flag.String("grain", "none", "Time grain (none, day, week, month, quarter, year)")
	aggregation := flag.String("aggregation", "sum", "Bucket aggregation (sum, avg, min, max, count)")
	estimator := flag.String("estimator", "", "Standard deviation estimator (sample, population; default from config)")
	limit := flag.Int("limit", 0, "Max number of dimension series (0 = default)")
	skipInsufficient := flag.Bool("skip-insufficient", false, "Leave single-point series unflagged instead of failing")
	verbose := flag.Bool("verbose", false, "Enable debug logging")

	flag.Parse()

	logger := logging.NewDevelopment()
	if !*verbose {
		logger = logging.NewNop()
	}

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Error: -input parameter is required")
		flag.Usage()
		os.Exit(2)
	}

	resultSet, err := readResultSet(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", *input, err)
		os.Exit(1)
	}
	logger.Debug("Input loaded", "file", *input, "rows", len(resultSet.Rows), "columns", resultSet.Columns)

	cfg := config.LoadOrDefault(*configPath)
	if *estimator != "" {
		cfg.Engine.StdDevEstimator = *estimator
	}
	cfg.Engine.MaxObservations = 0
	if *limit > cfg.Engine.MaxSeries {
		cfg.Engine.MaxSeries = *limit
	}

	engine, err := services.NewEngine(cfg.Engine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	svc := services.NewEvaluationService(logger, engine, cfg.Engine)

	req, err := services.NewEvaluationRequest(&models.EvaluateRequest{
		Metric:           *metric,
		Grain:            *grainName,
		Aggregation:      *aggregation,
		Limit:            *limit,
		SkipInsufficient: *skipInsufficient,
		Data:             resultSet,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	resp, err := svc.Execute(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if err := writePoints(out, resp.Points); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
		os.Exit(1)
	}

	// Summary goes to stderr so stdout stays a clean CSV
	printSummary(os.Stderr, resp)
}

// readResultSet loads a CSV file; empty cells become nulls
func readResultSet(path string) (models.ResultSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.ResultSet{}, err
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return models.ResultSet{}, fmt.Errorf("file is empty")
		}
		return models.ResultSet{}, err
	}

	rs := models.ResultSet{Columns: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.ResultSet{}, err
		}

		row := make([]interface{}, len(header))
		for i := range header {
			if i < len(record) && strings.TrimSpace(record[i]) != "" {
				row[i] = record[i]
			}
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs, nil
}

func writePoints(w io.Writer, points []models.EvaluatedPoint) error {
	writer := csv.NewWriter(w)

	header := []string{"TS", "VALUE", "DIMENSION"}
	for rule := 1; rule <= 8; rule++ {
		header = append(header, fmt.Sprintf("VIOLATE_RULE_%d", rule))
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		flags := []bool{
			p.ViolateRule1, p.ViolateRule2, p.ViolateRule3, p.ViolateRule4,
			p.ViolateRule5, p.ViolateRule6, p.ViolateRule7, p.ViolateRule8,
		}
		record := []string{p.Time, fmt.Sprintf("%g", p.Value), p.Dimension}
		for _, flagged := range flags {
			if flagged {
				record = append(record, "1")
			} else {
				record = append(record, "0")
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func printSummary(w io.Writer, resp *models.EvaluateResponse) {
	fmt.Fprintf(w, "Evaluated %d points (%d dropped) grain=%s aggregation=%s estimator=%s\n",
		resp.Count, resp.DroppedRows, resp.Grain, resp.Aggregation, resp.Estimator)
	for _, p := range resp.Partitions {
		name := p.Dimension
		if name == "" {
			name = "(all)"
		}
		fmt.Fprintf(w, "  %-20s n=%-6d mean=%-12.4f stddev=%.4f\n", name, p.Count, p.Mean, p.StdDev)
	}
	for _, s := range resp.Summary {
		fmt.Fprintf(w, "  Rule %d %-28s %d\n", s.Rule, s.Name, s.Count)
	}
	if len(resp.Skipped) > 0 {
		fmt.Fprintf(w, "  Skipped: %s\n", strings.Join(resp.Skipped, ", "))
	}
}
