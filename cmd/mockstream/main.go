package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/mmrzaf/mockstream/internal/app"
	"github.com/mmrzaf/mockstream/internal/config"
	"github.com/mmrzaf/mockstream/internal/domain"
	"github.com/mmrzaf/mockstream/internal/infra/repos/runs"
	"github.com/mmrzaf/mockstream/internal/infra/repos/schemas"
	"github.com/mmrzaf/mockstream/internal/logging"
	"github.com/mmrzaf/mockstream/internal/timeutil"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	schemasDir string
	runsDSN    string
	logLevel   string
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
)

func main() {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:           "mockstream",
		Short:         "Mock data generator for message brokers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&schemasDir, "schemas-dir", cfg.SchemasDir, "Schemas directory")
	rootCmd.PersistentFlags().StringVar(&runsDSN, "runs-dsn", cfg.RunsDSN, "Run history database (sqlite path or postgres:// DSN)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level")

	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(describeCmd())
	rootCmd.AddCommand(sampleCmd())
	rootCmd.AddCommand(produceCmd(cfg))
	rootCmd.AddCommand(runsCmd())

	if err := rootCmd.Execute(); err != nil {
		errColor.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newService builds a RunService without run history, for commands that only
// read schemas.
func newService() *app.RunService {
	logger := logging.NewLogger(logLevel).WithComponent("cli")
	return app.NewRunService(schemas.NewFileRepository(schemasDir), nil, nil, logger)
}

// splitRef treats anything that looks like a file as a path, the rest as an
// ID in the schemas directory.
func splitRef(ref string) (id, path string) {
	if strings.ContainsRune(ref, os.PathSeparator) || strings.HasSuffix(ref, ".yaml") ||
		strings.HasSuffix(ref, ".yml") || strings.HasSuffix(ref, ".json") {
		return "", ref
	}
	return ref, ""
}

func loadSchema(svc *app.RunService, ref string) (*domain.SchemaSource, error) {
	id, path := splitRef(ref)
	return svc.LoadSchema(id, path)
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <id|path>",
		Short: "Compile a schema and report problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := newService()
			src, err := loadSchema(svc, args[0])
			if err != nil {
				return err
			}
			tables, warnings, err := svc.Describe(src)
			if err != nil {
				errColor.Printf("Schema '%s' is invalid: %v\n", src.Name, err)
				return errors.New("validation failed")
			}
			for _, w := range warnings {
				warnColor.Printf("warning: %s\n", w)
			}
			okColor.Printf("Schema '%s' is valid (%d tables)\n", src.Name, len(tables))
			return nil
		},
	}
}

func describeCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "describe <id|path>",
		Short: "List the tables and fields of a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := newService()
			src, err := loadSchema(svc, args[0])
			if err != nil {
				return err
			}
			tables, _, err := svc.Describe(src)
			if err != nil {
				return err
			}

			if format == "json" {
				data, _ := json.MarshalIndent(tables, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tFIELD\tTYPE\tKIND")
			for _, t := range tables {
				for _, f := range t.Fields {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, f.Name, f.Type, f.Kind)
				}
			}
			w.Flush()
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")
	return cmd
}

func sampleCmd() *cobra.Command {
	var (
		count int
		seed  int64
	)

	cmd := &cobra.Command{
		Use:   "sample <id|path> <table>",
		Short: "Print generated records as JSON lines",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := newService()
			src, err := loadSchema(svc, args[0])
			if err != nil {
				return err
			}
			var seedPtr *int64
			if cmd.Flags().Changed("seed") {
				seedPtr = &seed
			}
			records, used, err := svc.Sample(src, args[1], count, seedPtr)
			if err != nil {
				return err
			}
			for _, rec := range records {
				data, err := json.Marshal(rec)
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			}
			if seedPtr == nil {
				fmt.Fprintf(os.Stderr, "seed: %d\n", used)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 5, "Number of records")
	cmd.Flags().Int64VarP(&seed, "seed", "s", 0, "Seed for RNG")
	return cmd
}

func produceCmd(cfg *config.Config) *cobra.Command {
	var (
		schemaRef     string
		sink          string
		brokerConfig  string
		natsURL       string
		topicTemplate string
		limit         int64
		duration      string
		seed          int64
		noPace        bool
		paceSigma     float64
		autoCreate    bool
		replicas      int
		verbose       bool
	)

	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Publish generated records to a broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger(logLevel)

			runRepo := runs.New(runsDSN)
			if err := runRepo.Init(); err != nil {
				return err
			}
			defer runRepo.Close()

			svc := app.NewRunService(schemas.NewFileRepository(schemasDir), runRepo, nil, logger)

			req := &domain.ProduceRequest{
				Sink:             sink,
				BrokerConfig:     brokerConfig,
				TopicTemplate:    topicTemplate,
				Limit:            limit,
				Pace:             !noPace,
				AutoCreateTopics: autoCreate,
				TopicReplicas:    replicas,
				Verbose:          verbose,
			}
			req.SchemaID, req.SchemaPath = splitRef(schemaRef)
			if brokerConfig == "" || cmd.Flags().Changed("nats-url") {
				req.BrokerURL = natsURL
			}
			if duration != "" {
				d, err := timeutil.ParseDuration(duration)
				if err != nil {
					return err
				}
				req.Duration = d
			}
			if cmd.Flags().Changed("seed") {
				req.Seed = &seed
			}
			if cmd.Flags().Changed("pace-sigma") {
				req.PaceSigma = &paceSigma
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			run, err := svc.Produce(ctx, req)
			if run == nil {
				return err
			}

			var stats domain.RunStats
			if len(run.Stats) > 0 {
				_ = json.Unmarshal(run.Stats, &stats)
			}
			summary := fmt.Sprintf("%d messages delivered (%d failed) in %.2fs, seed %d, run %s",
				stats.Delivered, stats.Failed, stats.DurationSeconds, run.Seed, run.ID)
			switch run.Status {
			case domain.RunStatusSuccess:
				okColor.Fprintln(os.Stderr, summary)
			case domain.RunStatusStopped:
				warnColor.Fprintln(os.Stderr, "Interrupted: "+summary)
			default:
				errColor.Fprintln(os.Stderr, "Run failed: "+summary)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&schemaRef, "schema", "", "Schema ID or file path")
	cmd.Flags().StringVar(&sink, "sink", cfg.Sink, "Sink (nats|stdout)")
	cmd.Flags().StringVar(&brokerConfig, "broker-config", "", "Broker properties file")
	cmd.Flags().StringVar(&natsURL, "nats-url", cfg.NATSURL, "NATS server URL")
	cmd.Flags().StringVar(&topicTemplate, "topic-template", cfg.TopicTemplate, "Topic name template, {name} is the table name")
	cmd.Flags().Int64Var(&limit, "limit", 0, "Stop after this many records (0 for no limit)")
	cmd.Flags().StringVar(&duration, "duration", "", "Stop after this long (seconds or a duration like 5m)")
	cmd.Flags().Int64VarP(&seed, "seed", "s", 0, "Seed for RNG")
	cmd.Flags().BoolVar(&noPace, "no-pace", false, "Publish as fast as possible")
	cmd.Flags().Float64Var(&paceSigma, "pace-sigma", domain.DefaultPaceSigma, "Spread of the log-normal pacing interval")
	cmd.Flags().BoolVar(&autoCreate, "autocreate-topic", false, "Create missing topics before publishing")
	cmd.Flags().IntVar(&replicas, "topic-replicas", 1, "Replicas for created topics")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every produced record")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect run history",
	}

	var (
		limit  int
		status string
		format string
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runRepo := runs.New(runsDSN)
			if err := runRepo.Init(); err != nil {
				return err
			}
			defer runRepo.Close()

			list, err := runRepo.List(limit, status)
			if err != nil {
				return err
			}

			if format == "json" {
				data, _ := json.MarshalIndent(list, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSCHEMA\tSINK\tSTATUS\tSTARTED")
			for _, r := range list {
				id := r.ID
				if len(id) > 8 {
					id = id[:8]
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					id, r.SchemaName, r.Sink, r.Status, r.StartedAt.Format("2006-01-02 15:04"))
			}
			w.Flush()
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "Limit results")
	listCmd.Flags().StringVar(&status, "status", "", "Filter by status")
	listCmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")

	showCmd := &cobra.Command{
		Use:   "show <run_id>",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runRepo := runs.New(runsDSN)
			if err := runRepo.Init(); err != nil {
				return err
			}
			defer runRepo.Close()

			run, err := runRepo.Get(args[0])
			if err != nil {
				return err
			}

			data, _ := yaml.Marshal(run)
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}
