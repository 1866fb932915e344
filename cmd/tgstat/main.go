package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tgstat-tools/tgstat-cli/internal/config"
	"github.com/tgstat-tools/tgstat-cli/internal/logger"
	"github.com/tgstat-tools/tgstat-cli/internal/models"
	"github.com/tgstat-tools/tgstat-cli/internal/parser"
	"github.com/tgstat-tools/tgstat-cli/internal/services"
	"github.com/tgstat-tools/tgstat-cli/internal/storage"
	"github.com/tgstat-tools/tgstat-cli/internal/tui"
	"github.com/tgstat-tools/tgstat-cli/internal/utils"
)

func buildConfig(baseURL, exportDir string, pollInterval, backoffInterval, maxPollFailures, apiReadyAttempts int) *config.Config {
	cfg := config.NewConfig()
	cfg.LoadFromEnvironment()

	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if exportDir != "" {
		cfg.ExportDir = exportDir
	}
	if pollInterval > 0 {
		cfg.PollInterval = time.Duration(pollInterval) * time.Millisecond
	}
	if backoffInterval > 0 {
		cfg.BackoffInterval = time.Duration(backoffInterval) * time.Millisecond
	}
	if maxPollFailures > 0 {
		cfg.MaxPollFailures = maxPollFailures
	}
	if apiReadyAttempts > 0 {
		cfg.APIReadyAttempts = apiReadyAttempts
	}

	return cfg
}

func runParse(cfg *config.Config, request models.ParsingRequest, useTUI bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service := services.NewParsingService(cfg)

	if !service.WaitForAPIReady(cfg.APIReadyAttempts) {
		return fmt.Errorf("backend at %s did not become ready", cfg.BaseURL)
	}

	if useTUI {
		if err := logger.InitFileOnly(); err != nil {
			return err
		}
		defer logger.Close()

		return tui.NewParseMonitor(service).Run(ctx, request)
	}

	snapshot, err := service.Run(ctx, request)
	if err != nil {
		return err
	}

	path, err := service.Export(snapshot)
	if err != nil {
		return err
	}

	logger.Info("Done: task %s, %d results, exported to %s", snapshot.TaskID, len(snapshot.Results), path)
	return nil
}

func main() {
	logger.Init()
	utils.LoadEnvironment()

	var (
		baseURL          string
		exportDir        string
		pollInterval     int
		backoffInterval  int
		maxPollFailures  int
		apiReadyAttempts int
		category         string
		contentTypes     []string
		maxPages         int
		useTUI           bool
	)

	rootCmd := &cobra.Command{
		Use:   "tgstat-cli",
		Short: "A CLI tool for running TGStat parsing tasks",
		Long:  `tgstat-cli submits a parsing task to the TGStat parser backend, tracks it to completion, and exports the results.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := buildConfig(baseURL, exportDir, pollInterval, backoffInterval, maxPollFailures, apiReadyAttempts)
			if err := cfg.Validate(); err != nil {
				return err
			}

			parsed, err := parser.ParseContentTypes(contentTypes)
			if err != nil {
				return err
			}

			request := models.ParsingRequest{
				Category:     category,
				ContentTypes: parsed,
				MaxPages:     maxPages,
			}

			return runParse(cfg, request, useTUI)
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export [task-id]",
		Short: "Download the server-rendered export artifact for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := buildConfig(baseURL, exportDir, pollInterval, backoffInterval, maxPollFailures, apiReadyAttempts)
			if err := cfg.Validate(); err != nil {
				return err
			}

			service := services.NewParsingService(cfg)
			path, err := service.DownloadServerExport(args[0])
			if err != nil {
				return err
			}

			logger.Info("Export saved to %s", path)
			return nil
		},
	}

	categoriesCmd := &cobra.Command{
		Use:   "categories",
		Short: "List the categories accepted by the backend",
		Run: func(cmd *cobra.Command, args []string) {
			for _, c := range models.Categories {
				fmt.Println(c)
			}
		},
	}

	lastCmd := &cobra.Command{
		Use:   "last",
		Short: "Show the most recent completed run",
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := storage.GetLastRun()
			if err != nil {
				return err
			}
			if record == nil {
				fmt.Println("No runs recorded yet.")
				return nil
			}

			fmt.Printf("Task:     %s\n", record.TaskID)
			fmt.Printf("Category: %s\n", record.Category)
			fmt.Printf("Results:  %d\n", record.ResultCount)
			if record.ExportPath != "" {
				fmt.Printf("Export:   %s\n", record.ExportPath)
			}
			if record.ErrorMessage != "" {
				fmt.Printf("Error:    %s\n", record.ErrorMessage)
			}
			fmt.Printf("Finished: %s\n", time.Unix(record.FinishedAt, 0).Format(time.RFC3339))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&baseURL, "base-url", "u", "", "Base URL of the TGStat parser backend")
	rootCmd.PersistentFlags().StringVarP(&exportDir, "export-dir", "o", "", "Directory where export artifacts are written")
	rootCmd.PersistentFlags().IntVarP(&pollInterval, "poll-interval", "i", 0, "Status poll interval in milliseconds")
	rootCmd.PersistentFlags().IntVarP(&backoffInterval, "backoff-interval", "w", 0, "Retry interval after a failed poll in milliseconds")
	rootCmd.PersistentFlags().IntVarP(&maxPollFailures, "max-poll-failures", "r", 0, "Consecutive poll failures before giving up (0 = retry forever)")
	rootCmd.Flags().IntVar(&apiReadyAttempts, "api-ready-attempts", 0, "Maximum attempts to check API readiness before submitting")

	rootCmd.Flags().StringVarP(&category, "category", "c", "crypto", "Category tag to parse")
	rootCmd.Flags().StringSliceVarP(&contentTypes, "content-types", "t", []string{string(models.ContentTypeChannels)}, "Content types to parse (channels, chats)")
	rootCmd.Flags().IntVarP(&maxPages, "max-pages", "p", models.DefaultMaxPages, "Number of pages to parse (1-50)")
	rootCmd.Flags().BoolVar(&useTUI, "tui", false, "Show the interactive monitor while the task runs")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(lastCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("Failed to execute command: %v", err)
	}
}
