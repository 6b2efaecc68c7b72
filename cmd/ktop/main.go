// Command ktop is an interactive terminal viewer for per-topic ingestion
// rates across a Kafka-compatible broker cluster (spec.md §1).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/twmb/ktop/internal/config"
	"github.com/twmb/ktop/internal/kafkaclient"
	"github.com/twmb/ktop/internal/scrape"
	"github.com/twmb/ktop/internal/stats"
	"github.com/twmb/ktop/internal/tui"
)

func main() {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)

	if err := run(log); err != nil {
		log.WithError(err).Error("ktop exiting")
		os.Exit(1)
	}
}

func newRootCmd(log *logrus.Logger) (*cobra.Command, *pflag.FlagSet) {
	fs := pflag.NewFlagSet("ktop", pflag.ContinueOnError)
	fv := config.Register(fs)

	cmd := &cobra.Command{
		Use:   "ktop",
		Short: "Live per-topic ingestion rate viewer for a broker cluster",
		Long: `ktop polls a broker cluster's per-partition high watermarks, derives
per-topic ingestion rates from successive samples, and renders a live
terminal chart and sortable summary table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().AddFlagSet(fs)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := fv.Resolve()
		if err != nil {
			return fmt.Errorf("bad flags: %w", err)
		}
		return runKtop(cmd.Context(), cfg, log)
	}
	return cmd, fs
}

func run(log *logrus.Logger) error {
	cmd, _ := newRootCmd(log)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	cmd.SetContext(ctx)
	return cmd.Execute()
}

func runKtop(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	client, unrecognized, err := kafkaclient.New(kafkaclient.Options{
		Brokers:      cfg.Brokers,
		KafkaOptions: cfg.KafkaOptions,
	})
	if err != nil {
		return fmt.Errorf("unable to construct broker client: %w", err)
	}
	defer client.Close()

	for _, key := range unrecognized {
		log.Warnf("ignoring unrecognized -X option %q", key)
	}

	store := stats.New(cfg.ScrapeInterval)
	scraper := scrape.New(client, scrape.Config{
		ScrapeInterval: cfg.ScrapeInterval,
		ScrapeTimeout:  cfg.ScrapeTimeout,
	}, log.WithField("component", "scrape"))

	scrapeCtx, stopScrape := context.WithCancel(ctx)
	defer stopScrape()

	errs := make(chan error, 2)
	go func() { errs <- scraper.Run(scrapeCtx) }()
	go func() { errs <- scraper.RunProbe(scrapeCtx) }()

	model := tui.New(store, scraper.Events(), cfg.DrawInterval, cfg.ScrapeInterval, log.WithField("component", "tui"))
	program := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	// A scraper goroutine dying is fatal (spec.md §6/§7): watch for it in
	// real time and tear the program down with a non-zero exit in mind,
	// rather than only noticing after program.Run() returns on its own.
	fatal := make(chan error, 1)
	go func() {
		defer close(fatal)
		for i := 0; i < cap(errs); i++ {
			if serr := <-errs; serr != nil && !errors.Is(serr, context.Canceled) {
				fatal <- serr
				program.Quit()
				return
			}
		}
	}()

	_, err = program.Run()
	stopScrape()

	select {
	case ferr := <-fatal:
		if ferr != nil {
			return ferr
		}
	default:
	}
	return err
}
