package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"setupsync/internal/downloader"
	"setupsync/pkg/auth"
	"setupsync/pkg/config"
	"setupsync/pkg/control"
	"setupsync/pkg/listing"
	"setupsync/pkg/logger"
	"setupsync/pkg/models"
	"setupsync/pkg/organizer"
	"setupsync/pkg/progress"
	"setupsync/pkg/report"
	"setupsync/pkg/scraper"
	"setupsync/pkg/site"
	"setupsync/pkg/storage"
	"setupsync/pkg/ui"
	"setupsync/pkg/ui/tui"
)

// eventBuffer bounds the progress/log channel between the run and its observer.
const eventBuffer = 256

var (
	// Run command flags
	outputDir string
	subfolder string
	mode      string
	itemDelay time.Duration
	headless  bool
	useTUI    bool
	noNotify  bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Download and install every eligible setup",
	Long: `Open the setups listing, scroll until every active section is loaded,
then download each eligible setup and install it under the output folder.

Existing destinations are replaced. Failed setups are listed at the end and
written to the run report; the rest of the run continues.

Press ctrl+c once to stop after the current step, twice to abort. With --tui,
press s to skip the current setup and q to stop.`,
	Example: `  # Sync into the default iRacing setups folder
  setupsync run

  # Install into a Garage 61 subfolder using the browser's own download button
  setupsync run --subfolder "Garage 61 - Team" --mode click

  # Watch the browser while it works
  setupsync run --headless=false --tui`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&outputDir, "output", "o", "", "setups root folder")
	runCmd.Flags().StringVarP(&subfolder, "subfolder", "s", "", "folder inserted between car and track")
	runCmd.Flags().StringVarP(&mode, "mode", "m", "", "delivery mode (direct, click)")
	runCmd.Flags().DurationVar(&itemDelay, "delay", time.Second, "pause between setups, also sets the scroll settle/grace waits unless configured")
	runCmd.Flags().BoolVar(&headless, "headless", true, "run Chrome without a window")
	runCmd.Flags().BoolVar(&useTUI, "tui", false, "use interactive terminal UI with skip/stop keys")
	runCmd.Flags().BoolVar(&noNotify, "no-notify", false, "disable the desktop notification")
}

func runFlags(cmd *cobra.Command) map[string]interface{} {
	fl := cmd.Flags()
	flags := map[string]interface{}{}
	if fl.Changed("output") {
		flags["output"] = outputDir
	}
	if fl.Changed("subfolder") {
		flags["subfolder"] = subfolder
	}
	if fl.Changed("mode") {
		flags["mode"] = mode
	}
	if fl.Changed("delay") {
		flags["delay"] = itemDelay
	}
	if fl.Changed("headless") {
		flags["headless"] = headless
	}
	if fl.Changed("tui") {
		flags["tui"] = useTUI
	}
	if noNotify {
		flags["notifications"] = false
	}
	return flags
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(runFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	events := progress.NewChannel(eventBuffer)
	signals := control.NewSignals()

	var log logger.Logger
	if cfg.UI.TUI {
		log, err = initLogger(cfg, nil, logger.NewEventWriter(events))
	} else {
		log, err = initLogger(cfg, os.Stdout)
	}
	if err != nil {
		return err
	}

	if !cfg.UI.TUI {
		ui.PrintInfo("Setups page", cfg.Site.SetupsURL())
		ui.PrintInfo("Output", cfg.Output.Root)
		if cfg.Output.Subfolder != "" {
			ui.PrintInfo("Subfolder", cfg.Output.Subfolder)
		}
		ui.PrintInfo("Mode", cfg.Delivery.Mode)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stopWatching := watchInterrupts(signals, cancel, log)
	defer stopWatching()

	var result models.RunResult
	if cfg.UI.TUI {
		result, err = runWithDashboard(ctx, cancel, cfg, signals, events, log)
	} else {
		printer := ui.NewPrinter(os.Stdout)
		printed := make(chan struct{})
		go func() {
			printer.Consume(events.Events())
			close(printed)
		}()
		result, err = syncOnce(ctx, cfg, signals, progress.NewReporter(events), log)
		events.Close()
		<-printed
	}
	if err != nil {
		return err
	}

	writer, err := report.NewWriter(cfg.Run.ReportDir, log)
	if err != nil {
		log.WithError(err).Warn("Could not open report directory")
	} else if path, err := writer.Write(result); err != nil {
		log.WithError(err).Warn("Could not write run report")
	} else {
		log.WithField("path", path).Debug("Run report written")
	}

	if !cfg.UI.TUI {
		ui.PrintSummary(os.Stdout, result)
	}
	ui.NewNotifier(cfg.UI.Notifications).NotifyRun(result)

	if result.Error != "" {
		return fmt.Errorf("sync failed: %s", result.Error)
	}
	return nil
}

// runWithDashboard runs the sync in the background while the dashboard owns
// the terminal. Quitting the dashboard early aborts the sync.
func runWithDashboard(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, signals *control.Signals, events *progress.Channel, log logger.Logger) (models.RunResult, error) {
	dash := tui.New(signals, events.Events())

	type outcome struct {
		result models.RunResult
		err    error
	}
	finished := make(chan outcome, 1)
	go func() {
		result, err := syncOnce(ctx, cfg, signals, progress.NewReporter(events), log)
		if err != nil {
			log.WithError(err).Error("Sync could not start")
			result.Error = err.Error()
		}
		dash.Done(result)
		finished <- outcome{result, err}
	}()

	if err := dash.Run(); err != nil {
		cancel()
		<-finished
		return models.RunResult{}, fmt.Errorf("dashboard failed: %w", err)
	}

	signals.Stop()
	cancel()
	out := <-finished
	events.Close()
	ui.PrintSummary(os.Stdout, out.result)
	return out.result, out.err
}

// syncOnce launches Chrome, checks the session and performs one run. An
// error means the run never started; listing problems are in the result.
func syncOnce(ctx context.Context, cfg *config.Config, signals *control.Signals, reporter *progress.Reporter, log logger.Logger) (models.RunResult, error) {
	store, err := storage.NewManager(cfg.Output.Root, log)
	if err != nil {
		return models.RunResult{}, fmt.Errorf("failed to prepare output folder: %w", err)
	}

	downloadDir := cfg.DownloadDir()
	chrome, err := launchBrowser(ctx, cfg, downloadDir, log)
	if err != nil {
		return models.RunResult{}, err
	}
	defer chrome.Close()

	if err := auth.CheckSession(ctx, chrome, cfg.Site.SetupsURL(), cfg.Site.LoginURL(), log); err != nil {
		return models.RunResult{}, err
	}

	diag := listing.NewDiagnostics(afero.NewOsFs(), cfg.DiagnosticsDir(), log)

	var deliverer downloader.Deliverer
	switch cfg.Delivery.Mode {
	case config.ModeClick:
		deliverer = downloader.NewClickThrough(chrome, store, downloadDir, cfg.Selectors, cfg.Delivery, signals, log)
	default:
		client := site.NewClient(cfg.Delivery.RequestTimeout, cfg.Site.UserAgent, log)
		client.SetHeader("Referer", cfg.Site.SetupsURL())
		deliverer = downloader.NewDirect(chrome, client, store, downloadDir, cfg.Delivery.ChunkSize, signals, log)
	}

	s := scraper.New(scraper.Deps{
		Page:      chrome,
		Renderer:  listing.NewScroller(chrome, cfg.Selectors, cfg.Scroll, signals, diag, log),
		Extractor: listing.NewExtractor(cfg.Selectors, diag, log),
		Deliverer: deliverer,
		Organizer: organizer.New(store, organizer.Options{
			Subfolder:      cfg.Output.Subfolder,
			ScratchDir:     cfg.Output.ScratchDir,
			SetupExtension: cfg.Output.SetupExtension,
			RaceMarker:     cfg.Output.RaceMarker,
		}, log),
		Signals:  signals,
		Reporter: reporter,
		Logger:   log,
	}, scraper.Options{
		SetupsURL: cfg.Site.SetupsURL(),
		ItemDelay: cfg.Run.ItemDelay,
	})

	return s.Run(ctx), nil
}

// watchInterrupts turns the first interrupt into a graceful stop and the
// second into cancellation of ctx.
func watchInterrupts(signals *control.Signals, cancel context.CancelFunc, log logger.Logger) func() {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ch:
				if signals.Stopped() {
					log.Warn("Second interrupt, aborting")
					cancel()
					return
				}
				signals.Stop()
				log.Warn("Interrupt received, stopping after the current step")
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
