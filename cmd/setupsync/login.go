package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"setupsync/pkg/auth"
	"setupsync/pkg/control"
	"setupsync/pkg/ui"
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the setup site in a browser window",
	Long: `Open a Chrome window on the login page and wait until you have signed in.

The session is stored in the browser profile directory (browser.user_data_dir),
so later 'setupsync run' invocations reuse it, headless or not. Nothing you
type in the window is read by setupsync.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{"headless": false})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := initLogger(cfg, os.Stdout)
	if err != nil {
		return err
	}

	signals := control.NewSignals()
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stopWatching := watchInterrupts(signals, cancel, log)
	defer stopWatching()

	chrome, err := launchBrowser(ctx, cfg, "", log)
	if err != nil {
		return err
	}
	defer chrome.Close()

	loginURL := cfg.Site.LoginURL()
	auth.ShowLoginGuide(os.Stdout, loginURL, cfg.Site.DashboardMarker)

	outcome, err := auth.WaitForLogin(ctx, chrome, auth.Options{
		LoginURL:        loginURL,
		DashboardMarker: cfg.Site.DashboardMarker,
		Timeout:         cfg.Site.LoginTimeout,
	}, signals, log)
	switch outcome {
	case control.Cancelled:
		ui.PrintWarning("Login cancelled")
		return nil
	case control.Failed:
		return err
	}

	ui.PrintSuccess("Signed in, the session is saved in " + cfg.Browser.UserDataDir)

	cookies, err := chrome.Cookies(ctx, cfg.Site.SetupsURL())
	if err != nil {
		log.WithError(err).Debug("Could not read session cookies")
		return nil
	}
	for _, c := range auth.MaskCookies(cookies) {
		ui.PrintInfo("Cookie", c)
	}
	return nil
}
