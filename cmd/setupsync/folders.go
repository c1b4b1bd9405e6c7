package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"setupsync/pkg/storage"
	"setupsync/pkg/ui"
)

// foldersCmd represents the folders command
var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List existing subfolders that can be passed to --subfolder",
	Long: `Scan the output folder for second-level directories whose name contains
the subfolder marker (output.subfolder_marker, "Garage 61" by default) and
print each distinct name once.`,
	Args: cobra.NoArgs,
	RunE: runFolders,
}

func init() {
	rootCmd.AddCommand(foldersCmd)
	foldersCmd.Flags().StringVarP(&outputDir, "output", "o", "", "setups root folder")
}

func runFolders(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{}
	if cmd.Flags().Changed("output") {
		flags["output"] = outputDir
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := initLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	store, err := storage.NewManager(cfg.Output.Root, log)
	if err != nil {
		return err
	}
	folders, err := store.ScanSubfolders(cfg.Output.SubfolderMarker)
	if err != nil {
		return err
	}

	if len(folders) == 0 {
		ui.PrintWarning(fmt.Sprintf("No folders containing %q under %s", cfg.Output.SubfolderMarker, cfg.Output.Root))
		return nil
	}
	for _, f := range folders {
		fmt.Println(f)
	}
	return nil
}
