package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/unitreplay/internal/output"
	"github.com/blackwell-systems/unitreplay/internal/remote"
	"github.com/blackwell-systems/unitreplay/internal/shim"
)

var installShimBinary string

var installCmd = &cobra.Command{
	Use:   "install <unit>",
	Short: "Push the recording layer to a live unit",
	Long: `Push the shim binary to a unit via juju scp and lay out the hook-tool
symlinks there. Once the unit's dispatch path routes hook tools through
the shim directory, every event the charm handles is recorded.

Reinstalling refreshes the binary and symlinks; an existing database on
the unit is left alone.`,
	Example: `  # Install on unit app/0 of the current model
  unitreplay install app/0

  # Push a cross-compiled shim binary
  unitreplay install app/0 --shim-binary ./dist/unitreplay-shim-linux-amd64`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <unit>",
	Short: "Remove the recording layer from a unit",
	Long: `Remove the shim directory and the recorded database from a unit. Fetch
the database first if you want to keep it.`,
	Args: cobra.ExactArgs(1),
	RunE: runUninstall,
}

func init() {
	installCmd.Flags().StringVar(&installShimBinary, "shim-binary", "", "Shim binary to push (default: unitreplay-shim next to this binary)")
	RootCmd.AddCommand(installCmd)
	RootCmd.AddCommand(uninstallCmd)
}

// localShimBinary locates the shim binary to push: the --shim-binary flag,
// or unitreplay-shim alongside the running executable.
func localShimBinary() (string, error) {
	if installShimBinary != "" {
		if _, err := os.Stat(installShimBinary); err != nil {
			return "", fmt.Errorf("shim binary not found at %s", installShimBinary)
		}
		return installShimBinary, nil
	}

	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("cannot locate running binary: %w", err)
	}
	candidate := filepath.Join(filepath.Dir(self), shim.BinaryName)
	if _, err := os.Stat(candidate); err != nil {
		return "", fmt.Errorf("%s not found next to %s; build it or pass --shim-binary", shim.BinaryName, self)
	}
	return candidate, nil
}

func runInstall(cmd *cobra.Command, args []string) error {
	unit := args[0]

	binary, err := localShimBinary()
	if err != nil {
		return err
	}

	spinner := output.NewSpinner(fmt.Sprintf("Installing recording layer on %s", unit))
	spinner.Start()

	client := remote.NewClient(nil, nil)
	if err := client.Install(cmd.Context(), unit, binary); err != nil {
		spinner.Stop()
		return err
	}

	spinner.StopWithMessage(fmt.Sprintf(
		"Installed on %s. Events will be recorded to %s.", unit, remote.DBPath(unit)))
	return nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	unit := args[0]

	client := remote.NewClient(nil, nil)
	if err := client.Uninstall(cmd.Context(), unit); err != nil {
		return err
	}
	fmt.Printf("Removed the recording layer from %s.\n", unit)
	return nil
}
