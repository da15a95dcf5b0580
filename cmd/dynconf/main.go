// Dynconf - Bulk Device Configuration Tool
//
// Renders a Jinja2-style template per device from a tabular data file
// (YAML, JSON, or CSV) and pushes the rendered commands to each device
// over SSH:
//
//	dynconf devices.csv                      # render + push (configure mode)
//	dynconf -m show devices.yaml             # run show commands, capture output
//	dynconf -m render devices.json -o out/   # render to files, no connections
//	dynconf check devices.csv                # validate the data file only
//
// Each data-file record needs `host` and `device_type`; the optional
// `id`, `username`, `password`, `port`, `secret`, and `template` fields
// carry connection parameters, and every other field is a template
// variable. Devices are independent: one device's failure never stops
// the others, and the run exits non-zero if any device failed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dynconf/dynconf/pkg/cli"
	"github.com/dynconf/dynconf/pkg/device"
	"github.com/dynconf/dynconf/pkg/render"
	"github.com/dynconf/dynconf/pkg/run"
	"github.com/dynconf/dynconf/pkg/session"
	"github.com/dynconf/dynconf/pkg/settings"
	"github.com/dynconf/dynconf/pkg/util"
	"github.com/dynconf/dynconf/pkg/version"
)

var (
	// Option flags
	mode           string
	templateName   string
	templateDir    string
	defaultUser    string
	defaultPass    string
	defaultSecret  string
	promptPassword bool
	workers        int
	outputDir      string
	skipInvalid    bool
	verbose        bool
	jsonLogs       bool

	// Global state
	userSettings *settings.Settings
)

// errDevicesFailed distinguishes per-device failures (exit 1) from fatal
// load errors (exit 2).
var errDevicesFailed = errors.New("one or more devices failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errDevicesFailed) {
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

var rootCmd = &cobra.Command{
	Use:           "dynconf <datafile>",
	Short:         "Bulk device configuration from templates",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `Dynconf renders one template per device from a data file and pushes
the rendered commands over SSH.

The data file (.yml/.yaml/.json/.csv) is a list of flat records. Required
fields: host, device_type. Optional connection fields: id, username,
password, port, secret, template. All remaining fields become template
variables.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isHelpOrVersion(cmd) {
			return nil
		}

		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}

		// Apply defaults from settings where flags were not given
		if defaultUser == "" {
			defaultUser = userSettings.DefaultUsername
		}
		if templateDir == "" {
			templateDir = userSettings.GetTemplateDir()
		}
		if outputDir == "" {
			outputDir = userSettings.OutputDir
		}
		if workers == 0 {
			workers = userSettings.GetWorkers()
		}

		// Quiet by default, debug on -v
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		if jsonLogs {
			util.SetJSONFormat()
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		runMode := run.Mode(strings.ToLower(mode))
		if !run.ValidMode(runMode) {
			return fmt.Errorf("invalid mode %q (expected configure, show, or render)", mode)
		}

		if promptPassword {
			pass, err := readPassword("Default password: ")
			if err != nil {
				return err
			}
			defaultPass = pass
		}

		dataFile := args[0]
		env, err := run.NewEnvironment(dataFile, run.Options{
			Defaults: device.Defaults{
				Username: defaultUser,
				Password: defaultPass,
				Secret:   defaultSecret,
				Template: templateName,
			},
			SkipInvalid: skipInvalid,
		})
		if err != nil {
			return err
		}

		renderer, err := render.New(templateDir)
		if err != nil {
			return err
		}

		runner := &run.Runner{
			Env:      env,
			Renderer: renderer,
			Dialer:   session.NewSSHDialer(),
			Mode:     runMode,
			Workers:  workers,
			Progress: run.NewConsoleProgress(verbose),
		}
		summary := runner.Run(context.Background())

		reporter := &run.Reporter{Dir: deriveOutputDir(dataFile, runMode)}
		if err := reporter.Write(summary, runMode); err != nil {
			return err
		}

		if !summary.OK() {
			return errDevicesFailed
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <datafile>",
	Short: "Validate a data file and list its devices without connecting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := run.NewEnvironment(args[0], run.Options{
			Defaults: device.Defaults{
				Username: defaultUser,
				Password: defaultPass,
				Secret:   defaultSecret,
				Template: templateName,
			},
			SkipInvalid: skipInvalid,
		})
		if err != nil {
			return err
		}

		table := cli.NewTable("ID", "HOST", "DEVICE_TYPE", "PORT", "TEMPLATE", "VARS")
		for _, d := range env.Devices {
			table.Row(d.ID, d.Host, d.DeviceType, strconv.Itoa(d.Port), d.Template,
				strings.Join(d.Extra.Keys(), ","))
		}
		table.Flush()

		fmt.Printf("\n%d devices", len(env.Devices))
		if len(env.Skipped) > 0 {
			fmt.Printf(", %s", cli.Yellow(fmt.Sprintf("%d skipped", len(env.Skipped))))
		}
		fmt.Println()
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version.Version == "dev" {
			fmt.Println("dynconf dev build (use 'make build' for version info)")
		} else {
			fmt.Printf("dynconf %s (%s)\n", version.Version, version.GitCommit)
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&mode, "mode", "m", "configure", "Run mode: configure, show, or render")
	flags.StringVarP(&templateName, "template", "t", "", "Default template file name (default template.j2)")
	flags.StringVarP(&templateDir, "template-dir", "T", "", "Template root directory (default \".\")")
	flags.StringVarP(&defaultUser, "username", "u", "", "Default username for device connections (default admin)")
	flags.StringVarP(&defaultPass, "password", "p", "", "Default password for device connections")
	flags.StringVarP(&defaultSecret, "secret", "s", "", "Default enable secret for device connections")
	flags.BoolVar(&promptPassword, "prompt", false, "Prompt for the default password (no echo)")
	flags.IntVar(&workers, "threads", 0, "Concurrent device workers (default 1)")
	flags.StringVarP(&outputDir, "output", "o", "", "Output directory (default derived from the data file)")
	flags.BoolVar(&skipInvalid, "skip-invalid", false, "Skip records failing validation instead of aborting")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	flags.BoolVar(&jsonLogs, "json", false, "JSON log output")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

// deriveOutputDir returns --output, or a directory next to the data file
// named after it: devices.csv → devices.output (or devices.render).
func deriveOutputDir(dataFile string, mode run.Mode) string {
	if outputDir != "" {
		return outputDir
	}
	base := strings.TrimSuffix(dataFile, filepath.Ext(dataFile))
	if mode == run.ModeRender {
		return base + ".render"
	}
	return base + ".output"
}

// readPassword reads a password from the terminal without echo.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pass), nil
}

// isHelpOrVersion checks whether cmd (or any ancestor) is a help or
// version command.
func isHelpOrVersion(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version":
			return true
		}
	}
	return false
}
