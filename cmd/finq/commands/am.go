package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/FINQ/am"
	"github.com/teranos/FINQ/display"
	"github.com/teranos/FINQ/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Show and validate FINQ configuration",
	Long: `am: FINQ configuration ("I am")

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (FINQ_* prefix, plus OPENROUTER_API_KEY)
3. Project config (nearest am.toml walking up from the working directory)
4. User config (~/.finq/am.toml)
5. System config (/etc/finq/am.toml)
6. Default values

Examples:
  finq am show                    # Show current configuration
  finq am show --format json      # Show configuration in JSON format
  finq am get nlquery.history_turns
  finq am where                   # Show which source set each value
  finq am validate                # Validate current configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective configuration merged from all sources. Secrets are masked.",
	Args:  cobra.NoArgs,
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., database.path, forecast.confidence)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Args:  cobra.NoArgs,
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where each configuration value comes from",
	Args:  cobra.NoArgs,
	RunE:  runAmWhere,
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

// settingsTree nests dotted setting keys into maps, the shape of am.toml
func settingsTree(settings []am.SettingInfo) map[string]interface{} {
	tree := map[string]interface{}{}
	for _, s := range settings {
		parts := strings.Split(s.Key, ".")
		node := tree
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]interface{})
			if !ok {
				child = map[string]interface{}{}
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = s.Value
	}
	return tree
}

// renderConfig writes the settings in format
func renderConfig(w io.Writer, settings []am.SettingInfo, format string) error {
	tree := settingsTree(settings)

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(format) {
	case "json":
		data, err = json.MarshalIndent(tree, "", "  ")
		data = append(data, '\n')
	case "yaml":
		data, err = yaml.Marshal(tree)
		data = append([]byte("# FINQ configuration\n"), data...)
	case "toml":
		data, err = toml.Marshal(tree)
		data = append([]byte("# FINQ configuration\n"), data...)
	default:
		return errors.WithHint(
			errors.NewInvalidRequestError("unsupported format: %s", format),
			"supported formats are toml, json and yaml")
	}
	if err != nil {
		return errors.Wrapf(err, "failed to render config as %s", format)
	}
	_, err = w.Write(data)
	return err
}

func runAmShow(cmd *cobra.Command, args []string) error {
	format := configFormat
	if display.ShouldOutputJSON(cmd) {
		format = "json"
	}
	return renderConfig(cmd.OutOrStdout(), am.Settings(), format)
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(args[0])

	for _, s := range am.Settings() {
		if s.Key != key {
			continue
		}
		if display.ShouldOutputJSON(cmd) {
			return display.WriteJSON(cmd.OutOrStdout(), s)
		}
		fmt.Fprintln(cmd.OutOrStdout(), s.Value)
		return nil
	}
	return errors.WithHint(
		errors.NewNotFoundError("configuration key %q", key),
		"run finq am show to list every key")
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	pterm.Success.Println("Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	settings := am.Settings()
	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), settings)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(out, "  1. [DEFAULT]  Built-in defaults")
	fmt.Fprintln(out, "  2. [SYSTEM]   /etc/finq/am.toml")
	fmt.Fprintln(out, "  3. [USER]     ~/.finq/am.toml")
	fmt.Fprintln(out, "  4. [PROJECT]  ./am.toml (searches up directories)")
	fmt.Fprintln(out, "  5. [ENV]      FINQ_* environment variables")
	fmt.Fprintln(out)

	data := pterm.TableData{{"Key", "Value", "Source"}}
	for _, s := range settings {
		value := fmt.Sprintf("%v", s.Value)
		if len(value) > 50 {
			value = value[:47] + "..."
		}
		source := string(s.Source)
		if s.SourcePath != "" && s.Source != am.SourceDefault {
			source += " (" + s.SourcePath + ")"
		}
		data = append(data, []string{s.Key, value, source})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, table)
	return nil
}
