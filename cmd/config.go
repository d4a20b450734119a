package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/bankview/internal/config"
	"github.com/derickschaefer/bankview/internal/logging"
	"github.com/derickschaefer/bankview/internal/model"
	"github.com/derickschaefer/bankview/internal/render"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage bankview configuration",
	Long: `Read and write bankview configuration stored in config.json.

Values resolve in order: command-line flags, environment (including a .env
file), config.json in the current directory, then built-in defaults.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template config.json in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config.json already exists at %s (delete it first to re-initialise)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		fmt.Printf("✓ Created %s\n", path)
		fmt.Println("  Next: bankview warehouse init && bankview warehouse seed")
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the resolved configuration, or a single value",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			v, ok := cfg.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown config key %q (valid: %s)", args[0], strings.Join(configKeys(cfg), ", "))
			}
			fmt.Println(v)
			return nil
		}

		pairs := cfg.Values()
		for i := range pairs {
			if pairs[i][1] == "" {
				pairs[i][1] = "(not found)"
			}
		}

		format := resolveFormat(cfg.Format)
		if format == render.FormatTable {
			printKVTable(os.Stdout, pairs)
			return nil
		}
		data := model.TableData{Columns: []string{"key", "value"}}
		for _, p := range pairs {
			data.Rows = append(data.Rows, []string{p[0], p[1]})
		}
		result := &model.Result{
			Kind:        model.KindTable,
			GeneratedAt: time.Now(),
			Command:     "config get",
			Data:        data,
			Stats:       model.ResultStats{Items: len(pairs)},
		}
		return render.Render(os.Stdout, result, format)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in config.json",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.ToLower(args[0])
		val := args[1]

		// Load existing file or start from template
		f, path, err := loadConfigFile()
		if err != nil {
			if !os.IsNotExist(err) {
				return err
			}
			path = config.DefaultConfigFile
			f = config.Template()
		}

		switch key {
		case "warehouse_path":
			f.WarehousePath = val
		case "db_path":
			f.DBPath = val
		case "default_format", "format":
			if !render.ValidFormat(val) {
				return fmt.Errorf("unknown format %q (valid: %s)", val, strings.Join(render.Formats, ", "))
			}
			f.DefaultFormat = val
		case "timeout", "bank_ttl":
			if _, err := time.ParseDuration(val); err != nil {
				return fmt.Errorf("%s must be a duration like 30s or 10m", key)
			}
			if key == "timeout" {
				f.Timeout = val
			} else {
				f.BankTTL = val
			}
		case "rate":
			r, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("rate must be a number")
			}
			f.Rate = r
		case "cutoff":
			if _, err := time.Parse(model.DateLayout, val); err != nil {
				return fmt.Errorf("cutoff must be YYYY-MM-DD")
			}
			f.Cutoff = val
		case "unit":
			f.Unit = val
		case "default_bank_count":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return fmt.Errorf("default_bank_count must be a non-negative integer")
			}
			f.BankCount = n
		case "addr":
			f.Addr = val
		case "log_level":
			if _, err := logging.ParseLevel(val); err != nil {
				return err
			}
			f.LogLevel = val
		default:
			return fmt.Errorf("unknown config key: %q\n\nValid keys: warehouse_path, db_path, default_format, timeout, rate, bank_ttl, cutoff, unit, default_bank_count, addr, log_level", key)
		}

		if err := config.WriteFile(path, f); err != nil {
			return err
		}
		fmt.Printf("✓ Set %s in %s\n", key, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configGetCmd, configSetCmd)
}

// loadConfigFile reads config.json from cwd; used by configSetCmd.
func loadConfigFile() (config.File, string, error) {
	path := config.DefaultConfigFile
	data, err := os.ReadFile(path)
	if err != nil {
		return config.File{}, "", err
	}
	var f config.File
	if err := json.Unmarshal(data, &f); err != nil {
		return config.File{}, "", fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, path, nil
}

func configKeys(cfg *config.Config) []string {
	var keys []string
	for _, kv := range cfg.Values() {
		keys = append(keys, kv[0])
	}
	return keys
}
