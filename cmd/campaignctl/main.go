// Command campaignctl runs maintenance tasks against the campaign database: migrations,
// election data imports, prompt previews and the scheduled publish sweep.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/unclebandit/campaignhq-backend/internal/app"
	"github.com/unclebandit/campaignhq-backend/internal/config"
	"github.com/unclebandit/campaignhq-backend/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cli carries the flag values shared by every subcommand.
type cli struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	c.v.SetEnvPrefix("CAMPAIGNHQ")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "campaignctl",
		Short:         "CampaignHQ maintenance CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			if path := c.v.GetString("config"); path != "" {
				os.Setenv("CONFIG_PATH", path)
			}
		},
	}
	root.PersistentFlags().String("config", "", "YAML config file (overrides CONFIG_PATH)")
	root.PersistentFlags().Bool("json", false, "output JSON")
	_ = c.v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = c.v.BindPFlag("json", root.PersistentFlags().Lookup("json"))

	root.AddCommand(
		c.migrateCmd(),
		c.importCmd(),
		c.profilesCmd(),
		c.promptCmd(),
		c.publishDueCmd(),
		c.seedCmd(),
	)
	return root
}

func (c *cli) loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	zl, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, zl, nil
}

// withApp builds the full application for the duration of fn.
func (c *cli) withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, zl, err := c.loadConfig()
	if err != nil {
		return err
	}
	defer zl.Sync()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func (c *cli) jsonOutput() bool {
	return c.v.GetBool("json")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
