package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/unclebandit/campaignhq-backend/internal/app"
	"github.com/unclebandit/campaignhq-backend/internal/audience"
	"github.com/unclebandit/campaignhq-backend/internal/db"
	"github.com/unclebandit/campaignhq-backend/internal/importer"
	"github.com/unclebandit/campaignhq-backend/internal/model"
	"github.com/unclebandit/campaignhq-backend/internal/service"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, zl, err := c.loadConfig()
			if err != nil {
				return err
			}
			defer zl.Sync()

			conn, err := db.Open(cmd.Context(), cfg.Database, zl)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := db.Migrate(cmd.Context(), conn, cfg.Database.Driver); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func (c *cli) importCmd() *cobra.Command {
	imp := &cobra.Command{Use: "import", Short: "Import election data"}
	imp.AddCommand(
		c.importFileCmd("results <csv>", "Import county election results (long or wide CSV)",
			func(ctx context.Context, im *importer.Importer, r io.Reader) (*importer.Report, error) {
				return im.ImportResults(ctx, r)
			}),
		c.importFileCmd("counties <geojson>", "Import county boundaries from a GeoJSON FeatureCollection",
			func(ctx context.Context, im *importer.Importer, r io.Reader) (*importer.Report, error) {
				return im.ImportCounties(ctx, r)
			}),
	)
	return imp
}

func (c *cli) importFileCmd(use, short string, run func(context.Context, *importer.Importer, io.Reader) (*importer.Report, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				report, err := run(ctx, a.Importer(), f)
				if err != nil {
					return err
				}
				return c.printReport(cmd.OutOrStdout(), report)
			})
		},
	}
}

func (c *cli) printReport(w io.Writer, report *importer.Report) error {
	if c.jsonOutput() {
		return printJSON(w, report)
	}
	fmt.Fprintf(w, "format=%s rows=%d upserted=%d skipped=%d\n",
		report.Format, report.Rows, report.Upserted, len(report.Errors))
	if len(report.Errors) == 0 {
		return nil
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Line", "Reason"})
	for _, e := range report.Errors {
		tw.AppendRow(table.Row{e.Line, e.Reason})
	}
	tw.Render()
	return nil
}

func (c *cli) profilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List audience profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.loadConfig()
			if err != nil {
				return err
			}
			reg, err := audience.FromFile(cfg.Audience.CatalogPath)
			if err != nil {
				return err
			}
			profiles := reg.List()
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), profiles)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"ID", "Name", "Tone", "Emphasis"})
			for _, p := range profiles {
				tw.AppendRow(table.Row{p.ID, p.Name, p.Tone, strings.Join(p.Emphasis, ", ")})
			}
			tw.Render()
			return nil
		},
	}
}

func (c *cli) promptCmd() *cobra.Command {
	var campaignID, profileID string
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the generation instructions for a campaign and audience profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				instructions, err := a.Campaigns.PreviewPrompt(ctx, campaignID, profileID)
				if err != nil {
					return err
				}
				if c.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), map[string]string{
						"campaign_id":  campaignID,
						"profile":      profileID,
						"instructions": instructions,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), instructions)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&campaignID, "campaign", "", "campaign id")
	cmd.Flags().StringVar(&profileID, "profile", "", "audience profile id")
	_ = cmd.MarkFlagRequired("campaign")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}

func (c *cli) publishDueCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "publish-due",
		Short: "Publish scheduled messages whose time has come",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			when := time.Now().UTC()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				when = t
			}
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				report, err := a.Dispatcher.PublishDue(ctx, when)
				if err != nil {
					return err
				}
				if c.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), report)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "due=%d published=%d failed=%d\n", report.Due, report.Published, report.Failed)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "sweep time as RFC3339 (default now)")
	return cmd
}

// seedCmd creates a demo campaign with one draft message for local development.
func (c *cli) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create a demo campaign and draft message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				actor := model.Actor{ID: "seeder", Role: model.RoleOwner}
				campaign, err := a.Campaigns.CreateCampaign(ctx, actor, "Jane for Senate", "Demo campaign", model.CampaignProfile{
					Candidate: model.CandidateInfo{Name: "Jane Doe", Office: "State Senate", Party: "Independent"},
					Policy:    model.PolicyPriorities{TopPriorities: []string{"Healthcare", "Education"}},
				})
				if err != nil {
					return err
				}
				msg, err := a.Messages.CreateMessage(ctx, actor, service.CreateMessageInput{
					CampaignID: campaign.ID,
					Title:      "Rally this Saturday",
					Content:    "Join Jane Doe at the town hall this Saturday at noon.",
					Platform:   model.PlatformEmail,
				})
				if err != nil {
					return err
				}
				if c.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), map[string]string{"campaign_id": campaign.ID, "message_id": msg.ID})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "campaign %s\nmessage %s\n", campaign.ID, msg.ID)
				return nil
			})
		},
	}
}
