package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"cms-tags/models"
	"cms-tags/services"
	"cms-tags/site"
)

var (
	cloudLimit     int
	cloudWeighting string
	cloudSite      uint
)

var cloudCmd = &cobra.Command{
	Use:   "cloud",
	Short: "Print the weighted tag cloud",
	RunE:  runCloud,
}

func init() {
	cloudCmd.Flags().IntVar(&cloudLimit, "limit", -1, "Number of tags (0 for all, default from config)")
	cloudCmd.Flags().StringVar(&cloudWeighting, "weighting", "", "Weighting: band or size (default from config)")
	cloudCmd.Flags().UintVar(&cloudSite, "site", 0, "Site id when tags are site scoped")
	rootCmd.AddCommand(cloudCmd)
}

func runCloud(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	var weighting services.Weighting
	if cloudWeighting != "" {
		if weighting, err = services.ParseWeighting(cloudWeighting); err != nil {
			return err
		}
	}

	tagService, err := a.tagService(site.Fixed(cloudSite))
	if err != nil {
		return err
	}

	limit := cloudLimit
	if limit < 0 {
		limit = a.cfg.Tags.Cloud.Limit
	}

	tags, err := tagService.Cloud(cmd.Context(), limit, weighting)
	if err != nil {
		return err
	}
	return printCloud(cmd.OutOrStdout(), tags)
}

func printCloud(w io.Writer, tags []models.Tag) error {
	for _, t := range tags {
		weight := t.CloudSize
		if t.CloudBand != nil {
			weight = "band " + strconv.Itoa(*t.CloudBand)
		}
		if _, err := fmt.Fprintf(w, "%-32s %6d  %s\n", t.Title, t.UseCount, weight); err != nil {
			return err
		}
	}
	return nil
}
