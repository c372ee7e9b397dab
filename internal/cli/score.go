package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/greencredits/greencredits/internal/app/quality"
	"github.com/greencredits/greencredits/internal/domain"
)

func init() {
	rootCmd.AddCommand(scoreCmd)
	scoreCmd.Flags().StringP("description", "d", "", "Report description")
	scoreCmd.Flags().StringP("address", "a", "", "Report address")
	scoreCmd.Flags().String("lat", "", "Latitude")
	scoreCmd.Flags().String("lng", "", "Longitude")
	scoreCmd.Flags().Bool("photo", false, "The report has a photo")
	scoreCmd.Flags().Bool("json", false, "Print the breakdown as JSON")
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Explain the quality score of a report",
	Example: `  greencredits score --photo --lat 12.97 --lng 77.59 \
    -d "Overflowing garbage bin near the park" -a "MG Road, Bengaluru"`,
	Args: cobra.NoArgs,
	RunE: runScore,
}

func runScore(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	description, _ := flags.GetString("description")
	address, _ := flags.GetString("address")
	hasPhoto, _ := flags.GetBool("photo")
	asJSON, _ := flags.GetBool("json")

	r := domain.Report{Description: description, Address: address}
	if hasPhoto {
		r.PhotoURL = "photo"
	}
	var err error
	if r.Lat, err = floatFlag(cmd, "lat"); err != nil {
		return err
	}
	if r.Lng, err = floatFlag(cmd, "lng"); err != nil {
		return err
	}

	b := quality.Explain(r)
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"breakdown": b, "score": b.Total()})
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CRITERION\tPOINTS\tMAX")
	fmt.Fprintf(w, "photo\t%d\t%d\n", b.Photo, quality.WeightPhoto)
	fmt.Fprintf(w, "gps\t%d\t%d\n", b.GPS, quality.WeightGPS)
	fmt.Fprintf(w, "description\t%d\t%d\n", b.Description, quality.WeightDescription)
	fmt.Fprintf(w, "address\t%d\t%d\n", b.Address, quality.WeightAddress)
	fmt.Fprintf(w, "keywords\t%d\t%d\n", b.Keywords, quality.WeightKeywords)
	fmt.Fprintf(w, "total\t%d\t%d\n", b.Total(), quality.MaxScore)
	return w.Flush()
}

func floatFlag(cmd *cobra.Command, name string) (*float64, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("--%s: %q is not a number", name, s)
	}
	return &v, nil
}
