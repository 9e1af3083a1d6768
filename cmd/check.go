package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/heritage-watch/heritage-cli/internal/heritage"
	"github.com/heritage-watch/heritage-cli/internal/model"
	"github.com/heritage-watch/heritage-cli/pkg/geocode"
)

var (
	checkLat      float64
	checkLng      float64
	checkPostcode string
	checkAddress  string
	checkJSON     bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Resolve the heritage status of a single coordinate or postcode",
	Long:  "Loads the reference datasets, resolves one location, and prints the classification. Give either --lat/--lng or --postcode.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("check"); err != nil {
			return err
		}

		ctx := cmd.Context()

		q := model.Query{
			Latitude:  checkLat,
			Longitude: checkLng,
			Address:   checkAddress,
			Postcode:  checkPostcode,
		}

		hasCoords := cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng")
		if !hasCoords {
			if checkPostcode == "" {
				return eris.New("check: give either --lat and --lng, or --postcode")
			}
			client := geocode.NewClient(
				geocode.WithBaseURL(cfg.Geocode.BaseURL),
				geocode.WithRateLimit(cfg.Geocode.RequestsPerSecond),
			)
			loc, err := client.Lookup(ctx, checkPostcode)
			if err != nil {
				return eris.Wrap(err, "check: geocode postcode")
			}
			if !loc.Matched {
				return eris.Errorf("check: postcode %q not found", checkPostcode)
			}
			q.Latitude = loc.Latitude
			q.Longitude = loc.Longitude
			q.Postcode = loc.Postcode
		}

		store := heritage.NewStore()
		buildings, areas, err := manifestSource().Load(ctx)
		if err != nil {
			return eris.Wrap(err, "check: load datasets")
		}
		store.Load(buildings, areas, cfg.Engine.MaxRadiusMeters)

		hist, err := openHistory(ctx)
		if err != nil {
			return eris.Wrap(err, "check: open history store")
		}
		if hist != nil {
			defer hist.Close()
		}
		var recorder heritage.Recorder
		if hist != nil {
			recorder = hist
		}

		res, err := newService(store, recorder).Resolve(ctx, q)
		if err != nil {
			return err
		}

		if checkJSON {
			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return eris.Wrap(err, "check: encode result")
			}
			fmt.Println(string(out))
			return nil
		}

		printResolution(res)
		return nil
	},
}

func printResolution(res *model.Resolution) {
	fmt.Printf("Status: %s\n", res.Status)
	fmt.Printf("Location: %.5f, %.5f\n", res.Latitude, res.Longitude)
	if res.Postcode != "" {
		fmt.Printf("Postcode: %s\n", res.Postcode)
	}

	switch res.Status {
	case model.StatusRed:
		b := res.Building
		fmt.Printf("Listed building: %s (Grade %s, entry %s)\n", b.Name, b.Grade, b.ListEntry)
		fmt.Printf("Distance: %.1f m\n", res.DistanceMeters)
		fmt.Println("Listed Building Consent is required for alterations.")
	case model.StatusAmber:
		fmt.Printf("Conservation area: %s (%s)\n", res.Area.Name, res.Area.Borough)
		if res.HasArticle4 {
			fmt.Println("Article 4 directions apply: permitted development rights are restricted.")
			if res.Article4Details != "" {
				fmt.Printf("Restrictions: %s\n", res.Article4Details)
			}
		} else {
			fmt.Println("No Article 4 directions recorded for this area.")
		}
	case model.StatusGreen:
		fmt.Println("No heritage constraints found. Standard planning rules apply.")
	}
}

func init() {
	checkCmd.Flags().Float64Var(&checkLat, "lat", 0, "latitude (WGS84)")
	checkCmd.Flags().Float64Var(&checkLng, "lng", 0, "longitude (WGS84)")
	checkCmd.Flags().StringVar(&checkPostcode, "postcode", "", "UK postcode to geocode")
	checkCmd.Flags().StringVar(&checkAddress, "address", "", "free-text address annotation")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the full resolution as JSON")
	rootCmd.AddCommand(checkCmd)
}
