package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/UnknownOlympus/coordtrans/internal/models"
	"github.com/spf13/cobra"
)

func newGeoCmd() *cobra.Command {
	var city string

	cmd := &cobra.Command{
		Use:   "geo <address>",
		Short: "Geocode one address and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := bootstrap(os.Stderr)
			if err != nil {
				return err
			}

			query, err := application.validator.GeocodeQuery(strings.Join(args, " "), city)
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), application.client.Fetch(cmd.Context(), query))
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "restrict the search to a city")

	return cmd
}

func newRegeoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regeo <lon,lat>",
		Short: "Reverse geocode one point and print the result as JSON",
		// A western longitude such as -73.98,40.75 would otherwise parse as a shorthand flag.
		DisableFlagParsing: true,
		Args: func(cmd *cobra.Command, args []string) error {
			return cobra.ExactArgs(1)(cmd, pointArgs(args))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			point := pointArgs(args)[0]
			if point == "-h" || point == "--help" {
				return cmd.Help()
			}

			application, err := bootstrap(os.Stderr)
			if err != nil {
				return err
			}

			query, err := application.validator.ReverseQuery(point)
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), application.client.Fetch(cmd.Context(), query))
		},
	}
}

// pointArgs drops a leading "--" so both "regeo -1,2" and "regeo -- -1,2" work.
func pointArgs(args []string) []string {
	if len(args) > 0 && args[0] == "--" {
		return args[1:]
	}

	return args
}

// printResult writes the payload of a successful lookup, or returns the failure reason.
func printResult(out io.Writer, result models.ProviderResult) error {
	if result.Status != models.StatusSuccess {
		return errors.New(result.ErrorReason)
	}

	encoder := json.NewEncoder(out)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result.Payload()); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	return nil
}
