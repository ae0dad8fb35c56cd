package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mind-engage/cityprosperity/internal/indicator"
	"github.com/mind-engage/cityprosperity/internal/storage"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func indicatorsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "indicators",
		Short: "List the indicator catalog",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			defs := indicator.Default().List()
			if asJSON {
				return printJSON(defs)
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tUNIT\tSHAPE\tINPUTS")
			for _, d := range defs {
				names := make([]string, len(d.Inputs))
				for i, in := range d.Inputs {
					names[i] = in.Name
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Key, d.Unit, d.Standardization.Shape, strings.Join(names, ","))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print full definitions as JSON")
	return cmd
}

// parseInputs reads name=value pairs.
func parseInputs(args []string) (map[string]float64, error) {
	out := make(map[string]float64, len(args))
	for _, a := range args {
		name, val, ok := strings.Cut(a, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("expected name=value, got %q", a)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[strings.TrimSpace(name)] = f
	}
	return out, nil
}

func standardizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "standardize <indicator> name=value...",
		Short:   "Standardize one indicator without storing it",
		Example: "  cpi standardize poverty_rate population_below_poverty_line=120000 total_population=1000000",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			in, err := parseInputs(args[1:])
			if err != nil {
				return err
			}
			res, err := indicator.Default().Standardize(args[0], in)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func aggregateCmd() *cobra.Command {
	var cityName, country string

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Print the composite index of a stored city",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			v, err := a.service.GetAggregatedView(cmd.Context(), cityName, country)
			if err != nil {
				return err
			}
			return printJSON(v)
		},
	}

	cmd.Flags().StringVar(&cityName, "city", "", "city name")
	cmd.Flags().StringVar(&country, "country", "", "country name")
	_ = cmd.MarkFlagRequired("city")
	_ = cmd.MarkFlagRequired("country")
	return cmd
}

func exportCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a report snapshot for every stored city",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			if dir == "" {
				dir = a.cfg.BlobBasePath
			}
			bs, err := storage.NewFSStore(dir)
			if err != nil {
				return err
			}
			keys, err := a.service.ExportAll(cmd.Context(), bs)
			for _, k := range keys {
				fmt.Println(k)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "output directory (defaults to BLOB_BASE_PATH)")
	return cmd
}
