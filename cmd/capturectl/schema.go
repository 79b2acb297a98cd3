package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/CaptureVault/internal/metadata"
	"github.com/dharsanguruparan/CaptureVault/internal/model"
)

type kindSchema struct {
	Kind     model.Kind                    `json:"kind"`
	Fields   map[string]metadata.FieldType `json:"fields"`
	Defaults model.Metadata                `json:"defaults"`
}

// newSchemaCmd prints the required metadata fields and defaults of one kind,
// or of every kind when none is given.
func newSchemaCmd() *cobra.Command {
	var bucket string
	cmd := &cobra.Command{
		Use:   "schema [kind]",
		Short: "Print metadata schema and defaults as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := model.Kinds
			if len(args) == 1 {
				k, err := model.ParseKind(args[0])
				if err != nil {
					return err
				}
				kinds = []model.Kind{k}
			}
			out, err := describeKinds(metadata.NewRegistry(bucket), kinds)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "captures", "Media bucket used for storage_bucket defaults")
	return cmd
}

func describeKinds(registry *metadata.Registry, kinds []model.Kind) ([]kindSchema, error) {
	out := make([]kindSchema, 0, len(kinds))
	for _, k := range kinds {
		schema, err := metadata.SchemaFor(k)
		if err != nil {
			return nil, err
		}
		defaults, err := registry.DefaultsFor(k)
		if err != nil {
			return nil, fmt.Errorf("defaults for %s: %w", k, err)
		}
		out = append(out, kindSchema{Kind: k, Fields: schema, Defaults: defaults})
	}
	return out, nil
}
