package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rushteam/tabrec/artifact"
	"github.com/rushteam/tabrec/table"
	"github.com/rushteam/tabrec/train"
)

var (
	trainItems             string
	trainItemsSchema       string
	trainInteractions      string
	trainInteractionSchema string
	trainKind              string
	trainRank              int
	trainWeight            float64
)

var trainCmd = &cobra.Command{
	Use:   "train PROJECT",
	Short: "Train a new model version from CSV tables",
	Long: `Train a new model version for PROJECT and make it current.

The model kind follows the tables supplied unless --kind is set:
  items + interactions  hybrid
  items only            content
  interactions only     collaborative

Examples:
  tabrec train movies --items movies.csv --items-schema movies.yaml
  tabrec train movies --interactions ratings.csv --interactions-schema ratings.yaml --rank 20`,
	Args: cobra.ExactArgs(1),
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringVar(&trainItems, "items", "", "Item table (CSV)")
	trainCmd.Flags().StringVar(&trainItemsSchema, "items-schema", "", "Schema file for the item table (YAML/JSON)")
	trainCmd.Flags().StringVar(&trainInteractions, "interactions", "", "Interaction table (CSV)")
	trainCmd.Flags().StringVar(&trainInteractionSchema, "interactions-schema", "", "Schema file for the interaction table (YAML/JSON)")
	trainCmd.Flags().StringVar(&trainKind, "kind", "", "Model kind: content, collaborative or hybrid")
	trainCmd.Flags().IntVar(&trainRank, "rank", 0, "Latent factors for the collaborative model (0 uses training.rank)")
	trainCmd.Flags().Float64Var(&trainWeight, "weight", 0, "Content weight for the hybrid model (default serving.hybrid_weight)")
	trainCmd.MarkFlagsRequiredTogether("items", "items-schema")
	trainCmd.MarkFlagsRequiredTogether("interactions", "interactions-schema")
	trainCmd.MarkFlagsOneRequired("items", "interactions")
}

func runTrain(cmd *cobra.Command, args []string) error {
	req := &train.Request{
		Project: args[0],
		Kind:    artifact.Kind(trainKind),
		Rank:    trainRank,
	}
	if cmd.Flags().Changed("weight") {
		w := trainWeight
		req.HybridWeight = &w
	}

	var err error
	if trainItems != "" {
		if req.Items, req.ContentSchema, err = loadTable(trainItems, trainItemsSchema); err != nil {
			return err
		}
	}
	if trainInteractions != "" {
		if req.Interactions, req.InteractionSchema, err = loadTable(trainInteractions, trainInteractionSchema); err != nil {
			return err
		}
	}

	mv, err := rt.Trainer.Train(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), mv)
}

func loadTable(csvPath, schemaPath string) (*table.Table, table.Schema, error) {
	t, err := table.LoadCSV(csvPath)
	if err != nil {
		return nil, table.Schema{}, fmt.Errorf("load %s: %w", csvPath, err)
	}
	s, err := table.LoadSchemaFile(schemaPath)
	if err != nil {
		return nil, table.Schema{}, err
	}
	return t, s, nil
}
