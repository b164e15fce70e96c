package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/rushteam/tabrec/core"
)

var (
	recommendUser    string
	recommendTitle   string
	recommendN       int
	recommendVersion int
)

var recommendCmd = &cobra.Command{
	Use:   "recommend PROJECT",
	Short: "Recommend items from the current model",
	Long: `Recommend items for PROJECT and print the response envelope as JSON.

Content models need --title, collaborative models need --user, hybrid models need both.

Examples:
  tabrec recommend movies --title "Toy Story" -n 5
  tabrec recommend movies --user 42 --version 3`,
	Args: cobra.ExactArgs(1),
	RunE: runRecommend,
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringVarP(&recommendUser, "user", "u", "", "User id")
	recommendCmd.Flags().StringVarP(&recommendTitle, "title", "t", "", "Reference item title")
	recommendCmd.Flags().IntVarP(&recommendN, "count", "n", 0, "Number of recommendations (default serving.default_top_n)")
	recommendCmd.Flags().IntVar(&recommendVersion, "version", 0, "Model version (default current)")
}

// errFailedPrediction 让信封中的错误体现在退出码上。
var errFailedPrediction = errors.New("prediction failed")

func runRecommend(cmd *cobra.Command, args []string) error {
	project := args[0]
	req := &core.PredictRequest{}
	if cmd.Flags().Changed("user") {
		req.UserID = &recommendUser
	}
	if cmd.Flags().Changed("title") {
		req.ItemTitle = &recommendTitle
	}
	if cmd.Flags().Changed("count") {
		req.N = &recommendN
	}

	var resp *core.PredictResponse
	if recommendVersion > 0 {
		d, err := rt.Server.DispatcherAt(cmd.Context(), project, recommendVersion)
		if err != nil {
			resp = core.Fail(err)
		} else {
			resp = d.Predict(cmd.Context(), req)
		}
	} else {
		resp = rt.Server.Predictor(project).Predict(cmd.Context(), req)
	}

	if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
		return err
	}
	if resp.Failed() {
		return errFailedPrediction
	}
	return nil
}
