package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rushteam/tabrec/bootstrap"
	"github.com/rushteam/tabrec/config"
	"github.com/rushteam/tabrec/logging"
)

var (
	configPath string
	rt         *bootstrap.Runtime
)

var rootCmd = &cobra.Command{
	Use:   "tabrec",
	Short: "Per-project tabular recommender",
	Long: `tabrec trains content, collaborative and hybrid recommenders from tabular data
and serves recommendations from the current model version of each project.

Configuration is read from --config, $TABREC_CONFIG or ./tabrec.yaml, and
TABREC_* environment variables override file values (TABREC_STORE__BACKEND=redis).`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(*cobra.Command, []string) error {
		return teardown()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
}

// Execute 运行 CLI，收到 SIGINT/SIGTERM 时取消上下文。
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		_ = teardown()
	}
	return err
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Caller: cfg.Log.Caller,
		Output: cmd.ErrOrStderr(),
	})
	rt, err = bootstrap.New(cmd.Context(), cfg)
	return err
}

func teardown() error {
	if rt == nil {
		return nil
	}
	err := rt.Close()
	rt = nil
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
