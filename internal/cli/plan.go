package cli

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolcore/internal/blob"
	blobcore "poolcore/internal/blob/core"
	"poolcore/internal/config"
	"poolcore/internal/core"
	"poolcore/internal/infra/persistence"
	"poolcore/internal/poolfile"
	"poolcore/internal/worklistio"
	"poolcore/pkg/domain"
)

// PlanOptions holds the flags of the plan command.
type PlanOptions struct {
	Label         string
	Volume        int
	Concentration int
	PoolsPath     string
	Requester     string
	OutDir        string
	StoreDriver   string
	StorePath     string
	NoExport      bool
}

// PlanSummary is the data payload of a successful plan command.
type PlanSummary struct {
	RecordID            string           `json:"record_id"`
	Label               string           `json:"label"`
	Pools               int              `json:"pools"`
	DesignsPerPool      int              `json:"designs_per_pool"`
	PlateCount          int              `json:"plate_count"`
	StockTransferVolume float64          `json:"stock_transfer_volume_ul"`
	BufferVolume        float64          `json:"buffer_volume_ul"`
	Worklists           []string         `json:"worklists,omitempty"`
	Messages            []domain.Message `json:"messages,omitempty"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute, store and export a pool creation plan",
		Long: `Compute the pool creation plan for a pool set file.

The plan is rejected, with exit status 1, when the requested volume or
concentration cannot be produced with the configured pipettor. Accepted plans
have their buffer worklists written as CSV to the configured blob store (or
--out) and are then saved to the configured plan store. Worklists uploaded by
a run whose plan cannot be saved are removed again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd, rootOpts, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Label, "label", "", "plate-set label and worklist prefix")
	f.IntVar(&opts.Volume, "volume", 0, "target pool stock volume in ul")
	f.IntVar(&opts.Concentration, "concentration", 0, "target pool concentration in nM")
	f.StringVar(&opts.PoolsPath, "pools", "", "YAML pool set file")
	f.StringVar(&opts.Requester, "requester", "", "requesting user (default $USER)")
	f.StringVar(&opts.OutDir, "out", "", "write worklists below this directory")
	f.StringVar(&opts.StoreDriver, "store", "", "plan store driver (memory|sqlite|postgres)")
	f.StringVar(&opts.StorePath, "store-path", "", "sqlite database path")
	f.BoolVar(&opts.NoExport, "no-export", false, "skip writing worklist artifacts")
	_ = cmd.MarkFlagRequired("label")
	_ = cmd.MarkFlagRequired("pools")
	return cmd
}

func loadConfig(rootOpts *RootOptions) (config.Config, error) {
	cfg := config.Default()
	if rootOpts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(rootOpts.ConfigPath); err != nil {
			return config.Config{}, err
		}
	}
	cfg.ApplyEnv(rootOpts.Getenv)
	return cfg, nil
}

func runPlan(cmd *cobra.Command, rootOpts *RootOptions, opts *PlanOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := formatter{format: rootOpts.Format, w: cmd.OutOrStdout()}
	log := rootOpts.Logger.Sugar()

	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "load configuration", err)
	}
	if opts.OutDir != "" {
		cfg.Blob.Driver = "fs"
		cfg.Blob.FSRoot = opts.OutDir
	}
	if opts.StoreDriver != "" {
		cfg.Persistence.Driver = opts.StoreDriver
	}
	if opts.StorePath != "" {
		cfg.Persistence.Path = opts.StorePath
	}
	settings, err := cfg.Settings()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	metrics, err := core.NewPrometheusMetricsRecorder(prometheus.NewRegistry())
	if err != nil {
		return WrapExitError(ExitCommandError, "metrics", err)
	}
	plannerOpts := []core.Option{core.WithLogger(core.NewZapLogger(rootOpts.Logger)), core.WithMetrics(metrics)}
	if rootOpts.Verbose {
		plannerOpts = append(plannerOpts, core.WithTracer(core.NewJSONTracer(cmd.ErrOrStderr())))
	}
	planner, err := core.NewPlanner(settings, poolfile.Parser{}, plannerOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "planner", err)
	}

	pools, err := os.Open(opts.PoolsPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "open pool set", err)
	}
	defer func() { _ = pools.Close() }()

	requester := opts.Requester
	if requester == "" {
		requester = rootOpts.Getenv("USER")
	}
	plan, res, err := planner.Plan(ctx, core.Request{
		Label:               opts.Label,
		Requester:           domain.Principal{Username: requester},
		TargetVolume:        opts.Volume,
		TargetConcentration: opts.Concentration,
		PoolSet:             pools,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "plan invariant violated", err)
	}
	if plan == nil {
		return reportRejection(out, res)
	}

	store, err := persistence.Open(ctx, cfg.Persistence)
	if err != nil {
		return WrapExitError(ExitCommandError, "open plan store", err)
	}
	defer func() { _ = store.Close() }()

	var (
		artifacts blobcore.Store
		exported  []blobcore.Info
	)
	if !opts.NoExport {
		if artifacts, err = blob.Open(ctx, cfg.Blob); err != nil {
			return WrapExitError(ExitCommandError, "open blob store", err)
		}
		exported, err = worklistio.Export(ctx, artifacts, plan)
		if err != nil {
			discardArtifacts(ctx, log, artifacts, exported)
			if errors.Is(err, blobcore.ErrExists) {
				return WrapExitError(ExitFailure, fmt.Sprintf("worklists for plan %s were already exported", plan.Label()), err)
			}
			return WrapExitError(ExitCommandError, "export worklists", err)
		}
	}

	rec, err := store.Save(ctx, plan)
	if err != nil {
		discardArtifacts(ctx, log, artifacts, exported)
		if errors.Is(err, domain.ErrDuplicateLabel) {
			return WrapExitError(ExitFailure, "save plan", err)
		}
		return WrapExitError(ExitCommandError, "save plan", err)
	}
	log.Infow("plan saved", "id", rec.ID, "label", rec.Label, "store", cfg.Persistence.Driver)

	summary := PlanSummary{
		RecordID:            rec.ID,
		Label:               plan.Label(),
		Pools:               plan.Pools().Len(),
		DesignsPerPool:      plan.DesignsPerPool(),
		PlateCount:          plan.PlateCount(),
		StockTransferVolume: domain.VolumeToUser(plan.StockTransferVolume()),
		BufferVolume:        domain.VolumeToUser(plan.BufferVolume()),
		Messages:            res.Messages,
	}
	for _, info := range exported {
		summary.Worklists = append(summary.Worklists, info.Key)
	}

	if out.isJSON() {
		return out.json(Response{Status: "ok", Data: summary})
	}
	out.printf("plan %s (%s)\n", summary.Label, summary.RecordID)
	out.printf("  pools:           %d x %d designs\n", summary.Pools, summary.DesignsPerPool)
	out.printf("  plates:          %d\n", summary.PlateCount)
	out.printf("  stock transfer:  %s ul per design\n", formatUL(summary.StockTransferVolume))
	out.printf("  buffer:          %s ul per well\n", formatUL(summary.BufferVolume))
	for _, key := range summary.Worklists {
		out.printf("  worklist:        %s\n", key)
	}
	for _, m := range summary.Messages {
		out.printf("  %s\n", m)
	}
	return nil
}

func reportRejection(out formatter, res domain.Result) error {
	if out.isJSON() {
		if err := out.json(Response{Status: "error", Data: res.Messages, Error: res.ErrorSummary()}); err != nil {
			return err
		}
	} else {
		out.printf("plan rejected\n")
		for _, m := range res.Messages {
			out.printf("  %s\n", m)
		}
	}
	return NewExitError(ExitFailure, res.ErrorSummary())
}

// discardArtifacts removes worklists uploaded by a run that did not persist
// its plan.
func discardArtifacts(ctx context.Context, log *zap.SugaredLogger, store blobcore.Store, infos []blobcore.Info) {
	if store == nil || len(infos) == 0 {
		return
	}
	if err := worklistio.Discard(ctx, store, infos); err != nil {
		log.Warnw("worklist cleanup failed", "error", err)
		return
	}
	log.Debugw("worklists discarded", "count", len(infos))
}

func formatUL(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}
