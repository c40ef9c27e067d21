package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"lpsim/internal/apperr"
	"lpsim/internal/model"
	"lpsim/internal/simulate"
)

func newHistoricalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "historical",
		Short: "Estimate fees from the pool's hourly fee history",
		RunE:  runHistorical,
	}
	addPoolFlags(cmd.Flags())
	addPositionFlags(cmd.Flags())
	cmd.Flags().String("mode", simulate.ModeSnapshotTick, "in-range test per hour (snapshot, current)")
	cmd.Flags().Int("lookback-hours", 168, "hours of history to average")
	cmd.Flags().Int("horizon-hours", 24, "hours the result is annualized from")
	return cmd
}

func newExactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exact",
		Short: "Compute fees from fee growth counters between two blocks",
		RunE:  runExact,
	}
	addPoolFlags(cmd.Flags())
	addPositionFlags(cmd.Flags())
	cmd.Flags().Int("lookback-days", 7, "days between the two snapshots")
	cmd.Flags().String("price-strategy", simulate.PriceCurrent, "calculation price (current, weighted, peak, custom)")
	cmd.Flags().String("custom-price", "", "price for the custom strategy, token1 per token0")
	return cmd
}

func runHistorical(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ref, err := poolRefFromFlags(cmd.Flags())
	if err != nil {
		return err
	}
	position, err := positionFromFlags(cmd.Flags())
	if err != nil {
		return err
	}
	mode, _ := cmd.Flags().GetString("mode")
	lookback, _ := cmd.Flags().GetInt("lookback-hours")
	horizon, _ := cmd.Flags().GetInt("horizon-hours")

	a, err := newApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	res, err := a.sim.SimulateHistorical(ctx, simulate.HistoricalRequest{
		Pool:          ref,
		Position:      position,
		Mode:          mode,
		LookbackHours: lookback,
		HorizonHours:  horizon,
	})
	if err != nil {
		logFailure(a.logger, "historical simulation failed", err)
		return err
	}
	a.logger.Info("historical simulation done", zap.String("pool", res.Pool.Address), elapsed(start))
	return writeJSON(cmd.OutOrStdout(), res)
}

func runExact(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ref, err := poolRefFromFlags(cmd.Flags())
	if err != nil {
		return err
	}
	position, err := positionFromFlags(cmd.Flags())
	if err != nil {
		return err
	}
	lookback, _ := cmd.Flags().GetInt("lookback-days")
	strategy, _ := cmd.Flags().GetString("price-strategy")
	custom, err := decimalFlag(cmd.Flags(), "custom-price")
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	res, err := a.sim.SimulateExact(ctx, simulate.ExactRequest{
		Pool:          ref,
		Position:      position,
		LookbackDays:  lookback,
		PriceStrategy: strategy,
		CustomPrice:   custom,
	})
	if err != nil {
		logFailure(a.logger, "exact simulation failed", err)
		return err
	}
	a.logger.Info("exact simulation done", zap.String("pool", res.Pool.Address), elapsed(start))
	return writeJSON(cmd.OutOrStdout(), res)
}

func addPoolFlags(flags *pflag.FlagSet) {
	flags.String("pool", "", "pool id or address")
	flags.Uint64("chain-id", 0, "chain id hint for an address shared across chains")
	flags.String("dex", "", "dex id hint for an address shared across dexes")
}

func addPositionFlags(flags *pflag.FlagSet) {
	flags.Int32("tick-lower", 0, "lower tick")
	flags.Int32("tick-upper", 0, "upper tick")
	flags.String("price-lower", "", "lower price, token1 per token0")
	flags.String("price-upper", "", "upper price, token1 per token0")
	flags.Bool("full-range", false, "use the full usable tick range")
	flags.String("amount0", "", "token0 amount")
	flags.String("amount1", "", "token1 amount")
	flags.String("deposit-usd", "", "deposit value in USD")
}

func poolRefFromFlags(flags *pflag.FlagSet) (model.PoolRef, error) {
	pool, _ := flags.GetString("pool")
	chainID, _ := flags.GetUint64("chain-id")
	dex, _ := flags.GetString("dex")
	ref, err := model.ParsePoolRef(pool, chainID, dex)
	if err != nil {
		return model.PoolRef{}, apperr.Input("pool", "%v", err)
	}
	return ref, nil
}

func positionFromFlags(flags *pflag.FlagSet) (simulate.PositionSpec, error) {
	var spec simulate.PositionSpec
	spec.FullRange, _ = flags.GetBool("full-range")
	if flags.Changed("tick-lower") {
		v, _ := flags.GetInt32("tick-lower")
		spec.TickLower = &v
	}
	if flags.Changed("tick-upper") {
		v, _ := flags.GetInt32("tick-upper")
		spec.TickUpper = &v
	}

	targets := []struct {
		name string
		dst  **decimal.Decimal
	}{
		{"price-lower", &spec.PriceLower},
		{"price-upper", &spec.PriceUpper},
		{"amount0", &spec.Amount0},
		{"amount1", &spec.Amount1},
		{"deposit-usd", &spec.DepositUSD},
	}
	for _, target := range targets {
		v, err := decimalFlag(flags, target.name)
		if err != nil {
			return simulate.PositionSpec{}, err
		}
		*target.dst = v
	}
	return spec, nil
}

func decimalFlag(flags *pflag.FlagSet, name string) (*decimal.Decimal, error) {
	raw, _ := flags.GetString(name)
	if raw == "" {
		return nil, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperr.Input(name, "invalid decimal %q", raw)
	}
	return &v, nil
}

func logFailure(logger *zap.Logger, msg string, err error) {
	fields := []zap.Field{zap.String("kind", string(apperr.KindOf(err))), zap.Error(err)}
	if reason := apperr.ReasonOf(err); reason != "" {
		fields = append(fields, zap.String("reason", reason))
	}
	logger.Warn(msg, fields...)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
