package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/fitts/internal/config"
	"github.com/verte-zerg/fitts/internal/engine"
	"github.com/verte-zerg/fitts/internal/logging"
	"github.com/verte-zerg/fitts/internal/model"
	"github.com/verte-zerg/fitts/internal/plan"
	"github.com/verte-zerg/fitts/internal/simulate"
)

const defaultSimParticipants = 5

var (
	simFlags experimentFlags

	simParticipants int
	simSeed         int64
	simProfile      = simulate.DefaultProfile
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Record sessions from synthetic participants",
		Args:  cobra.NoArgs,
		RunE:  runSimulateCmd,
	}
	bindExperimentFlags(cmd, &simFlags)
	cmd.Flags().IntVar(&simParticipants, "participants", defaultSimParticipants, "number of synthetic participants")
	cmd.Flags().Int64Var(&simSeed, "seed", 0, "random seed (0 uses the current time)")
	cmd.Flags().Float64Var(&simProfile.A, "intercept", simulate.DefaultProfile.A, "fixed movement time overhead (ms)")
	cmd.Flags().Float64Var(&simProfile.B, "slope", simulate.DefaultProfile.B, "movement time per bit of difficulty (ms)")
	cmd.Flags().Float64Var(&simProfile.Jitter, "jitter", simulate.DefaultProfile.Jitter, "relative movement time noise (0-1)")
	cmd.Flags().Float64Var(&simProfile.MissProb, "miss-prob", simulate.DefaultProfile.MissProb, "probability of a miss before the hit (0-1)")
	return cmd
}

func runSimulateCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	simFlags.apply(cmd, fileCfg.Experiment)
	cfg, err := simFlags.config()
	if err != nil {
		return err
	}
	if err := validateSimulation(simParticipants, simProfile); err != nil {
		return err
	}

	logger, err := newLogger(cmd, fileCfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	sink, closeSink, err := openSinks(cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	seed := simSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	ids, err := simulateSessions(cmd, cfg, sink, seed, logger)
	if err != nil {
		return err
	}
	logger.Info("simulation finished", zap.Int("participants", len(ids)), zap.Int64("seed", seed))
	for _, id := range ids {
		logErrf(cmd.ErrOrStderr(), "Recorded synthetic participant %s\n", id)
	}
	return nil
}

// simulateSessions plays one full session per synthetic participant and
// returns their ids. Participant i uses seed+i for both plan and behavior.
func simulateSessions(cmd *cobra.Command, cfg model.ExperimentConfig, sink engine.Sink, seed int64, logger *zap.Logger) ([]string, error) {
	ctx := commandContext(cmd)
	ids := make([]string, 0, simParticipants)
	for i := 0; i < simParticipants; i++ {
		pSeed := seed + int64(i)
		specs, err := plan.NewSeeded(pSeed).Generate(cfg.Sizes, cfg.Distances, cfg.Directions, cfg.Repetitions)
		if err != nil {
			return ids, err
		}
		participant := simulate.New(simProfile, pSeed, logger)
		id := plan.NewParticipantID()
		eng, err := engine.New(id, specs, engine.Options{
			Center:       screenCenter(cfg),
			CenterRadius: cfg.CenterRadius,
			Clock:        participant.Clock(),
			Sink:         sink,
			Logger:       logger,
		})
		if err != nil {
			return ids, err
		}
		if err := participant.Run(ctx, eng); err != nil {
			return ids, fmt.Errorf("participant %s: %w", id, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func validateSimulation(participants int, p simulate.Profile) error {
	if participants <= 0 {
		return fmt.Errorf("--participants must be > 0")
	}
	if p.A < 0 {
		return fmt.Errorf("--intercept must be >= 0")
	}
	if p.B <= 0 {
		return fmt.Errorf("--slope must be > 0")
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		return fmt.Errorf("--jitter must be in [0, 1)")
	}
	if p.MissProb < 0 || p.MissProb > 1 {
		return fmt.Errorf("--miss-prob must be between 0 and 1")
	}
	return nil
}
