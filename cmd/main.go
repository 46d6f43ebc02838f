package main

import (
	"context"
	"flag"
	"fmt"
	"housing_features/internal/config"
	"housing_features/internal/core"
	"housing_features/internal/domain/model"
	"housing_features/internal/domain/repository"
	"housing_features/internal/infrastructure/logger"
	"housing_features/internal/infrastructure/metrics"
	"housing_features/internal/infrastructure/mlclient"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("HOUSING_CONFIG"), "YAML config overlaid on HOUSING_* env vars")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	m := metrics.New()

	err = run(ctx, cfg, log, m)
	stop()

	if cfg.Output.Metrics != "" {
		if werr := m.WriteTextfile(cfg.Output.Metrics); werr != nil {
			log.Warn("failed to write metrics", zap.Error(werr))
		}
	}
	if err != nil {
		log.Error("pipeline failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) error {
	runID := uuid.New()
	log = log.With(zap.String("run_id", runID.String()))

	// Загрузка сделок
	train, err := loadRecords(cfg, cfg.Input.Train)
	if err != nil {
		return err
	}
	var test *core.RecordSet
	if cfg.Input.Test != "" {
		if test, err = loadRecords(cfg, cfg.Input.Test); err != nil {
			return err
		}
	}

	// Загрузка объектов инфраструктуры
	sources, err := loadSources(ctx, cfg, log)
	if err != nil {
		return err
	}

	var villages *core.VillageLayer
	if cfg.Input.Villages != "" {
		raw, err := repository.ReadVillages(cfg.Input.Villages, cfg.Input.VillageName, cfg.Features.VillageFields)
		if err != nil {
			return err
		}
		if villages, err = core.NewVillageLayer(model.CRSTWD97, cfg.Features.VillageFields, raw); err != nil {
			return err
		}
		log.Info("villages loaded", zap.Int("count", villages.Len()))
	}

	// Расчёт признаков
	svc := core.NewFeatureService(core.FeatureConfig{Workers: cfg.Features.Workers}, log, m)
	trainM, err := svc.Assemble(ctx, train, sources, villages)
	if err != nil {
		return fmt.Errorf("train features: %w", err)
	}
	var outputs []*model.FeatureMatrix
	var testM *model.FeatureMatrix
	if test != nil {
		if testM, err = svc.Assemble(ctx, test, sources, villages); err != nil {
			return fmt.Errorf("test features: %w", err)
		}
		outputs = append(outputs, testM)
	}

	specs, err := encodingSpecs(cfg)
	if err != nil {
		return err
	}
	if err := svc.Encode(ctx, trainM, cfg.Input.TargetColumn, specs, outputs...); err != nil {
		return fmt.Errorf("encoding: %w", err)
	}

	var db *sqlx.DB
	if cfg.Postgres.DSN != "" {
		if db, err = repository.OpenPostgres(cfg.Postgres.DSN); err != nil {
			return err
		}
		defer db.Close()
		if err := saveFeatures(ctx, db, runID, trainM, testM); err != nil {
			return err
		}
	}

	if cfg.Model.Enabled {
		if err := trainModels(ctx, cfg, log, m, db, runID, trainM, testM); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := repository.WriteFeatureMatrix(filepath.Join(cfg.Output.Dir, "train_features.csv"), trainM); err != nil {
		return err
	}
	if testM != nil {
		if err := repository.WriteFeatureMatrix(filepath.Join(cfg.Output.Dir, "test_features.csv"), testM); err != nil {
			return err
		}
	}

	log.Info("pipeline finished", zap.String("output", cfg.Output.Dir), zap.Int("features", len(trainM.Features())))
	return nil
}

func loadRecords(cfg *config.Config, path string) (*core.RecordSet, error) {
	frame, err := repository.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	records, err := core.NewRecordSet(frame, cfg.Input.IDColumn, cfg.Input.XColumn, cfg.Input.YColumn, model.CRS(cfg.Input.CRS))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if records, err = core.ProjectRecordSet(records, core.TWD97TM2()); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func encodingSpecs(cfg *config.Config) ([]core.EncodingSpec, error) {
	var specs []core.EncodingSpec
	for _, col := range cfg.Encoding.Columns {
		for _, s := range cfg.Encoding.Stats {
			stat, err := core.ParseStatType(s)
			if err != nil {
				return nil, err
			}
			specs = append(specs, core.EncodingSpec{Column: col, Stat: stat, NMin: cfg.Encoding.NMin})
		}
	}
	return specs, nil
}

func saveFeatures(ctx context.Context, db *sqlx.DB, runID uuid.UUID, train, test *model.FeatureMatrix) error {
	store := repository.NewFeatureStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := store.SaveFeatures(ctx, runID, "train", train); err != nil {
		return err
	}
	if test != nil {
		return store.SaveFeatures(ctx, runID, "test", test)
	}
	return nil
}

func trainModels(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
	m *metrics.Metrics,
	db *sqlx.DB,
	runID uuid.UUID,
	train, test *model.FeatureMatrix,
) error {
	candidates := []core.Candidate{{
		Name: "ridge",
		New:  func() core.Regressor { return core.NewRidge(cfg.Model.RidgeAlpha) },
	}}

	if cfg.Model.MLEndpoint != "" {
		client := mlclient.NewHTTPMLClient(cfg.Model.MLEndpoint, cfg.Model.MLTimeout)
		available, err := client.GetAvailableModels(ctx)
		if err != nil {
			return err
		}
		log.Info("ML service models", zap.Int("available", len(available)), zap.Int("requested", len(cfg.Model.Remote)))
		candidates = append(candidates, mlclient.Candidates(client, cfg.Model.Remote)...)
	}

	// Без базы результаты обучения только логируются
	var recorder core.RunRecorder
	if db != nil {
		recorder = repository.NewPostgresTrainingRecorder(db)
	}

	svc := core.NewPredictionService(core.TrainingConfig{
		RunID:      runID.String(),
		Columns:    cfg.Model.Columns,
		SplitRatio: cfg.Model.SplitRatio,
		LogTarget:  cfg.Model.LogTarget,
		Stacking:   cfg.Model.Stacking,
	}, log, m, recorder)

	res, err := svc.Train(ctx, train, test, cfg.Input.TargetColumn, candidates)
	if err != nil {
		return fmt.Errorf("model selection: %w", err)
	}
	log.Info("model selected", zap.String("model", res.Best))
	return nil
}
