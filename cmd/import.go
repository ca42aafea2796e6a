package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ellavondegurechaff/vmq/internal/domain/accounts"
	"github.com/ellavondegurechaff/vmq/internal/gateways/database/repositories"
	"github.com/ellavondegurechaff/vmq/pool"
	"github.com/ellavondegurechaff/vmq/pool/config"
	"github.com/ellavondegurechaff/vmq/pool/database"
	"github.com/ellavondegurechaff/vmq/pool/importer"
)

var (
	importBSON      string
	importMongoURI  string
	importMongoDB   string
	importMongoColl string
	importCopy      bool
	importBatchSize int
)

var importCMD = &cobra.Command{
	Use:   "import",
	Short: "load tokens from the legacy Mongo store into the pool",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (importBSON == "") == (importMongoURI == "") {
			return errors.New("exactly one of --bson or --mongo-uri is required")
		}

		ctx := cmd.Context()
		tokens, err := readLegacyTokens(ctx)
		if err != nil {
			return err
		}
		slog.Info("Legacy tokens read", slog.Int("count", len(tokens)))

		db, cfg, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		start := time.Now()
		var res importer.Result
		if importCopy {
			res, err = importer.CopyLoad(ctx, db.Pool(), tokens, time.Now().UTC())
		} else {
			repo := repositories.NewAccountRepository(db.BunDB(), cfg.Repository())
			svc := accounts.NewService(repo, accounts.Options{})
			res, err = importer.New(svc, importBatchSize).Import(ctx, tokens)
		}
		if err != nil {
			return err
		}

		slog.Info("Import completed successfully",
			slog.Int("read", res.Read),
			slog.Int("inserted", res.Inserted),
			slog.Int("skipped", res.Skipped),
			slog.Int("batches", res.Batches),
			slog.Duration("took", time.Since(start)))
		return printJSON(cmd, res)
	},
}

var schemaCMD = &cobra.Command{
	Use:   "schema",
	Short: "create or migrate the accounts table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		slog.Info("Schema ready")
		return nil
	},
}

func init() {
	importCMD.Flags().StringVar(&importBSON, "bson", "", "mongodump .bson file of the accounts collection")
	importCMD.Flags().StringVar(&importMongoURI, "mongo-uri", "", "read from a live MongoDB instead of a dump")
	importCMD.Flags().StringVar(&importMongoDB, "mongo-db", "vmq", "MongoDB database")
	importCMD.Flags().StringVar(&importMongoColl, "mongo-collection", "accounts", "MongoDB collection")
	importCMD.Flags().BoolVar(&importCopy, "copy", false, "bulk load with COPY instead of batched inserts")
	importCMD.Flags().IntVar(&importBatchSize, "batch-size", config.DefaultImportBatchSize, "tokens per ingestion batch")

	rootCmd.AddCommand(importCMD, schemaCMD)
}

func readLegacyTokens(ctx context.Context) ([]string, error) {
	if importBSON != "" {
		return importer.ReadBSONFile(importBSON)
	}

	connectCtx, cancel := context.WithTimeout(ctx, config.StartupTimeout)
	defer cancel()

	src, disconnect, err := importer.ConnectMongo(connectCtx, importMongoURI, importMongoDB, importMongoColl)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := disconnect(context.Background()); err != nil {
			slog.Warn("Failed to disconnect from mongo", slog.Any("error", err))
		}
	}()

	return src.Tokens(ctx)
}

// openDatabase connects with the [db] settings and brings the schema up to
// date.
func openDatabase(ctx context.Context) (*database.DB, *pool.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, config.StartupTimeout)
	defer cancel()

	db, err := database.New(connectCtx, cfg.Database())
	if err != nil {
		return nil, nil, err
	}
	if err := db.InitializeSchema(connectCtx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, cfg, nil
}
