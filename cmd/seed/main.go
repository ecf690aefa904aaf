package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/car-marketplace-api/internal/models"
	"github.com/noah-isme/car-marketplace-api/internal/repository"
	"github.com/noah-isme/car-marketplace-api/internal/service"
	"github.com/noah-isme/car-marketplace-api/internal/token"
	"github.com/noah-isme/car-marketplace-api/pkg/catalogcsv"
	"github.com/noah-isme/car-marketplace-api/pkg/config"
	"github.com/noah-isme/car-marketplace-api/pkg/database"
	"github.com/noah-isme/car-marketplace-api/pkg/logger"
)

type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &env{cfg: cfg, logger: logr, db: db}, nil
}

func (e *env) close() {
	_ = e.db.Close()
	_ = e.logger.Sync()
}

func main() {
	root := &cobra.Command{
		Use:          "seed",
		Short:        "Populate the car marketplace database",
		SilenceUsage: true,
	}

	var file string
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Import brands, models and listings from a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			rows, err := catalogcsv.Read(f)
			if err != nil {
				return err
			}

			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			cars := service.NewCarService(service.CarServiceParams{
				Brands: repository.NewBrandRepository(e.db),
				Models: repository.NewModelRepository(e.db),
				Cars:   repository.NewCarRepository(e.db),
				Logger: e.logger,
				Config: service.CarServiceConfig{MaxListings: e.cfg.Catalog.MaxListings},
			})
			summary, err := catalogcsv.NewImporter(cars, e.logger).Import(cmd.Context(), rows)
			fmt.Printf("brands=%d models=%d cars=%d\n", summary.Brands, summary.Models, summary.Cars)
			return err
		},
	}
	catalogCmd.Flags().StringVarP(&file, "file", "f", "", "CSV file to import")
	_ = catalogCmd.MarkFlagRequired("file")

	var email, password, name, surname string
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			codec, err := token.NewCodec(token.Config{
				Secret:     e.cfg.JWT.Secret,
				Algorithm:  e.cfg.JWT.Algorithm,
				AccessTTL:  e.cfg.JWT.Expiration,
				RefreshTTL: e.cfg.JWT.RefreshExpiration,
				Issuer:     e.cfg.JWT.Issuer,
			})
			if err != nil {
				return err
			}
			auth := service.NewAuthService(
				repository.NewUserRepository(e.db),
				repository.NewBannedTokenRepository(e.db),
				codec, nil, e.logger, nil,
				service.AuthConfig{MinPasswordLength: e.cfg.Auth.MinPasswordLength, BcryptCost: e.cfg.Auth.BcryptCost},
			)

			user, err := auth.CreateUser(cmd.Context(), models.CreateUserRequest{
				Email:     email,
				Password:  password,
				Name:      name,
				Surname:   surname,
				Superuser: true,
				Scopes:    append([]string{}, models.AllowedScopes...),
			}, models.RequestMeta{UserAgent: "seed"})
			if err != nil {
				return err
			}
			fmt.Printf("created admin %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	adminCmd.Flags().StringVar(&email, "email", "", "Administrator email")
	adminCmd.Flags().StringVar(&password, "password", "", "Administrator password")
	adminCmd.Flags().StringVar(&name, "name", "Admin", "First name")
	adminCmd.Flags().StringVar(&surname, "surname", "Account", "Last name")
	_ = adminCmd.MarkFlagRequired("email")
	_ = adminCmd.MarkFlagRequired("password")

	root.AddCommand(catalogCmd, adminCmd)
	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
