// Command bootstrap creates the schema and seeds the admin account.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/config"
	taskrepo "github.com/ovaphlow/pitchfork/service-todo-go/internal/task/repo"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-todo-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-todo-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-todo-go/pkg/utilities"
)

func main() {
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	cfg, err := config.ConfigFromEnv()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}
	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := userrepo.NewUserRepo(db).EnsureTable(ctx); err != nil {
		sugar.Fatalf("ensure users table: %v", err)
	}
	if err := taskrepo.NewTaskRepo(db).EnsureTable(ctx); err != nil {
		sugar.Fatalf("ensure todos table: %v", err)
	}

	svc := user.NewUserService(db, user.BcryptHasher{Cost: cfg.BcryptCost})
	if err := seedAdmin(ctx, sugar, svc, cfg.Admin); err != nil {
		sugar.Fatalf("seed admin: %v", err)
	}
	sugar.Info("bootstrap done")
}

type registrar interface {
	Register(ctx context.Context, in user.RegisterInput) (*entity.User, error)
}

// seedAdmin registers the configured admin. An existing account is left as is.
func seedAdmin(ctx context.Context, logger *zap.SugaredLogger, svc registrar, admin config.AdminConfig) error {
	if admin.Password == "" {
		logger.Warn("ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}
	u, err := svc.Register(ctx, user.RegisterInput{
		Username: admin.Username,
		Email:    admin.Email,
		Password: admin.Password,
		Role:     string(entity.RoleAdmin),
	})
	if errors.Is(err, apperr.ErrConflict) {
		logger.Infow("admin already present", "username", admin.Username)
		return nil
	}
	if err != nil {
		return err
	}
	logger.Infow("admin created", "user_id", u.ID, "username", u.Username)
	return nil
}
