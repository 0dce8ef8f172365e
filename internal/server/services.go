package server

import (
	"fmt"
	"log/slog"

	"github.com/sakif/foodtrack/internal/auth"
	"github.com/sakif/foodtrack/internal/calendar"
	"github.com/sakif/foodtrack/internal/config"
	"github.com/sakif/foodtrack/internal/reminder"
	"github.com/sakif/foodtrack/internal/repository"
	"github.com/sakif/foodtrack/internal/service"
)

// Services is the business layer built on one store. The HTTP server and the
// admin CLI share it so both run exactly the same rules.
type Services struct {
	Auth    *service.AuthService
	Cycles  *service.CycleService
	Tokens  *auth.TokenService
	Clock   calendar.Clock
	Sweeper *reminder.Sweeper
}

// NewServices wires the services for cfg on top of store.
//
// DEPENDENCY CHAIN:
//
//	store.Users()  → AuthService ← TokenService, PasswordService
//	store.Cycles() → CycleService ← SystemClock(cfg.Timezone)
//	AuthService + CycleService → reminder.Sweeper
func NewServices(cfg *config.Config, store repository.Store, logger *slog.Logger) (*Services, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	passwords, err := auth.NewPasswordService(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	clock := calendar.SystemClock{Location: cfg.Location()}
	authSvc := service.NewAuthService(store.Users(), tokens, passwords, cfg.AdminUsernames, logger)
	cycleSvc := service.NewCycleService(store.Cycles(), clock, logger)
	sweeper := reminder.NewSweeper(authSvc, cycleSvc,
		reminder.LogNotifier{Logger: logger}, cfg.ReminderDays, logger)

	return &Services{
		Auth:    authSvc,
		Cycles:  cycleSvc,
		Tokens:  tokens,
		Clock:   clock,
		Sweeper: sweeper,
	}, nil
}
