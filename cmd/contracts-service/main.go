package main

import (
	"fmt"
	"os"

	"github.com/nurpe/housekeeping-contracts/internal/auth"
	"github.com/nurpe/housekeeping-contracts/internal/config"
	"github.com/nurpe/housekeeping-contracts/internal/conversion"
	"github.com/nurpe/housekeeping-contracts/internal/db"
	"github.com/nurpe/housekeeping-contracts/internal/excel"
	httphandler "github.com/nurpe/housekeeping-contracts/internal/http"
	"github.com/nurpe/housekeeping-contracts/internal/http/middleware"
	"github.com/nurpe/housekeeping-contracts/internal/logger"
	"github.com/nurpe/housekeeping-contracts/internal/pdf"
	"github.com/nurpe/housekeeping-contracts/internal/repository"
	"github.com/nurpe/housekeeping-contracts/internal/rules"
	"github.com/nurpe/housekeeping-contracts/internal/service"
	"github.com/nurpe/housekeeping-contracts/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	contractRepo := repository.NewContractRepository(database)
	billRepo := repository.NewBillRepository(database)
	adjustmentRepo := repository.NewAdjustmentRepository(database)
	partyRepo := repository.NewPartyRepository(database)

	registry := rules.DefaultRegistry()
	engine := rules.NewEngine(registry)
	env := service.NewEnvFactory(cfg.Contracts)

	contractService := service.NewContractService(contractRepo, engine, validation.NewGate(registry), env)
	signingService := service.NewSigningService(contractRepo, log)
	conversionService := service.NewConversionService(
		contractRepo,
		billRepo,
		adjustmentRepo,
		conversion.NewPricer(engine),
		pdf.NewGenerator(),
		excel.NewGenerator(),
		env,
		log,
	)
	partyService := service.NewPartyService(partyRepo)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(contractService, signingService, conversionService, partyService, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.HTTP, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting contracts service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
