package rewardd

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"greenmile/ledger"
	"greenmile/native/rewards"
	"greenmile/native/sponsor"
	"greenmile/observability/logging"
	telemetry "greenmile/observability/otel"
)

// Main initialises and runs the reward distribution daemon.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/rewardd/config.yaml", "path to rewardd configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("GREENMILE_ENV"))
	logging.Setup("rewardd", env)
	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "rewardd",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// A distributor that cannot sign must not come up at all.
	signer, err := cfg.Signer.ResolveSigner()
	if err != nil {
		return fmt.Errorf("resolve signer: %w", err)
	}
	appID, err := cfg.AppIDBytes()
	if err != nil {
		return fmt.Errorf("resolve app id: %w", err)
	}

	var records *Records
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		records = NewRecords(db)
		if err := records.Migrate(); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	node := ledger.NewClient(cfg.NodeURL)
	contract := common.HexToAddress(cfg.TreasuryContract)
	operatingFund := common.HexToAddress(cfg.OperatingFund)

	treasury := NewTreasuryAllocator(TreasuryBalanceFetcher(node, contract, appID))
	sponsoring := sponsor.NewEngine(node)

	metrics := NewMetrics()
	processor := NewProcessor(node, signer, treasury, cfg.ChainTag, contract, appID, operatingFund,
		WithRecords(records),
		WithSponsoring(sponsoring),
		WithMetrics(metrics),
		WithGas(cfg.Gas),
	)
	processor.expiration = cfg.ExpirationBlocks
	processor.gasPriceCoef = cfg.GasPriceCoef
	if cfg.PauseOnStart {
		processor.Pause()
	}

	calculator := rewards.NewCalculator(platformCardMatcher(cfg.PlatformCards))
	server := NewServer(processor, calculator, records, cfg.Admin.BearerToken)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.RequestTimeout.Duration,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		log.Printf("rewardd listening on %s (distributor %s)", cfg.ListenAddress, signer.Address().Hex())
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// platformCardMatcher builds the co-branded card heuristic from the
// configured last-four allow-list.
func platformCardMatcher(cards []string) rewards.CardMatcher {
	if len(cards) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(cards))
	for _, card := range cards {
		allowed[strings.TrimSpace(card)] = struct{}{}
	}
	return func(lastFour string) bool {
		_, ok := allowed[strings.TrimSpace(lastFour)]
		return ok
	}
}
