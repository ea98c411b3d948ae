package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/angas/pricewatch-go/config"
	"github.com/angas/pricewatch-go/coordinator"
	"github.com/angas/pricewatch-go/database"
	"github.com/angas/pricewatch-go/hass"
	"github.com/angas/pricewatch-go/logging"
	"github.com/angas/pricewatch-go/optimize"
	"github.com/angas/pricewatch-go/tibber"
	"github.com/angas/pricewatch-go/types"
	"github.com/angas/pricewatch-go/www"
)

var Version = "?.?.?"

// Nightly maintenance: backup, purge old backups and trim the log table.
const maintenanceSpec = "0 30 3 * * *"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cnfg.Logging.GetConsoleLevel(),
		TimeFormat: time.RFC3339,
	})
	slog.New(consoleHandler).Debug("pricewatch is starting...", slog.String("version", Version))

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	settings, err := analysisSettings(cnfg)
	if err != nil {
		panic(fmt.Sprintf("invalid analysis settings: %v", err))
	}
	var currentSettings atomic.Pointer[optimize.Settings]
	currentSettings.Store(&settings)
	settingsFn := func() optimize.Settings { return *currentSettings.Load() }

	config.Watch(logger.With("module", "config"), func(changed *config.AppConfig) {
		s, err := analysisSettings(changed)
		if err != nil {
			logger.Warn("keeping previous analysis settings", slog.Any("error", err))
			return
		}
		currentSettings.Store(&s)
	})

	var ha *hass.Hass
	if cnfg.Mqtt.Enabled {
		if isDevMode() {
			logger.Info("dev mode, skipping home assistant connection")
		} else {
			ha = hass.New(cnfg.Mqtt)
			if err := ha.Connect(); err != nil {
				panic(fmt.Sprintf("home assistant mqtt connection error: %v", err))
			}
			defer ha.Disconnect()
		}
	}

	var server *www.Server
	onUpdate := func(household types.Household, snap coordinator.Snapshot) {
		if server != nil {
			server.PublishUpdate(household, snap)
		}
		if ha != nil {
			ha.PublishSnapshot(household, snap, optimize.NewReport(snap.Series, settingsFn(), time.Now()))
		}
	}

	client := tibber.New(cnfg.Tibber.ApiToken)
	manager := coordinator.NewManager(client, onUpdate)
	server = www.StartServer(db, manager, settingsFn, cnfg.Api)

	homes, err := client.GetHomes(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to list tibber homes: %v", err))
	}
	if len(homes) == 0 {
		panic("the tibber account has no homes")
	}
	for _, home := range homes {
		if err := manager.Register(ctx, home); err != nil {
			panic(fmt.Sprintf("failed to register household %s: %v", home.ID, err))
		}
	}

	if err := manager.Run(ctx); err != nil {
		panic(fmt.Sprintf("failed to start scheduler: %v", err))
	}
	defer manager.Stop()

	err = manager.Schedule(maintenanceSpec, func() {
		if err := db.Backup(ctx); err != nil {
			logger.Error("nightly backup failed", slog.Any("error", err))
		}
		if err := db.PurgeBackups(ctx, cnfg.Database.GetBackupRetentionDays()); err != nil {
			logger.Error("backup purge failed", slog.Any("error", err))
		}
		if err := db.PurgeLog(ctx, cnfg.Logging.GetDbMaxEntries()); err != nil {
			logger.Error("log purge failed", slog.Any("error", err))
		}
	})
	if err != nil {
		panic(fmt.Sprintf("failed to schedule maintenance: %v", err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("main context done")
		case sig := <-sigCh:
			logger.Info("received signal", slog.Any("signal", sig))
			cancel()
		}
	}()

	server.Run(ctx)
}

func analysisSettings(c *config.AppConfig) (optimize.Settings, error) {
	window, err := c.Analysis.GetWindow()
	if err != nil {
		return optimize.Settings{}, err
	}
	return optimize.Settings{
		Efficiency: c.Analysis.GetEfficiency(),
		Duration:   c.Analysis.GetDuration(),
		Window:     window,
	}, nil
}

func isDevMode() bool {
	return strings.EqualFold(os.Getenv("APP_ENV"), "development")
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}

	time.Sleep(2 * time.Second)
	os.Exit(1)
}
