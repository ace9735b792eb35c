package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/tile-arena/internal/api"
	"github.com/annel0/tile-arena/internal/auth"
	"github.com/annel0/tile-arena/internal/combat"
	"github.com/annel0/tile-arena/internal/config"
	"github.com/annel0/tile-arena/internal/eventbus"
	"github.com/annel0/tile-arena/internal/logging"
	"github.com/annel0/tile-arena/internal/network"
	"github.com/annel0/tile-arena/internal/observability"
	"github.com/annel0/tile-arena/internal/storage"
	"github.com/annel0/tile-arena/internal/vec"
	"github.com/annel0/tile-arena/internal/world"
)

const autosaveInterval = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации")
	flag.Parse()

	if err := logging.Init(); err != nil {
		log.Fatalf("Ошибка инициализации логирования: %v", err)
	}
	defer logging.Close()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("Ошибка загрузки конфигурации: %v", err)
		os.Exit(1)
	}

	logging.Info("Запуск сервера арены: TCP=:%d, KCP=:%d, REST=:%d",
		cfg.Server.GetTCPPort(), cfg.Server.GetKCPPort(), cfg.Server.GetRESTPort())

	if cfg.Auth.JWTSecret != "" {
		if err := auth.SetJWTSecret(cfg.Auth.JWTSecret); err != nil {
			logging.Error("Некорректный JWT секрет: %v", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Трассировка опциональна: без коллектора сервер работает дальше
	shutdownTelemetry, err := observability.InitTelemetry(ctx, "tile-arena")
	if err != nil {
		logging.Warn("OpenTelemetry недоступен: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// === Шина событий ===
	var bus eventbus.EventBus
	if cfg.EventBus.URL != "" {
		jsBus, err := eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream,
			time.Duration(cfg.EventBus.Retention)*time.Hour)
		if err != nil {
			logging.Error("Ошибка подключения к NATS: %v", err)
			os.Exit(1)
		}
		defer jsBus.Close()
		bus = jsBus
	} else {
		bus = eventbus.NewMemoryBus(1024)
	}

	busMetrics := eventbus.NewMetricsExporter(bus)
	busMetrics.Start()
	defer busMetrics.Stop()
	if err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("Слушатель событий не запущен: %v", err)
	}

	// === Мир ===
	worldStorage, err := storage.NewWorldStorage(cfg.Storage.DataPath)
	if err != nil {
		logging.Error("Ошибка открытия хранилища мира: %v", err)
		os.Exit(1)
	}
	defer worldStorage.Close()

	gameWorld, err := world.NewSparseChunkWorld(cfg.World.ChunkSize, world.TileID(cfg.World.DefaultTile))
	if err != nil {
		logging.Error("Ошибка создания мира: %v", err)
		os.Exit(1)
	}
	gameWorld.Subscribe(worldStorage)

	if err := worldStorage.LoadWorld(gameWorld); err != nil {
		logging.Error("Ошибка загрузки мира: %v", err)
		os.Exit(1)
	}
	if gameWorld.ChunkCount() == 0 {
		painter := world.NewTerrainPainter(cfg.World.Seed)
		painted := painter.Paint(gameWorld, vec.Vec2{}, cfg.World.PaintRadius)
		logging.Info("Сгенерирована стартовая область: %d тайлов", painted)
	}

	// Трансляция правок мира в шину — после стартовой генерации,
	// чтобы закраска не заливала поток событий
	gameWorld.Subscribe(eventbus.NewTilePublisher(bus))

	// === Репозитории ===
	positions, err := buildPositionRepo(cfg)
	if err != nil {
		logging.Error("Ошибка создания репозитория позиций: %v", err)
		os.Exit(1)
	}
	defer positions.Close()

	userRepo, err := buildUserRepo(cfg)
	if err != nil {
		logging.Error("Ошибка создания репозитория аккаунтов: %v", err)
		os.Exit(1)
	}
	authenticator := auth.NewAuthenticator(userRepo)

	// === Бой и сеть ===
	combatSystem := combat.NewCombatSystem(cfg.Combat.CellSize, bus)
	handler := network.NewGameHandler(gameWorld, combatSystem, authenticator, positions)
	handler.SetAttackSamples(cfg.Combat.Samples)

	tcpServer, err := network.NewTCPServer(fmt.Sprintf(":%d", cfg.Server.GetTCPPort()), handler)
	if err != nil {
		logging.Error("Ошибка создания TCP сервера: %v", err)
		os.Exit(1)
	}
	tcpServer.Start()
	defer tcpServer.Stop()

	kcpServer, err := network.NewKCPServer(fmt.Sprintf(":%d", cfg.Server.GetKCPPort()), handler)
	if err != nil {
		logging.Error("Ошибка создания KCP сервера: %v", err)
		os.Exit(1)
	}
	kcpServer.Start()
	defer kcpServer.Stop()

	restServer := api.NewRestServer(api.Config{
		Port:          fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		Authenticator: authenticator,
		World:         gameWorld,
		Combat:        combatSystem,
	})
	restServer.Start()

	// === Игровой цикл ===
	go combatLoop(ctx, combatSystem, handler, time.Duration(cfg.Combat.TickMs)*time.Millisecond)
	go autosaveLoop(ctx, gameWorld, worldStorage, combatSystem, positions)

	logging.Info("Все сервисы запущены")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info("Получен сигнал %v, завершение работы", sig)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := restServer.Stop(shutdownCtx); err != nil {
		logging.Warn("Ошибка остановки REST API: %v", err)
	}

	// Финальное сохранение мира и позиций
	if err := worldStorage.SaveWorld(gameWorld, true); err != nil {
		logging.Error("Ошибка финального сохранения мира: %v", err)
	}
	savePositions(shutdownCtx, combatSystem, positions)

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logging.Warn("Ошибка остановки телеметрии: %v", err)
	}

	logging.Info("Сервер остановлен")
}

// buildPositionRepo выбирает бэкенд позиций: Redis, MariaDB или память
func buildPositionRepo(cfg *config.Config) (storage.PositionRepo, error) {
	switch {
	case cfg.Storage.RedisAddr != "":
		logging.Info("Позиции игроков: Redis %s", cfg.Storage.RedisAddr)
		return storage.NewRedisPositionRepo(cfg.Storage.RedisAddr)
	case cfg.Storage.MariaDSN != "":
		logging.Info("Позиции игроков: MariaDB")
		return storage.NewMariaPositionRepo(cfg.Storage.MariaDSN)
	default:
		logging.Info("Позиции игроков: in-memory")
		return storage.NewMemoryPositionRepo(), nil
	}
}

// buildUserRepo выбирает бэкенд аккаунтов: MongoDB или память
func buildUserRepo(cfg *config.Config) (auth.UserRepository, error) {
	if cfg.Storage.MongoURI != "" {
		logging.Info("Аккаунты: MongoDB")
		return auth.NewMongoUserRepo(auth.MongoConfig{URI: cfg.Storage.MongoURI})
	}
	logging.Info("Аккаунты: in-memory (test/test, admin/admin)")
	return auth.NewMemoryUserRepo()
}

// combatLoop крутит боевые тики с фиксированным периодом
func combatLoop(ctx context.Context, cs *combat.CombatSystem, handler *network.GameHandler, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hits := cs.Tick(ctx)
			handler.BroadcastHits(hits)
		}
	}
}

// autosaveLoop периодически сохраняет изменившиеся чанки и позиции
func autosaveLoop(ctx context.Context, w *world.SparseChunkWorld, ws *storage.WorldStorage, cs *combat.CombatSystem, positions storage.PositionRepo) {
	ticker := time.NewTicker(autosaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.SaveWorld(w, false); err != nil {
				logging.Error("Ошибка автосохранения мира: %v", err)
			}
			savePositions(ctx, cs, positions)
		}
	}
}

func savePositions(ctx context.Context, cs *combat.CombatSystem, positions storage.PositionRepo) {
	var batch []storage.PlayerPosition
	cs.ForEachFighter(func(f *combat.Fighter) {
		batch = append(batch, storage.PlayerPosition{UserID: f.UserID, Pos: f.Pos})
	})
	if len(batch) == 0 {
		return
	}
	if err := positions.BatchSave(ctx, batch); err != nil {
		logging.Error("Ошибка сохранения позиций: %v", err)
	}
}
