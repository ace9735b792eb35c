package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config — корневая структура конфигурации сервера арены
type Config struct {
	World    WorldConfig    `yaml:"world"`
	Combat   CombatConfig   `yaml:"combat"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	EventBus EventBusConfig `yaml:"eventbus"`
	Auth     AuthConfig     `yaml:"auth"`
}

// WorldConfig описывает параметры тайлового мира
type WorldConfig struct {
	ChunkSize   int    `yaml:"chunk_size"`   // Размер стороны чанка в тайлах
	DefaultTile uint16 `yaml:"default_tile"` // Дефолтный тайл (море)
	Seed        int64  `yaml:"seed"`         // Сид генерации стартовой области
	PaintRadius int    `yaml:"paint_radius"` // Радиус закраски стартовой области
}

// CombatConfig описывает параметры боевой системы
type CombatConfig struct {
	CellSize float64 `yaml:"cell_size"` // Размер ячейки пространственного хеша
	Samples  int     `yaml:"samples"`   // Число сэмплов swept-sphere запроса
	TickMs   int     `yaml:"tick_ms"`   // Период боевого тика
}

// ServerConfig описывает сетевые порты
type ServerConfig struct {
	TCPPort  int `yaml:"tcp_port"`
	KCPPort  int `yaml:"kcp_port"`
	RESTPort int `yaml:"rest_port"`
}

// StorageConfig описывает хранилища
type StorageConfig struct {
	DataPath  string `yaml:"data_path"`  // Каталог BadgerDB
	RedisAddr string `yaml:"redis_addr"` // Адрес Redis (пусто — memory)
	MariaDSN  string `yaml:"maria_dsn"`  // DSN MariaDB (пусто — не используется)
	MongoURI  string `yaml:"mongo_uri"`  // URI MongoDB для аккаунтов (пусто — memory)
}

// EventBusConfig описывает шину событий
type EventBusConfig struct {
	URL       string `yaml:"url"`             // Адрес NATS (пусто — in-memory)
	Stream    string `yaml:"stream"`          // Имя JetStream-стрима
	Retention int    `yaml:"retention_hours"` // Срок хранения событий
}

// AuthConfig описывает аутентификацию
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"` // Base64-секрет JWT (пусто — случайный)
}

// Defaults возвращает конфигурацию по умолчанию
func Defaults() *Config {
	return &Config{
		World: WorldConfig{
			ChunkSize:   16,
			DefaultTile: 0,
			Seed:        1,
			PaintRadius: 128,
		},
		Combat: CombatConfig{
			CellSize: 4.0,
			Samples:  5,
			TickMs:   50,
		},
		Server: ServerConfig{},
		Storage: StorageConfig{
			DataPath: "data",
		},
		EventBus: EventBusConfig{
			Stream:    "ARENA",
			Retention: 24,
		},
	}
}

// GetTCPPort возвращает TCP порт с приоритетом config -> env -> default
func (s *ServerConfig) GetTCPPort() int {
	return getPortWithEnvFallback(s.TCPPort, "ARENA_TCP_PORT", 7777)
}

// GetKCPPort возвращает KCP порт с приоритетом config -> env -> default
func (s *ServerConfig) GetKCPPort() int {
	return getPortWithEnvFallback(s.KCPPort, "ARENA_KCP_PORT", 7778)
}

// GetRESTPort возвращает REST API порт с приоритетом config -> env -> default
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "ARENA_REST_PORT", 8088)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации и накладывает его на дефолты.
// Если path == "", пытается прочитать путь из ENV ARENA_CONFIG;
// без конфига возвращаются дефолты.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("ARENA_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
