package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefaults тестирует конфигурацию по умолчанию
func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.World.ChunkSize != 16 {
		t.Errorf("ChunkSize = %d, ожидалось 16", cfg.World.ChunkSize)
	}
	if cfg.Combat.CellSize != 4.0 {
		t.Errorf("CellSize = %v, ожидалось 4.0", cfg.Combat.CellSize)
	}
	if cfg.Server.GetTCPPort() != 7777 {
		t.Errorf("TCPPort = %d, ожидалось 7777", cfg.Server.GetTCPPort())
	}
}

// TestLoadYAML тестирует наложение YAML на дефолты
func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := []byte(`
world:
  chunk_size: 32
  seed: 99
server:
  tcp_port: 9001
storage:
  redis_addr: "localhost:6379"
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.World.ChunkSize != 32 {
		t.Errorf("ChunkSize = %d, ожидалось 32", cfg.World.ChunkSize)
	}
	if cfg.World.Seed != 99 {
		t.Errorf("Seed = %d, ожидалось 99", cfg.World.Seed)
	}
	if cfg.Server.GetTCPPort() != 9001 {
		t.Errorf("TCPPort = %d, ожидалось 9001", cfg.Server.GetTCPPort())
	}
	// Незаданные поля остаются дефолтными
	if cfg.Combat.Samples != 5 {
		t.Errorf("Samples = %d, ожидалось 5", cfg.Combat.Samples)
	}
	if cfg.Storage.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q", cfg.Storage.RedisAddr)
	}
}

// TestEnvPortFallback тестирует приоритет config -> env -> default
func TestEnvPortFallback(t *testing.T) {
	t.Setenv("ARENA_KCP_PORT", "9100")

	cfg := Defaults()
	if got := cfg.Server.GetKCPPort(); got != 9100 {
		t.Errorf("KCPPort = %d, ожидалось 9100 из ENV", got)
	}

	cfg.Server.KCPPort = 9200
	if got := cfg.Server.GetKCPPort(); got != 9200 {
		t.Errorf("KCPPort = %d, config должен иметь приоритет", got)
	}
}

// TestLoadMissingFile тестирует ошибку при отсутствии файла
func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yml"); err == nil {
		t.Error("отсутствующий файл не вернул ошибку")
	}
}
