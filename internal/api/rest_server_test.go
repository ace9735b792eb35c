package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/annel0/tile-arena/internal/auth"
	"github.com/annel0/tile-arena/internal/combat"
	"github.com/annel0/tile-arena/internal/vec"
	"github.com/annel0/tile-arena/internal/world"
)

// Сервер создаётся один раз: prometheus-метрики middleware
// регистрируются в глобальном регистре
var (
	testServerOnce sync.Once
	testServer     *RestServer
	testWorld      *world.SparseChunkWorld
)

func getTestServer(t *testing.T) *RestServer {
	t.Helper()
	testServerOnce.Do(func() {
		w, err := world.NewSparseChunkWorld(8, 0)
		if err != nil {
			panic(err)
		}
		testWorld = w

		repo, err := auth.NewMemoryUserRepo()
		if err != nil {
			panic(err)
		}

		testServer = NewRestServer(Config{
			Authenticator: auth.NewAuthenticator(repo),
			World:         w,
			Combat:        combat.NewCombatSystem(4.0, nil),
		})
	})
	return testServer
}

func doJSON(t *testing.T, rs *RestServer, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	rs.Router().ServeHTTP(rec, req)
	return rec
}

func loginAs(t *testing.T, rs *RestServer, username, password string) string {
	t.Helper()

	rec := doJSON(t, rs, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: username, Password: password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: статус %d", username, rec.Code)
	}

	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	return resp.Token
}

// TestHealth тестирует health check
func TestHealth(t *testing.T) {
	rs := getTestServer(t)

	rec := doJSON(t, rs, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("статус %d", rec.Code)
	}
}

// TestLoginEndpoint тестирует вход и отказ при неверном пароле
func TestLoginEndpoint(t *testing.T) {
	rs := getTestServer(t)

	token := loginAs(t, rs, "test", "test")
	if token == "" {
		t.Error("пустой токен")
	}

	rec := doJSON(t, rs, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "test", Password: "bad"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("неверный пароль: статус %d", rec.Code)
	}
}

// TestStatsRequiresAuth тестирует защиту эндпоинта статистики
func TestStatsRequiresAuth(t *testing.T) {
	rs := getTestServer(t)

	rec := doJSON(t, rs, http.MethodGet, "/api/stats", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("без токена: статус %d", rec.Code)
	}

	token := loginAs(t, rs, "test", "test")
	rec = doJSON(t, rs, http.MethodGet, "/api/stats", token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("с токеном: статус %d", rec.Code)
	}
}

// TestTileEndpoints тестирует чтение и админскую правку тайла
func TestTileEndpoints(t *testing.T) {
	rs := getTestServer(t)

	userToken := loginAs(t, rs, "test", "test")
	adminToken := loginAs(t, rs, "admin", "admin")

	// Правка тайла доступна только админу
	setBody := SetTileRequest{X: 10, Y: 20, Tile: 4}
	rec := doJSON(t, rs, http.MethodPost, "/api/admin/world/tile", userToken, setBody)
	if rec.Code != http.StatusForbidden {
		t.Errorf("правка не-админом: статус %d", rec.Code)
	}

	rec = doJSON(t, rs, http.MethodPost, "/api/admin/world/tile", adminToken, setBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("правка админом: статус %d", rec.Code)
	}

	if got := testWorld.GetTile(vec.Vec2{X: 10, Y: 20}); got != 4 {
		t.Errorf("GetTile = %d, ожидалось 4", got)
	}

	rec = doJSON(t, rs, http.MethodGet, "/api/world/tile?x=10&y=20", userToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("чтение тайла: статус %d", rec.Code)
	}

	var resp struct {
		Data struct {
			Tile uint16 `json:"tile"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if resp.Data.Tile != 4 {
		t.Errorf("tile = %d, ожидалось 4", resp.Data.Tile)
	}
}

// TestDebugSweep тестирует отладочный swept-sphere эндпоинт
func TestDebugSweep(t *testing.T) {
	rs := getTestServer(t)
	adminToken := loginAs(t, rs, "admin", "admin")

	rec := doJSON(t, rs, http.MethodPost, "/api/admin/debug/sweep", adminToken, DebugSweepRequest{
		Start:   vec.Vec3Float{},
		End:     vec.Vec3Float{X: 5},
		Radius:  0.5,
		Samples: 4,
	})
	if rec.Code != http.StatusOK {
		t.Errorf("статус %d", rec.Code)
	}
}
