package auth

import (
	"fmt"

	"github.com/annel0/tile-arena/internal/logging"
)

// Authenticator — сервис входа и регистрации поверх UserRepository.
// Выдаёт JWT и используется сетевым слоем и REST API.
type Authenticator struct {
	userRepo UserRepository
}

// AuthResult — результат успешного входа
type AuthResult struct {
	User      *User
	Token     string
	ExpiresIn int64 // Секунды до истечения токена
}

// NewAuthenticator создаёт сервис аутентификации
func NewAuthenticator(repo UserRepository) *Authenticator {
	return &Authenticator{userRepo: repo}
}

// Login проверяет логин/пароль и выдаёт JWT
func (a *Authenticator) Login(username, password string) (*AuthResult, error) {
	user, err := a.userRepo.ValidateCredentials(username, password)
	if err != nil {
		logging.Warn("Неудачная аутентификация пользователя %s", username)
		return nil, fmt.Errorf("неверные учетные данные")
	}

	token, err := GenerateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации токена: %w", err)
	}

	logging.Info("Пользователь %s (ID: %d) вошёл в игру", user.Username, user.ID)
	return &AuthResult{User: user, Token: token, ExpiresIn: 24 * 3600}, nil
}

// LoginWithToken аутентифицирует по ранее выданному JWT
func (a *Authenticator) LoginWithToken(token string) (*AuthResult, error) {
	playerID, valid, _ := ValidateJWT(token)
	if !valid {
		return nil, fmt.Errorf("недействительный токен")
	}

	user, err := a.userRepo.GetUserByID(playerID)
	if err != nil {
		return nil, fmt.Errorf("пользователь токена не найден: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Register создаёт аккаунт и сразу выдаёт JWT
func (a *Authenticator) Register(username, password string) (*AuthResult, error) {
	if len(username) < 3 {
		return nil, fmt.Errorf("имя пользователя должно быть не короче 3 символов")
	}
	if len(password) < 4 {
		return nil, fmt.Errorf("пароль должен быть не короче 4 символов")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	user, err := a.userRepo.CreateUser(username, hash, false)
	if err != nil {
		return nil, err
	}

	token, err := GenerateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации токена: %w", err)
	}

	logging.Info("Зарегистрирован пользователь %s (ID: %d)", user.Username, user.ID)
	return &AuthResult{User: user, Token: token, ExpiresIn: 24 * 3600}, nil
}
