package auth

import "time"

// User — аккаунт игрока или администратора
type User struct {
	ID           uint64    // Уникальный неизменяемый идентификатор
	Username     string    // Уникальное имя (без учёта регистра)
	PasswordHash string    // bcrypt-хеш пароля
	CreatedAt    time.Time // Время создания аккаунта (серверное)
	LastLogin    time.Time // Последний успешный вход
	IsAdmin      bool      // Признак администратора
}
