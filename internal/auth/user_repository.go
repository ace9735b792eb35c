package auth

import "errors"

// UserRepository — операции над аккаунтами. In-memory реализация
// используется в тестах и standalone-режиме, MongoDB — в продакшене.
type UserRepository interface {
	// GetUserByUsername возвращает пользователя по имени (без учёта
	// регистра); (nil, ErrUserNotFound), если такого нет
	GetUserByUsername(username string) (*User, error)

	// GetUserByID возвращает пользователя по идентификатору;
	// (nil, ErrUserNotFound), если такого нет
	GetUserByID(id uint64) (*User, error)

	// CreateUser создаёт пользователя; вызывающий передаёт уже
	// захешированный пароль. При конфликте имён — ErrUserExists.
	CreateUser(username string, passwordHash string, isAdmin bool) (*User, error)

	// ValidateCredentials проверяет пару логин/пароль и возвращает
	// пользователя при успехе
	ValidateCredentials(username, password string) (*User, error)
}

// Доменные ошибки репозитория
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)
