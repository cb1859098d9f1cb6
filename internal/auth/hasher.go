package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost は既存データと互換のあるbcryptコスト。
const DefaultBcryptCost = 10

// ErrEmptyPassword は空のパスワードをハッシュ化しようとした場合に返される。
var ErrEmptyPassword = errors.New("password cannot be empty")

// PasswordHasher はパスワードの一方向ハッシュ化と照合を提供する。
type PasswordHasher interface {
	// Hash はソルト付きハッシュを生成する。同じ入力でも毎回異なる値を返す。
	Hash(password string) (string, error)

	// Verify はパスワードがハッシュと一致するかを返す。
	// 不一致は (false, nil)、ハッシュの形式不正のみエラーを返す。
	Verify(password, hash string) (bool, error)
}

// BcryptHasher はbcryptによるPasswordHasherの実装。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はBcryptHasherを生成する。
// costが範囲外の場合はDefaultBcryptCostを使用する。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash はパスワードのbcryptハッシュを生成する。
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify はパスワードとbcryptハッシュを照合する。
func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("failed to verify password: %w", err)
}

// compile-time interface check
var _ PasswordHasher = (*BcryptHasher)(nil)
