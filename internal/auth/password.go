package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrPasswordTooShort はパスワードが最小長に満たない場合のエラー。
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	// ErrPasswordMismatch はパスワードがハッシュと一致しない場合のエラー。
	ErrPasswordMismatch = errors.New("password does not match")
)

const (
	// DefaultBcryptCost は本番で使うbcryptのコスト。
	DefaultBcryptCost = 12
	// MinPasswordLength はパスワードの最小文字数。
	MinPasswordLength = 8
)

// HashPassword はパスワードのbcryptハッシュを生成する。
// costが0以下の場合はDefaultBcryptCostを使う。
func HashPassword(password string, cost int) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	if cost <= 0 {
		cost = DefaultBcryptCost
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword はパスワードがハッシュと一致するかを検証する。
func VerifyPassword(hashedPassword, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return err
	}
	return nil
}
