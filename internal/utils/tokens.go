package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// NewOpaqueToken — случайный непарсимый токен, используется только как ключ
// поиска в БД (сессии, сброс пароля, OAuth state).
func NewOpaqueToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32 // 256 бит по умолчанию
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewNumericCode — короткий цифровой код для каналов без вставки (SMS).
// Генерация через crypto/rand, не math/rand.
func NewNumericCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	maxVal := big.NewInt(1)
	for i := 0; i < length; i++ {
		maxVal.Mul(maxVal, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, maxVal)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
