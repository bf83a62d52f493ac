package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var phoneRegex = regexp.MustCompile(`^\+7\d{10}$`)

// Валидация номера телефона: +7 и 10 цифр, без пробелов и разделителей
func IsValidPhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}

// Генерация числового кода, ведущие нули допустимы
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	max := big.NewInt(int64(1))
	for i := 0; i < length; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate random number: %w", err)
	}

	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}

// Маскировка номера телефона для логов
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "***"
	}

	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}
