package locale

import "fmt"

// Messages содержит все сообщения на русском языке
var Messages = map[string]string{
	// SMS уведомления
	"otp_sms": "Ваш код подтверждения: %s. Код действителен %d минут.",

	// Валидация
	"phone_invalid":     "Неверный формат телефона",
	"code_invalid":      "Код должен состоять из 6 цифр",
	"field_required":    "Обязательное поле",
	"field_invalid":     "Неверное значение",
	"role_invalid":      "Недопустимая роль",
	"field_uuid":        "Ожидается UUID",
	"field_len":         "Неверная длина",
	"too_many_requests": "Слишком много запросов. Попробуйте позже",
}

// Get возвращает сообщение по ключу, или ключ если сообщение не найдено
func Get(key string) string {
	if msg, exists := Messages[key]; exists {
		return msg
	}
	return key
}

// Getf возвращает форматированное сообщение
func Getf(key string, args ...interface{}) string {
	msg := Get(key)
	return fmt.Sprintf(msg, args...)
}

// Has проверяет, существует ли сообщение для данного ключа
func Has(key string) bool {
	_, exists := Messages[key]
	return exists
}
