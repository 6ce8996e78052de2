package validation

import (
	"errors"
	"strings"
	"unicode"
)

var commonPasswords = map[string]struct{}{
	"password":  {},
	"password1": {},
	"12345678":  {},
	"123456789": {},
	"qwerty123": {},
	"iloveyou":  {},
	"11111111":  {},
	"abc12345":  {},
}

// ValidatePassword checks if a password meets the sign-up requirements.
func ValidatePassword(password, username string) error {
	if len(password) < 8 {
		return errors.New("This password is too short. It must contain at least 8 characters.")
	}
	if len(password) > 128 {
		return errors.New("password must not exceed 128 characters")
	}

	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		return errors.New("This password is too common.")
	}

	allDigits := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return errors.New("This password is entirely numeric.")
	}

	if username != "" && strings.Contains(strings.ToLower(password), strings.ToLower(username)) {
		return errors.New("The password is too similar to the username.")
	}

	return nil
}
