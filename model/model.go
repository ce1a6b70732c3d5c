package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// EntityType distinguishes the two kinds of wallet owners on the platform.
type EntityType string

const (
	EntityCompany  EntityType = "company"
	EntityEmployee EntityType = "employee"
)

func (e EntityType) Valid() bool {
	return e == EntityCompany || e == EntityEmployee
}

// GenerateUUIDWithSuffix generates a UUID with a given module-specific prefix.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithPrefix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithPrefix
}

// Tokenize splits free text into lowercase words for description matching.
// Punctuation commonly found in gateway narrations acts as a separator.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ',', '.', ';', ':', '/', '-', '_', '(', ')', '#', '*', '|':
			return ' '
		}
		return r
	}, strings.ToLower(text))
	return strings.Fields(cleaned)
}
