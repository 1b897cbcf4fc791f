package utils

import (
	"strings"

	"github.com/google/uuid"
)

func NewID() string { return uuid.NewString() }

// EmailLocalPart "ann@b.com" → "ann"
func EmailLocalPart(email string) string {
	if at := strings.IndexByte(email, '@'); at >= 0 {
		return email[:at]
	}
	return email
}
