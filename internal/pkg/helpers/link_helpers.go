package helpers

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// linkSuffixLength is the number of random characters after the dash
const linkSuffixLength = 4

// GenerateStudentLink builds "<first initial><last name>-<4 random chars>",
// lower-cased and stripped of anything but letters, digits and hyphens.
func GenerateStudentLink(firstName, lastName string) string {
	var b strings.Builder

	for _, r := range strings.TrimSpace(firstName) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			break
		}
	}

	for _, r := range lastName {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case r == '-':
			b.WriteRune(r)
		}
	}

	b.WriteByte('-')
	b.WriteString(randomSuffix())
	return b.String()
}

func randomSuffix() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return id[:linkSuffixLength]
}
