package extract

import (
	"strings"

	"github.com/lu4p/cat"
)

// extractWithCat reads OpenDocument text and RTF files.
func extractWithCat(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
