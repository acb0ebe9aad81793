package extract

import (
	"fmt"
	"regexp"
	"strings"
)

const odfContentPath = "content.xml"

// odfText matches paragraphs, headings and spans of an OpenDocument body.
var odfText = regexp.MustCompile(`<text:(?:p|h|span)[^>]*>([^<]*)</text:(?:p|h|span)>`)

// extractOpenDocument handles presentations and spreadsheets (.odp, .ods).
func extractOpenDocument(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}
	xml, err := readEntry(zr, odfContentPath)
	if err != nil {
		return "", err
	}
	if xml == nil {
		return "", fmt.Errorf("%s not found", odfContentPath)
	}
	var b strings.Builder
	collectText(&b, xml, odfText)
	return b.String(), nil
}
