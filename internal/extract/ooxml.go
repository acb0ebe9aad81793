package extract

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	contentTypesPath    = "[Content_Types].xml"
	docxDefaultPath     = "word/document.xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	pptxSlidePrefix     = "ppt/slides/slide"
)

var (
	wordText  = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	drawText  = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	overrideA = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	overrideB = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

// extractDOCX reads every <w:t> run of the main document part. The part name
// comes from [Content_Types].xml when present.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}
	docPath := docxDefaultPath
	if types, _ := readEntry(zr, contentTypesPath); types != nil {
		for _, re := range []*regexp.Regexp{overrideA, overrideB} {
			if m := re.FindSubmatch(types); len(m) > 1 {
				docPath = strings.TrimPrefix(string(m[1]), "/")
				break
			}
		}
	}
	xml, err := readEntry(zr, docPath)
	if err != nil {
		return "", err
	}
	if xml == nil {
		return "", fmt.Errorf("%s not found", docPath)
	}
	var b strings.Builder
	collectText(&b, xml, wordText)
	return b.String(), nil
}

// extractPPTX reads the <a:t> runs of every slide in slide order.
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, name := range entriesWithPrefix(zr, pptxSlidePrefix, ".xml") {
		xml, err := readEntry(zr, name)
		if err != nil {
			return "", err
		}
		collectText(&b, xml, drawText)
	}
	return b.String(), nil
}
