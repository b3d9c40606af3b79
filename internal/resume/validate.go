package resume

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// MaxFileSize はアップロード可能な履歴書の最大サイズ。
const MaxFileSize = 5 << 20

var pdfMagic = []byte("%PDF-")

// ValidatePDF はデータがページを持つPDFとして解析できることを検証し、ページ数を返す。
func ValidatePDF(data []byte) (pages int, err error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("file is empty")
	}
	if len(data) > MaxFileSize {
		return 0, fmt.Errorf("file exceeds %d bytes", MaxFileSize)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return 0, fmt.Errorf("file is not a PDF")
	}

	// 壊れたPDFでパーサーがpanicする場合がある
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pdf: %w", err)
	}
	pages = reader.NumPage()
	if pages == 0 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return pages, nil
}
