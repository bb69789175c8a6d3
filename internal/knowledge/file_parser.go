package knowledge

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// Page 页面级文本
type Page struct {
	Number int
	Text   string
}

// PageParser 把文档字节解析为按页的文本
type PageParser interface {
	ParsePages(data []byte) ([]Page, error)
}

var (
	pdfMagic = []byte("%PDF-")

	// ErrNotPDF 内容不是PDF
	ErrNotPDF = errors.New("content is not a PDF document")
)

// ConfigurePDFLicense 设置unipdf的计量许可证
func ConfigurePDFLicense(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("set unidoc license: %w", err)
	}
	return nil
}

// PDFParser PDF文件解析器
type PDFParser struct{}

// NewPDFParser 创建PDF解析器
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// ParsePages 逐页提取文本，空白页跳过
func (p *PDFParser) ParsePages(data []byte) ([]Page, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n\x00"), pdfMagic) {
		return nil, ErrNotPDF
	}

	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	encrypted, err := pdfReader.IsEncrypted()
	if err != nil {
		return nil, fmt.Errorf("check pdf encryption: %w", err)
	}
	if encrypted {
		// 只支持空口令加密的文档
		ok, err := pdfReader.Decrypt([]byte(""))
		if err != nil || !ok {
			return nil, fmt.Errorf("pdf is password protected")
		}
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("get pdf page count: %w", err)
	}

	pages := make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}

		ex, err := extractor.New(page)
		if err != nil {
			return nil, fmt.Errorf("create extractor for page %d: %w", i, err)
		}

		text, err := ex.ExtractText()
		if err != nil {
			return nil, fmt.Errorf("extract text from page %d: %w", i, err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	return pages, nil
}
