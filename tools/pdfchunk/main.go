package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aihub/pdfchat/internal/knowledge"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: pdfchunk <pdf_file> [chunkSize] [overlap]")
		fmt.Println("Example: pdfchunk handbook.pdf 1000 200")
		os.Exit(1)
	}

	pdfPath := os.Args[1]
	chunkSize := 1000
	overlap := 200
	if len(os.Args) > 2 {
		if v, err := strconv.Atoi(os.Args[2]); err == nil {
			chunkSize = v
		}
	}
	if len(os.Args) > 3 {
		if v, err := strconv.Atoi(os.Args[3]); err == nil {
			overlap = v
		}
	}

	if err := knowledge.ConfigurePDFLicense(os.Getenv("AIHUB_KNOWLEDGE_PDF_LICENSE_KEY")); err != nil {
		fmt.Printf("错误: %v\n", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(pdfPath)
	if err != nil {
		fmt.Printf("错误: 无法读取PDF文件: %v\n", err)
		os.Exit(1)
	}

	started := time.Now()
	pages, err := knowledge.NewPDFParser().ParsePages(data)
	if err != nil {
		fmt.Printf("错误: PDF解析失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("PDF解析完成: %d 页有文本 (耗时: %v)\n", len(pages), time.Since(started))

	chunks := knowledge.NewChunker(chunkSize, overlap).SplitPages(pdfPath, pages)
	fmt.Printf("分块完成: chunkSize=%d overlap=%d 共 %d 块\n\n", chunkSize, overlap, len(chunks))

	for _, chunk := range chunks {
		preview := chunk.Text
		if utf8.RuneCountInString(preview) > 80 {
			preview = string([]rune(preview)[:80]) + "..."
		}
		fmt.Printf("#%-4d page=%-4d chars=%-5d %s\n",
			chunk.Index,
			chunk.PageNumber,
			utf8.RuneCountInString(chunk.Text),
			strings.ReplaceAll(preview, "\n", " "))
	}
}
