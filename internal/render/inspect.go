package render

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Summary 为渲染结果的概要，发布前写入日志。
type Summary struct {
	Title   string
	Members int
	Danger  int
	Wars    int
}

// Summarize 解析渲染后的 HTML，统计成员行/危险行/部落战列数。
func Summarize(html string) (Summary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Summary{}, fmt.Errorf("parse rendered html: %w", err)
	}
	rows := doc.Find("table.members tbody tr.member")
	return Summary{
		Title:   strings.TrimSpace(doc.Find("title").First().Text()),
		Members: rows.Length(),
		Danger:  rows.Filter(".danger").Length(),
		Wars:    doc.Find("table.members thead th.war").Length(),
	}, nil
}
