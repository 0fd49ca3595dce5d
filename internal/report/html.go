package report

import (
	"bytes"

	"github.com/gomarkdown/markdown"
)

const (
	htmlHead = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Network Baseline vs Attack Deviation Report</title>
<style>body{font-family:sans-serif}table{border-collapse:collapse}th,td{border:1px solid #ccc;padding:6px}</style>
</head>
<body>
`
	htmlTail = "</body>\n</html>\n"
)

// RenderHTML renders the report as a standalone HTML document.
func RenderHTML(r Report) (string, error) {
	var md bytes.Buffer
	if err := WriteMarkdown(&md, r); err != nil {
		return "", err
	}
	// A nil parser and renderer give CommonExtensions, which include tables.
	body := markdown.ToHTML(md.Bytes(), nil, nil)
	return htmlHead + string(body) + htmlTail, nil
}
