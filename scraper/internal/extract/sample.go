package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/ifscdir/scraper/internal/page"
)

// SampleLimit caps the length of a failure sample, in runes.
const SampleLimit = 500

var (
	samplePolicy = bluemonday.UGCPolicy()
	sampleConv   = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
)

// Sample renders a rejected detail block for the failure log: sanitised
// HTML converted to markdown, or the plain text when there is no usable
// HTML, truncated to SampleLimit runes.
func Sample(c page.Content) string {
	out := ""
	if strings.TrimSpace(c.HTML) != "" {
		if md, err := sampleConv.ConvertString(samplePolicy.Sanitize(c.HTML)); err == nil {
			out = strings.TrimSpace(md)
		}
	}
	if out == "" {
		out = CleanValue(c.Text)
	}
	return truncate(out, SampleLimit)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
