// Package render turns cached statuses and notifications into terminal
// text.
package render

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/roach88/feedkeep/internal/model"
)

// PlainText strips status HTML down to text. Line breaks become newlines
// and paragraphs are separated by a blank line. Malformed HTML is returned
// with its tags intact.
func PlainText(html string) string {
	if !strings.ContainsRune(html, '<') {
		return strings.TrimSpace(html)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}

	doc.Find("br").ReplaceWithHtml("\n")
	var paras []string
	body := doc.Find("body")
	if p := body.Find("p"); p.Length() > 0 {
		p.Each(func(_ int, s *goquery.Selection) {
			if t := strings.TrimSpace(s.Text()); t != "" {
				paras = append(paras, t)
			}
		})
	} else if t := strings.TrimSpace(body.Text()); t != "" {
		paras = append(paras, t)
	}
	return strings.Join(paras, "\n\n")
}

// StatusLine renders st on one line. Content behind a content warning is
// hidden unless the user chose to show it.
func StatusLine(st model.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s @%s", st.ID, st.Author.Acct)
	switch {
	case st.ReblogAuthor != nil:
		fmt.Fprintf(&b, " (boost of %s by @%s)", st.ReblogOfID, st.ReblogAuthor.Acct)
	case st.ReblogOfID != "":
		fmt.Fprintf(&b, " (boost of %s)", st.ReblogOfID)
	}
	b.WriteString(": ")

	switch {
	case st.Filtered:
		b.WriteString("[filtered]")
	case st.Spoiler != "" && !st.Overlay.ContentShowing:
		fmt.Fprintf(&b, "[CW: %s]", st.Spoiler)
	default:
		b.WriteString(oneLine(PlainText(st.Content)))
	}
	return b.String()
}

// ItemLine renders a timeline row.
func ItemLine(it model.TimelineItem) string {
	switch it := it.(type) {
	case model.StatusItem:
		return StatusLine(it.Status)
	case model.GapItem:
		return fmt.Sprintf("%s ... (gap, fill-gap %s)", it.ID, it.ID)
	}
	return ""
}

// NotificationLine renders n on one line.
func NotificationLine(n model.Notification) string {
	line := fmt.Sprintf("%s %s @%s", n.ID, n.Type, n.Author.Acct)
	switch p := n.Payload().(type) {
	case model.StatusPayload:
		line += ": " + oneLine(PlainText(p.Status.Content))
	case model.ReportPayload:
		line += fmt.Sprintf(": report %s (%s)", p.Report.ID, p.Report.Category)
	case model.NoPayload:
	}
	return line
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
