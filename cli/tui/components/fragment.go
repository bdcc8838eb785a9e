package components

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// AlertLine is the text form of an alert fragment.
type AlertLine struct {
	Level string
	Text  string
}

// TitleTab is one watch list header of a titles fragment.
type TitleTab struct {
	List   string
	Count  int
	Active bool
}

// TitleList is the text form of a titles fragment.
type TitleList struct {
	Tabs  []TitleTab
	Items []string
	Empty bool
}

// ActiveTab returns the selected watch list, or "".
func (t TitleList) ActiveTab() string {
	for _, tab := range t.Tabs {
		if tab.Active {
			return tab.List
		}
	}
	return ""
}

// Count returns the number of titles in list.
func (t TitleList) Count(list string) int {
	for _, tab := range t.Tabs {
		if tab.List == list {
			return tab.Count
		}
	}
	return 0
}

func parseFragment(html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	return doc
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FlattenAlert reads the level and message of an alert fragment. Markup that
// is not an alert is returned as its plain text.
func FlattenAlert(html string) AlertLine {
	doc := parseFragment(html)
	if doc == nil {
		return AlertLine{Text: squash(html)}
	}
	alert := doc.Find(".alert").First()
	if alert.Length() == 0 {
		return AlertLine{Text: squash(doc.Text())}
	}
	line := AlertLine{
		Level: squash(alert.Find("strong").First().Text()),
		Text:  squash(alert.Find("span").First().Text()),
	}
	if line.Text == "" {
		line.Text = squash(alert.Text())
	}
	return line
}

// FlattenStatusbar returns the header and the progress lines of a status
// panel fragment.
func FlattenStatusbar(html string) []string {
	doc := parseFragment(html)
	if doc == nil {
		return nil
	}
	var lines []string
	doc.Find(".accordion-button, .progress-all, .progress-current").Each(func(_ int, s *goquery.Selection) {
		if text := squash(s.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	if len(lines) == 0 {
		if text := squash(doc.Text()); text != "" {
			lines = append(lines, text)
		}
	}
	return lines
}

// FlattenTitles reads the watch list tabs and the titles of the selected
// list.
func FlattenTitles(html string) TitleList {
	var out TitleList
	doc := parseFragment(html)
	if doc == nil {
		return out
	}
	doc.Find(".nav-item").Each(func(_ int, s *goquery.Selection) {
		badge := s.Find(".badge")
		count, _ := strconv.Atoi(squash(badge.Text()))
		name := squash(s.Clone().Children().Remove().End().Text())
		out.Tabs = append(out.Tabs, TitleTab{
			List:   name,
			Count:  count,
			Active: s.HasClass("active"),
		})
	})
	doc.Find(".list-group-item").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("empty") {
			out.Empty = true
			return
		}
		out.Items = append(out.Items, squash(s.Text()))
	})
	return out
}
