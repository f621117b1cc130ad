package transcript

import (
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

var blankLinesPattern = regexp.MustCompile(`\n{3,}`)

// Converter turns article HTML into Markdown. Known tags are rewritten by
// fixed rules over the parsed tree; whatever element survives them is
// handed to a general HTML to Markdown converter.
type Converter struct {
	general func(string) (string, error)
}

func NewConverter() *Converter {
	return &Converter{general: func(s string) (string, error) {
		return htmltomarkdown.ConvertString(s)
	}}
}

type rule func(s *goquery.Selection) string

var rules = map[string]rule{
	"script": drop,
	"style":  drop,

	"h1": heading(1),
	"h2": heading(2),
	"h3": heading(3),
	"h4": heading(4),
	"h5": heading(5),
	"h6": heading(6),

	"p":          block,
	"div":        block,
	"section":    block,
	"article":    block,
	"header":     block,
	"footer":     block,
	"figure":     block,
	"figcaption": block,

	"strong": wrap("**"),
	"b":      wrap("**"),
	"em":     wrap("*"),
	"i":      wrap("*"),
	"code":   wrap("`"),
	"span":   inline,
	"font":   inline,
	"u":      inline,

	"img": func(s *goquery.Selection) string {
		return fmt.Sprintf("![%s](%s)\n\n", s.AttrOr("alt", ""), s.AttrOr("src", ""))
	},
	"a": func(s *goquery.Selection) string {
		return fmt.Sprintf("[%s](%s)", strings.TrimSpace(s.Text()), s.AttrOr("href", ""))
	},
	"br": func(*goquery.Selection) string { return "\n" },
	"hr": func(*goquery.Selection) string { return "\n---\n\n" },

	"ol": func(s *goquery.Selection) string {
		var lines []string
		s.Find("li").Each(func(i int, li *goquery.Selection) {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, strings.TrimSpace(li.Text())))
		})
		return strings.Join(lines, "\n") + "\n\n"
	},
	"ul": func(s *goquery.Selection) string {
		var lines []string
		s.Find("li").Each(func(_ int, li *goquery.Selection) {
			lines = append(lines, "- "+strings.TrimSpace(li.Text()))
		})
		return strings.Join(lines, "\n") + "\n\n"
	},
	"blockquote": func(s *goquery.Selection) string {
		text := strings.TrimSpace(s.Text())
		return "> " + strings.ReplaceAll(text, "\n", "\n> ") + "\n\n"
	},
	"pre": func(s *goquery.Selection) string {
		return "```\n" + strings.TrimSpace(s.Text()) + "\n```\n\n"
	},
}

var ruleSelector = func() string {
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}()

func drop(*goquery.Selection) string { return "" }

func inline(s *goquery.Selection) string { return s.Text() }

func block(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text()) + "\n\n"
}

func heading(level int) rule {
	return func(s *goquery.Selection) string {
		return strings.Repeat("#", level) + " " + strings.TrimSpace(s.Text()) + "\n\n"
	}
}

func wrap(marker string) rule {
	return func(s *goquery.Selection) string {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return ""
		}
		return marker + text + marker
	}
}

// Convert renders htmlContent as Markdown
func (c *Converter) Convert(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse article html: %w", err)
	}
	body := doc.Find("body")

	// Unknown top-level elements go to the general converter while their
	// subtree is still markup; converted text inside them would be escaped.
	body.Children().Each(func(_ int, s *goquery.Selection) {
		if _, known := rules[goquery.NodeName(s)]; !known {
			replaceWithText(s, c.convertResidual(s))
		}
	})

	// Reverse document order rewrites descendants before their ancestors,
	// so an enclosing element renders from already converted text.
	matched := body.Find(ruleSelector)
	for i := matched.Length() - 1; i >= 0; i-- {
		s := matched.Eq(i)
		name := goquery.NodeName(s)
		if name != "pre" && s.ParentsFiltered("pre").Length() > 0 {
			replaceWithText(s, s.Text())
			continue
		}
		replaceWithText(s, rules[name](s))
	}

	// Only text nodes are left, holding decoded entities. Angle brackets in
	// them are article text.
	return blankLinesPattern.ReplaceAllString(body.Text(), "\n\n"), nil
}

// convertResidual handles an element no rule knows about. If the general
// converter fails the element's bare text is kept.
func (c *Converter) convertResidual(s *goquery.Selection) string {
	outer, err := goquery.OuterHtml(s)
	if err == nil {
		md, convErr := c.general(outer)
		if convErr == nil {
			return md + "\n\n"
		}
		err = convErr
	}
	logrus.WithError(err).WithField("tag", goquery.NodeName(s)).Debug("General markdown conversion failed, keeping text")
	return s.Text()
}

func replaceWithText(s *goquery.Selection, text string) {
	s.ReplaceWithNodes(&html.Node{Type: html.TextNode, Data: text})
}
