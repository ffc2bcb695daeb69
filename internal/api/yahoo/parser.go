package yahoo

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"golang.org/x/net/html"
)

// ErrNoTable is returned when a history page has no price table
var ErrNoTable = errors.New("history table not found")

// historyColumns is the column order of the history table
const historyColumns = 7

var dateLayouts = []string{"Jan 2, 2006", "Jan 02, 2006", models.DateLayout}

// ParseHistory extracts daily bars from a history page.
// Rows with fewer than seven cells (dividends, splits) are skipped.
func ParseHistory(r io.Reader) (models.Series, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing html")
	}

	table := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "table" && hasClass(n, "table")
	})
	if table == nil {
		return nil, ErrNoTable
	}

	rows := findAll(table, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "tr"
	})

	series := models.Series{}
	for i, tr := range rows {
		// first row is the header
		if i == 0 {
			continue
		}

		var cells []string
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "td" {
				cells = append(cells, cleanCell(textContent(c)))
			}
		}
		if len(cells) < historyColumns {
			continue
		}

		bar, err := parseRow(cells)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		series = append(series, bar)
	}

	return series.Dedupe(), nil
}

// ParseAbout extracts the company description from a quote page.
// The symbol is considered valid only when the page renders the ellipsis span.
func ParseAbout(r io.Reader) (string, bool, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", false, errors.Wrap(err, "parsing html")
	}

	marker := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "span" && hasClass(n, "ellipsis")
	})
	if marker == nil {
		return "", false, nil
	}

	heading := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "h1"
	})
	if heading == nil {
		return "", true, nil
	}
	return strings.TrimSpace(textContent(heading)), true, nil
}

func parseRow(cells []string) (models.Bar, error) {
	date, err := parseTableDate(cells[0])
	if err != nil {
		return models.Bar{}, err
	}

	var prices [5]float64
	for i := range prices {
		v, err := strconv.ParseFloat(cells[i+1], 64)
		if err != nil {
			return models.Bar{}, errors.Wrapf(err, "column %d", i+1)
		}
		prices[i] = v
	}

	var volume int64
	if v := cells[6]; v != "-" && v != "" {
		volume, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return models.Bar{}, errors.Wrap(err, "volume")
		}
	}

	return models.Bar{
		Date:     date,
		Open:     prices[0],
		High:     prices[1],
		Low:      prices[2],
		Close:    prices[3],
		AdjClose: prices[4],
		Volume:   volume,
	}, nil
}

func parseTableDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, errors.Newf("unrecognised date %q", s)
}

func cleanCell(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", "")
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}
