// Package site knows the layout of the ROM site's game pages.
package site

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/vertextoedge/romhustler-mirror/internal/domain"
)

// DefaultBaseURL is the listing root game ids are appended to
const DefaultBaseURL = "https://romhustler.org/roms"

// Link texts clicked on the way to the download
const (
	DownloadPageLinkText = "Click here to download this rom"
	DownloadLinkText     = "here"
)

// disabledText appears on pages of items that cannot be downloaded
const disabledText = "download is disabled"

// nameSelector selects the display name of the game
const nameSelector = `h1[itemprop="name"]`

// GamePage is what a rendered game page tells us
type GamePage struct {
	Available    bool
	ArtifactName string
}

// GameURL returns the page URL of a game id
func GameURL(baseURL, gameID string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(gameID, "/")
}

// ParseGamePage extracts availability and display name from rendered HTML.
// A page without a name is reported as an error unless downloads are disabled.
func ParseGamePage(html string) (*GamePage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse game page: %w", err)
	}

	page := &GamePage{Available: true}

	doc.Find("div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		// only the div's own text nodes, like an XPath text() match
		if strings.Contains(ownText(s), disabledText) {
			page.Available = false
			return false
		}
		return true
	})

	page.ArtifactName = normalizeSpace(doc.Find(nameSelector).First().Text())

	if page.Available && page.ArtifactName == "" {
		return nil, fmt.Errorf("game name not found on page")
	}
	return page, nil
}

// CheckTarget returns a BadTarget error when the browser did not stay on the
// requested page. Trailing slashes and fragments are ignored.
func CheckTarget(requestedURL, currentURL string) error {
	if sameTarget(requestedURL, currentURL) {
		return nil
	}
	return domain.NewBadTargetError(requestedURL, currentURL)
}

func sameTarget(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
	}
	return strings.EqualFold(ua.Host, ub.Host) &&
		path.Clean("/"+ua.Path) == path.Clean("/"+ub.Path)
}

func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		}
	})
	return b.String()
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
