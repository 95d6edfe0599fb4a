package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"posterhelper/internal/poster"
)

const (
	posterDBHost      = "theposterdb.com"
	posterDBAssetBase = "https://theposterdb.com/api/assets/"
	maxUserPages      = 200

	posterGridSelector = "div.row.d-flex.flex-wrap"
)

var errChallenge = errors.New("anti-bot challenge page returned")

// posterDBTitle matches "Name (Year)", "Name (Year) - Season N" and
// "Name (Year) - Specials".
var posterDBTitle = regexp.MustCompile(`^(.*?)\s*\((\d{4})\)\s*(?:-\s*(?:Season\s+(\d+)|(Specials)))?\s*$`)

// PosterDB extracts records from ThePosterDB set, poster and user pages.
type PosterDB struct{}

// NewPosterDB returns the ThePosterDB extractor.
func NewPosterDB() *PosterDB { return &PosterDB{} }

func (*PosterDB) Source() poster.Source { return poster.SourcePosterDB }

func (*PosterDB) Supports(rawURL string) bool {
	host, segments, ok := hostPath(rawURL)
	if !ok || host != posterDBHost || len(segments) < 2 {
		return false
	}
	switch segments[0] {
	case "set", "poster", "user":
		return true
	default:
		return false
	}
}

func (p *PosterDB) Extract(ctx context.Context, loader PageLoader, rawURL string) ([]poster.Record, error) {
	_, segments, ok := hostPath(rawURL)
	if !ok || len(segments) < 2 {
		return nil, &poster.UnsupportedSourceError{URL: rawURL}
	}
	switch segments[0] {
	case "set":
		return p.extractSet(ctx, loader, rawURL)
	case "poster":
		return p.extractPoster(ctx, loader, rawURL)
	case "user":
		return p.extractUser(ctx, loader, rawURL, segments[1])
	default:
		return nil, &poster.UnsupportedSourceError{URL: rawURL}
	}
}

func (p *PosterDB) extractSet(ctx context.Context, loader PageLoader, setURL string) ([]poster.Record, error) {
	_, doc, err := loadDocument(ctx, loader, setURL)
	if err != nil {
		return nil, err
	}
	records, err := parsePosterGrid(doc, setURL)
	if err != nil {
		return nil, err
	}
	return poster.DedupeByImage(records), nil
}

// extractPoster resolves a single poster page to its owning set.
func (p *PosterDB) extractPoster(ctx context.Context, loader PageLoader, posterURL string) ([]poster.Record, error) {
	page, doc, err := loadDocument(ctx, loader, posterURL)
	if err != nil {
		return nil, err
	}
	href, ok := doc.Find("a.rounded.view_all").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil, &poster.ParseError{URL: posterURL, Reason: "poster page has no link to its set"}
	}
	setURL, err := resolveURL(page.URL, href)
	if err != nil {
		return nil, &poster.ParseError{URL: posterURL, Reason: fmt.Sprintf("invalid set link %q", href)}
	}
	return p.extractSet(ctx, loader, setURL)
}

// extractUser walks every uploads page of a user profile.
func (p *PosterDB) extractUser(ctx context.Context, loader PageLoader, rawURL, user string) ([]poster.Record, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &poster.UnsupportedSourceError{URL: rawURL}
	}
	base := u.Scheme + "://" + u.Host + "/user/" + url.PathEscape(user)
	pageURL := func(n int) string {
		return base + "?section=uploads&page=" + strconv.Itoa(n)
	}

	_, doc, err := loadDocument(ctx, loader, pageURL(1))
	if err != nil {
		return nil, err
	}
	records, err := parsePosterGrid(doc, pageURL(1))
	if err != nil {
		return nil, err
	}
	last := min(lastPageNumber(doc), maxUserPages)
	for n := 2; n <= last; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, pageDoc, err := loadDocument(ctx, loader, pageURL(n))
		if err != nil {
			return nil, err
		}
		more, err := parsePosterGrid(pageDoc, pageURL(n))
		if err != nil {
			return nil, err
		}
		records = append(records, more...)
	}
	return poster.DedupeByImage(records), nil
}

// parsePosterGrid reads the poster cells of a set or uploads page. A page
// without the grid container is not a set page; a grid without cells is an
// empty set.
func parsePosterGrid(doc *goquery.Document, pageURL string) ([]poster.Record, error) {
	grid := doc.Find(posterGridSelector)
	if grid.Length() == 0 {
		return nil, &poster.ParseError{URL: pageURL, Reason: "page has no poster grid"}
	}
	var (
		records  []poster.Record
		parseErr error
	)
	grid.Find("div.col-6.col-lg-2.p-1").EachWithBreak(func(i int, cell *goquery.Selection) bool {
		id, _ := cell.Find("div.overlay").First().Attr("data-poster-id")
		id = strings.TrimSpace(id)
		title := normSpace(cell.Find("p.p-0.mb-1.text-break").First().Text())
		if id == "" || title == "" {
			parseErr = &poster.ParseError{URL: pageURL, Reason: fmt.Sprintf("poster cell %d lacks an id or title", i+1)}
			return false
		}
		hint, _ := cell.Find("a.text-white[data-toggle='tooltip']").First().Attr("title")
		records = append(records, posterDBRecord(title, hint, id))
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return records, nil
}

func posterDBRecord(title, hint, id string) poster.Record {
	rec := poster.Record{
		Title:    title,
		ImageURL: posterDBAssetBase + id,
		Source:   poster.SourcePosterDB,
		Artwork:  poster.ArtworkPoster,
	}
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "movie":
		rec.Kind = poster.KindMovie
	case "collection":
		rec.Kind = poster.KindCollection
	case "show":
		rec.Kind = poster.KindShow
	default:
		if strings.HasSuffix(strings.ToLower(title), " collection") {
			rec.Kind = poster.KindCollection
		} else {
			rec.Kind = poster.KindMovie
		}
	}

	m := posterDBTitle.FindStringSubmatch(title)
	if m == nil {
		return rec
	}
	rec.Title = strings.TrimSpace(m[1])
	rec.Year, _ = strconv.Atoi(m[2])
	switch {
	case m[3] != "":
		rec.Kind = poster.KindSeason
		rec.HasSeason = true
		rec.Season, _ = strconv.Atoi(m[3])
	case m[4] != "":
		rec.Kind = poster.KindSeason
		rec.HasSeason = true
		rec.Season = 0
	}
	return rec
}

func lastPageNumber(doc *goquery.Document) int {
	last := 1
	doc.Find("a.page-link").Each(func(_ int, link *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(link.Text())); err == nil && n > last {
			last = n
		}
	})
	return last
}

func loadDocument(ctx context.Context, loader PageLoader, pageURL string) (*Page, *goquery.Document, error) {
	page, err := loader.Load(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}
	doc, err := page.Document()
	if err != nil {
		return nil, nil, err
	}
	if isChallenge(doc) {
		return nil, nil, &poster.FetchError{URL: pageURL, StatusCode: page.StatusCode, Err: errChallenge}
	}
	return page, doc, nil
}

func isChallenge(doc *goquery.Document) bool {
	if strings.Contains(doc.Find("title").First().Text(), "Just a moment") {
		return true
	}
	return doc.Find("#challenge-form, #cf-challenge-running").Length() > 0
}

func resolveURL(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

func normSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
