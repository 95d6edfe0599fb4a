package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"posterhelper/internal/poster"
)

const (
	mediuxHost      = "mediux.pro"
	mediuxAssetBase = "https://api.mediux.pro/assets/"
)

// MediUX extracts records from the Next.js page data embedded in MediUX set,
// file and user pages.
type MediUX struct{}

// NewMediUX returns the MediUX extractor.
func NewMediUX() *MediUX { return &MediUX{} }

func (*MediUX) Source() poster.Source { return poster.SourceMediUX }

func (*MediUX) Supports(rawURL string) bool {
	host, segments, ok := hostPath(rawURL)
	if !ok || host != mediuxHost || len(segments) < 2 {
		return false
	}
	switch segments[0] {
	case "sets", "files", "user":
		return true
	default:
		return false
	}
}

func (m *MediUX) Extract(ctx context.Context, loader PageLoader, rawURL string) ([]poster.Record, error) {
	_, segments, ok := hostPath(rawURL)
	if !ok || len(segments) < 2 {
		return nil, &poster.UnsupportedSourceError{URL: rawURL}
	}
	switch segments[0] {
	case "sets":
		return m.extractSet(ctx, loader, rawURL)
	case "files":
		return m.extractFile(ctx, loader, rawURL)
	case "user":
		return m.extractUser(ctx, loader, rawURL)
	default:
		return nil, &poster.UnsupportedSourceError{URL: rawURL}
	}
}

func (m *MediUX) extractSet(ctx context.Context, loader PageLoader, setURL string) ([]poster.Record, error) {
	data, err := loadNextData(ctx, loader, setURL)
	if err != nil {
		return nil, err
	}
	set := data.Props.PageProps.Set
	if set == nil {
		return nil, &poster.ParseError{URL: setURL, Reason: "page data has no set"}
	}
	return mediuxRecords(set), nil
}

// extractFile resolves a single file page to its owning set.
func (m *MediUX) extractFile(ctx context.Context, loader PageLoader, fileURL string) ([]poster.Record, error) {
	data, err := loadNextData(ctx, loader, fileURL)
	if err != nil {
		return nil, err
	}
	file := data.Props.PageProps.File
	if file == nil || file.SetID == nil || file.SetID.ID == "" {
		return nil, &poster.ParseError{URL: fileURL, Reason: "file page does not reference a set"}
	}
	setURL, err := resolveURL(fileURL, "/sets/"+url.PathEscape(string(file.SetID.ID)))
	if err != nil {
		return nil, &poster.ParseError{URL: fileURL, Reason: err.Error()}
	}
	return m.extractSet(ctx, loader, setURL)
}

// extractUser loads every set listed on a user's sets page.
func (m *MediUX) extractUser(ctx context.Context, loader PageLoader, userURL string) ([]poster.Record, error) {
	data, err := loadNextData(ctx, loader, userURL)
	if err != nil {
		return nil, err
	}
	var records []poster.Record
	for _, ref := range data.Props.PageProps.Sets {
		if ref.ID == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		setURL, err := resolveURL(userURL, "/sets/"+url.PathEscape(string(ref.ID)))
		if err != nil {
			return nil, &poster.ParseError{URL: userURL, Reason: err.Error()}
		}
		more, err := m.extractSet(ctx, loader, setURL)
		if err != nil {
			return nil, err
		}
		records = append(records, more...)
	}
	return poster.DedupeByImage(records), nil
}

func loadNextData(ctx context.Context, loader PageLoader, pageURL string) (*mediuxNextData, error) {
	_, doc, err := loadDocument(ctx, loader, pageURL)
	if err != nil {
		return nil, err
	}
	script := doc.Find("script#__NEXT_DATA__").First()
	if script.Length() == 0 {
		return nil, &poster.ParseError{URL: pageURL, Reason: "page data script not found"}
	}
	var data mediuxNextData
	if err := json.Unmarshal([]byte(script.Text()), &data); err != nil {
		return nil, &poster.ParseError{URL: pageURL, Reason: fmt.Sprintf("decode page data: %v", err)}
	}
	return &data, nil
}

// mediuxRecords converts set files into records ordered collection, movie,
// show, season, episode; source order is kept within each kind.
func mediuxRecords(set *mediuxSet) []poster.Record {
	records := make([]poster.Record, 0, len(set.Files))
	for _, file := range set.Files {
		rec, ok := file.record(set)
		if ok {
			records = append(records, rec)
		}
	}
	slices.SortStableFunc(records, func(a, b poster.Record) int {
		return kindRank(a.Kind) - kindRank(b.Kind)
	})
	return poster.DedupeByImage(records)
}

func kindRank(kind poster.MediaKind) int {
	switch kind {
	case poster.KindCollection:
		return 0
	case poster.KindMovie:
		return 1
	case poster.KindShow:
		return 2
	case poster.KindSeason:
		return 3
	default:
		return 4
	}
}

type mediuxNextData struct {
	Props struct {
		PageProps struct {
			Set  *mediuxSet `json:"set"`
			File *struct {
				SetID *struct {
					ID flexID `json:"id"`
				} `json:"set_id"`
			} `json:"file"`
			Sets []struct {
				ID flexID `json:"id"`
			} `json:"sets"`
		} `json:"pageProps"`
	} `json:"props"`
}

type mediuxSet struct {
	ID         flexID            `json:"id"`
	SetName    string            `json:"set_name"`
	Show       *mediuxShow       `json:"show"`
	Movie      *mediuxMovie      `json:"movie"`
	Collection *mediuxCollection `json:"collection"`
	Files      []mediuxFile      `json:"files"`
}

type mediuxShow struct {
	Name         string `json:"name"`
	FirstAirDate string `json:"first_air_date"`
}

type mediuxMovie struct {
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
}

type mediuxCollection struct {
	CollectionName string `json:"collection_name"`
}

type mediuxSeason struct {
	SeasonNumber *int `json:"season_number"`
}

type mediuxEpisode struct {
	EpisodeNumber *int          `json:"episode_number"`
	SeasonID      *mediuxSeason `json:"season_id"`
}

type mediuxFile struct {
	ID           flexID            `json:"id"`
	FileType     string            `json:"fileType"`
	SeasonID     *mediuxSeason     `json:"season_id"`
	EpisodeID    *mediuxEpisode    `json:"episode_id"`
	MovieID      *mediuxMovie      `json:"movie_id"`
	CollectionID *mediuxCollection `json:"collection_id"`
}

func (f mediuxFile) record(set *mediuxSet) (poster.Record, bool) {
	if f.ID == "" {
		return poster.Record{}, false
	}
	artwork, ok := mediuxArtwork(f.FileType)
	if !ok {
		return poster.Record{}, false
	}
	rec := poster.Record{
		ImageURL: mediuxAssetBase + string(f.ID),
		Source:   poster.SourceMediUX,
		Artwork:  artwork,
	}
	if set.Show != nil {
		rec.Title = strings.TrimSpace(set.Show.Name)
		rec.Year = yearOf(set.Show.FirstAirDate)
	}

	switch {
	case f.EpisodeID != nil:
		rec.Kind = poster.KindEpisode
		rec.Artwork = poster.ArtworkTitleCard
		if f.EpisodeID.EpisodeNumber != nil {
			rec.Episode, rec.HasEpisode = *f.EpisodeID.EpisodeNumber, true
		}
		if s := f.EpisodeID.SeasonID; s != nil && s.SeasonNumber != nil {
			rec.Season, rec.HasSeason = *s.SeasonNumber, true
		}
	case f.SeasonID != nil:
		rec.Kind = poster.KindSeason
		if f.SeasonID.SeasonNumber != nil {
			rec.Season, rec.HasSeason = *f.SeasonID.SeasonNumber, true
		}
	case f.MovieID != nil:
		rec.Kind = poster.KindMovie
		rec.Title = strings.TrimSpace(f.MovieID.Title)
		rec.Year = yearOf(f.MovieID.ReleaseDate)
	case f.CollectionID != nil:
		rec.Kind = poster.KindCollection
		rec.Title = strings.TrimSpace(f.CollectionID.CollectionName)
		rec.Year = 0
	case set.Movie != nil:
		rec.Kind = poster.KindMovie
		rec.Title = strings.TrimSpace(set.Movie.Title)
		rec.Year = yearOf(set.Movie.ReleaseDate)
	case set.Collection != nil:
		rec.Kind = poster.KindCollection
		rec.Title = strings.TrimSpace(set.Collection.CollectionName)
	default:
		rec.Kind = poster.KindShow
	}
	if rec.Title == "" {
		return poster.Record{}, false
	}
	return rec, true
}

func mediuxArtwork(fileType string) (poster.ArtworkType, bool) {
	switch strings.ToLower(strings.TrimSpace(fileType)) {
	case "poster", "":
		return poster.ArtworkPoster, true
	case "backdrop", "background":
		return poster.ArtworkBackdrop, true
	case "title_card", "titlecard":
		return poster.ArtworkTitleCard, true
	default:
		return "", false
	}
}

func yearOf(date string) int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

// flexID accepts identifiers encoded as either JSON strings or numbers.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = flexID(n.String())
	return nil
}
