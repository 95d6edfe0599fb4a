package plex

import (
	"strings"

	"posterhelper/internal/poster"
)

type mediaContainer struct {
	LibrarySectionID    string     `xml:"librarySectionID,attr"`
	LibrarySectionTitle string     `xml:"librarySectionTitle,attr"`
	Directories         []metadata `xml:"Directory"`
	Videos              []metadata `xml:"Video"`
	Photos              []photo    `xml:"Photo"`
}

type metadata struct {
	RatingKey        string `xml:"ratingKey,attr"`
	Key              string `xml:"key,attr"`
	Type             string `xml:"type,attr"`
	Title            string `xml:"title,attr"`
	Year             int    `xml:"year,attr"`
	Index            int    `xml:"index,attr"`
	ParentIndex      int    `xml:"parentIndex,attr"`
	ParentTitle      string `xml:"parentTitle,attr"`
	GrandparentTitle string `xml:"grandparentTitle,attr"`
	LibrarySectionID string `xml:"librarySectionID,attr"`
	Labels           []tag  `xml:"Label"`
}

type tag struct {
	Tag string `xml:"tag,attr"`
}

type photo struct {
	Key       string `xml:"key,attr"`
	RatingKey string `xml:"ratingKey,attr"`
	Provider  string `xml:"provider,attr"`
	Selected  bool   `xml:"selected,attr"`
}

// items converts every Directory and Video entry with a rating key into a
// library item belonging to section.
func (c mediaContainer) items(section Section) []poster.LibraryItem {
	entries := make([]metadata, 0, len(c.Directories)+len(c.Videos))
	entries = append(entries, c.Directories...)
	entries = append(entries, c.Videos...)

	library := section.Title
	if library == "" {
		library = c.LibrarySectionTitle
	}
	items := make([]poster.LibraryItem, 0, len(entries))
	for _, m := range entries {
		if m.RatingKey == "" {
			continue
		}
		sectionID := m.LibrarySectionID
		if sectionID == "" {
			sectionID = c.LibrarySectionID
		}
		if sectionID == "" {
			sectionID = section.Key
		}
		item := poster.LibraryItem{
			RatingKey:   m.RatingKey,
			SectionID:   sectionID,
			Library:     library,
			Title:       m.Title,
			Year:        m.Year,
			Kind:        kindFromType(m.Type),
			Index:       m.Index,
			ParentIndex: m.ParentIndex,
		}
		switch item.Kind {
		case poster.KindEpisode:
			item.ParentTitle = m.GrandparentTitle
		case poster.KindSeason:
			item.ParentTitle = m.ParentTitle
		}
		for _, label := range m.Labels {
			if t := strings.TrimSpace(label.Tag); t != "" {
				item.Labels = append(item.Labels, t)
			}
		}
		items = append(items, item)
	}
	return items
}

func kindFromType(value string) poster.MediaKind {
	switch strings.ToLower(value) {
	case "show":
		return poster.KindShow
	case "season":
		return poster.KindSeason
	case "episode":
		return poster.KindEpisode
	case "collection":
		return poster.KindCollection
	default:
		return poster.KindMovie
	}
}
