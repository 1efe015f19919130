package catalog

import "strings"

// BookInfo is book metadata as fetched from the metadata provider, before it
// has a relational id.
type BookInfo struct {
	ISBN        string `json:"isbn"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Publisher   string `json:"publisher"`
	PublishYear string `json:"publish_year"`
	CoverURL    string `json:"cover_url"`
	Description string `json:"description"`
}

func (b BookInfo) Row() Book {
	return Book{
		ISBN:        strings.TrimSpace(b.ISBN),
		Title:       b.Title,
		Author:      b.Author,
		Publisher:   b.Publisher,
		PublishYear: b.PublishYear,
		CoverURL:    b.CoverURL,
		Description: b.Description,
	}
}

// RankedBook is a bestseller feed entry: a book plus its position.
type RankedBook struct {
	BookInfo
	Rank int `json:"rank"`
}

// Classification is the taxonomy placement of one book.
type Classification struct {
	MainCategory  string   `json:"main_category"`
	SubCategories []string `json:"sub_categories"`
}

// RankEntry is one line of a rank snapshot to persist.
type RankEntry struct {
	ISBN string `json:"isbn"`
	Rank int    `json:"rank"`
}

// AllModels lists every table for migration.
func AllModels() []any {
	return []any{
		&Book{},
		&Hashtag{},
		&BookHashtagMapping{},
		&SubCategory{},
		&BookSubCategoryMapping{},
		&Member{},
		&MemberSubCategorySelection{},
		&Recommendation{},
		&BestSeller{},
		&JobRun{},
	}
}
