package catalog

import "time"

// Book is the canonical catalog row. ISBN is the natural key shared with the
// vector index; ID is the relational surrogate other tables reference.
type Book struct {
	ID          int64     `gorm:"column:book_id;primaryKey;autoIncrement" json:"book_id"`
	ISBN        string    `gorm:"column:isbn;type:varchar(20);not null;uniqueIndex" json:"isbn"`
	Title       string    `gorm:"column:title;type:varchar(512);not null" json:"title"`
	Author      string    `gorm:"column:author;type:varchar(512)" json:"author"`
	Publisher   string    `gorm:"column:publisher;type:varchar(255)" json:"publisher"`
	PublishYear string    `gorm:"column:publish_year;type:varchar(4)" json:"publish_year"`
	CoverURL    string    `gorm:"column:cover_url;type:varchar(1024)" json:"cover_url"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt   time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Book) TableName() string { return "books" }

type Hashtag struct {
	ID   int64  `gorm:"column:hashtag_id;primaryKey;autoIncrement" json:"hashtag_id"`
	Name string `gorm:"column:name;type:varchar(191);not null;uniqueIndex" json:"name"`
}

func (Hashtag) TableName() string { return "hashtags" }

type BookHashtagMapping struct {
	BookID    int64 `gorm:"column:book_id;primaryKey;autoIncrement:false" json:"book_id"`
	HashtagID int64 `gorm:"column:hashtag_id;primaryKey;autoIncrement:false;index" json:"hashtag_id"`
}

func (BookHashtagMapping) TableName() string { return "book_hashtag_mappings" }

// SubCategory is one leaf of the fixed two-level taxonomy. MainCategoryName is
// carried for seeding and display; lookups are by Name only.
type SubCategory struct {
	ID               int64  `gorm:"column:sub_category_id;primaryKey;autoIncrement" json:"sub_category_id"`
	Name             string `gorm:"column:sub_category_name;type:varchar(191);not null;uniqueIndex" json:"sub_category_name"`
	MainCategoryName string `gorm:"column:main_category_name;type:varchar(191);not null;default:''" json:"main_category_name"`
}

func (SubCategory) TableName() string { return "sub_categories" }

type BookSubCategoryMapping struct {
	BookID        int64 `gorm:"column:book_id;primaryKey;autoIncrement:false" json:"book_id"`
	SubCategoryID int64 `gorm:"column:sub_category_id;primaryKey;autoIncrement:false;index" json:"sub_category_id"`
}

func (BookSubCategoryMapping) TableName() string { return "book_sub_category_mappings" }
