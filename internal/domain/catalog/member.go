package catalog

import (
	"time"

	"gorm.io/datatypes"
)

// Member rows are owned by the member service; this system only reads ids.
type Member struct {
	ID int64 `gorm:"column:member_id;primaryKey;autoIncrement" json:"member_id"`
}

func (Member) TableName() string { return "members" }

type MemberSubCategorySelection struct {
	MemberID      int64     `gorm:"column:member_id;primaryKey;autoIncrement:false" json:"member_id"`
	SubCategoryID int64     `gorm:"column:sub_category_id;primaryKey;autoIncrement:false" json:"sub_category_id"`
	SelectedAt    time.Time `gorm:"column:selected_at;not null" json:"selected_at"`
}

func (MemberSubCategorySelection) TableName() string { return "member_sub_category_selections" }

// Recommendation is append-only; repeated runs for one member add rows.
type Recommendation struct {
	ID                 int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	MemberID           int64          `gorm:"column:member_id;not null;index" json:"member_id"`
	BookID             int64          `gorm:"column:book_id;not null;index" json:"book_id"`
	RecommendationDate datatypes.Date `gorm:"column:recommendation_date;not null;index" json:"recommendation_date"`
	CreatedAt          time.Time      `gorm:"column:created_at;not null" json:"created_at"`
}

func (Recommendation) TableName() string { return "daily_book_id_recommendations" }

// BestSeller is one line of a rank snapshot. Every ingestion run appends a
// full batch sharing BatchID and ObservedAt.
type BestSeller struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	BatchID    string    `gorm:"column:batch_id;type:varchar(36);not null;index" json:"batch_id"`
	ISBN       string    `gorm:"column:isbn;type:varchar(20);not null;index" json:"isbn"`
	BestRank   int       `gorm:"column:best_rank;not null" json:"best_rank"`
	ObservedAt time.Time `gorm:"column:observed_at;not null;index" json:"observed_at"`
}

func (BestSeller) TableName() string { return "best_sellers" }
