package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/bookmatch-backend/internal/data/repos/books"
	"github.com/yungbote/bookmatch-backend/internal/data/repos/jobs"
	"github.com/yungbote/bookmatch-backend/internal/data/repos/members"
	"github.com/yungbote/bookmatch-backend/internal/data/repos/ranks"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

type BookRepo = books.BookRepo
type HashtagRepo = books.HashtagRepo
type SubCategoryRepo = books.SubCategoryRepo

type MemberRepo = members.MemberRepo
type PreferenceRepo = members.PreferenceRepo
type RecommendationRepo = members.RecommendationRepo

type BestSellerRepo = ranks.BestSellerRepo
type JobRunRepo = jobs.JobRunRepo

func NewBookRepo(db *gorm.DB, baseLog *logger.Logger) BookRepo { return books.NewBookRepo(db, baseLog) }
func NewHashtagRepo(db *gorm.DB, baseLog *logger.Logger) HashtagRepo {
	return books.NewHashtagRepo(db, baseLog)
}
func NewSubCategoryRepo(db *gorm.DB, baseLog *logger.Logger) SubCategoryRepo {
	return books.NewSubCategoryRepo(db, baseLog)
}

func NewMemberRepo(db *gorm.DB, baseLog *logger.Logger) MemberRepo {
	return members.NewMemberRepo(db, baseLog)
}
func NewPreferenceRepo(db *gorm.DB, baseLog *logger.Logger) PreferenceRepo {
	return members.NewPreferenceRepo(db, baseLog)
}
func NewRecommendationRepo(db *gorm.DB, baseLog *logger.Logger) RecommendationRepo {
	return members.NewRecommendationRepo(db, baseLog)
}

func NewBestSellerRepo(db *gorm.DB, baseLog *logger.Logger) BestSellerRepo {
	return ranks.NewBestSellerRepo(db, baseLog)
}
func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}

// Set is every repo, built once at startup.
type Set struct {
	Book           BookRepo
	Hashtag        HashtagRepo
	SubCategory    SubCategoryRepo
	Member         MemberRepo
	Preference     PreferenceRepo
	Recommendation RecommendationRepo
	BestSeller     BestSellerRepo
	JobRun         JobRunRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Book:           NewBookRepo(db, baseLog),
		Hashtag:        NewHashtagRepo(db, baseLog),
		SubCategory:    NewSubCategoryRepo(db, baseLog),
		Member:         NewMemberRepo(db, baseLog),
		Preference:     NewPreferenceRepo(db, baseLog),
		Recommendation: NewRecommendationRepo(db, baseLog),
		BestSeller:     NewBestSellerRepo(db, baseLog),
		JobRun:         NewJobRunRepo(db, baseLog),
	}
}
