package db

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword 是演示账号的统一密码。
const DemoPassword = "munich-demo"

// SeedSummary reports what SeedDemo created.
type SeedSummary struct {
	Users       int
	Issues      int
	Submissions int
	Skipped     bool
}

type demoPhoto struct {
	description string
	width       int
	height      int
	status      string
	votes       int
}

// 横图、竖图和方图混合，便于在前端检查瀑布流效果
var demoPhotos = []demoPhoto{
	{"Frauenkirche at blue hour", 1600, 1067, SubmissionStatusSelected, 42},
	{"Eisbach surfer", 1080, 1350, SubmissionStatusSelected, 37},
	{"Olympiapark fog", 1200, 1200, SubmissionStatusSelected, 29},
	{"Tram 19 at Isartor", 1600, 900, SubmissionStatusSelected, 24},
	{"Viktualienmarkt stalls", 1000, 1500, SubmissionStatusSelected, 18},
	{"Englischer Garten pagoda", 1500, 1000, SubmissionStatusApproved, 12},
	{"Allianz Arena glow", 1350, 1080, SubmissionStatusApproved, 9},
	{"Rooftops from Alter Peter", 1200, 1600, SubmissionStatusRejected, 0},
}

// SeedDemo 生成演示数据：两个用户、一期已结束并发布作品展的期刊，以及一期正在投稿的期刊。
// 数据库中已有期刊时不做任何修改。
func SeedDemo(gdb *gorm.DB, now time.Time) (SeedSummary, error) {
	var summary SeedSummary

	var count int64
	if err := gdb.Model(&Issue{}).Count(&count).Error; err != nil {
		return summary, fmt.Errorf("count issues: %w", err)
	}
	if count > 0 {
		summary.Skipped = true
		return summary, nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return summary, fmt.Errorf("hash password: %w", err)
	}

	err = gdb.Transaction(func(tx *gorm.DB) error {
		users := []User{
			{Email: "photographer@example.com", Password: string(hashed), Nickname: "Photographer", Role: RoleUser},
			{Email: "flaneur@example.com", Password: string(hashed), Nickname: "Flaneur", Role: RoleUser},
		}
		if err := tx.Create(&users).Error; err != nil {
			return fmt.Errorf("create users: %w", err)
		}
		summary.Users = len(users)

		day := 24 * time.Hour
		past := Issue{
			Title:           "Munich after dark",
			Description:     "City lights, *long exposures* and quiet streets.",
			SubmissionStart: now.Add(-21 * day),
			SubmissionEnd:   now.Add(-14 * day),
			VotingStart:     now.Add(-13 * day),
			VotingEnd:       now.Add(-7 * day),
		}
		current := Issue{
			Title:           "Summer by the Isar",
			Description:     "Show us the river in **summer**.",
			SubmissionStart: now.Add(-2 * day),
			SubmissionEnd:   now.Add(5 * day),
			VotingStart:     now.Add(6 * day),
			VotingEnd:       now.Add(9 * day),
		}
		if err := tx.Create(&past).Error; err != nil {
			return fmt.Errorf("create issue: %w", err)
		}
		if err := tx.Create(&current).Error; err != nil {
			return fmt.Errorf("create issue: %w", err)
		}
		summary.Issues = 2

		var selected []uint
		for i, photo := range demoPhotos {
			reviewedAt := past.SubmissionEnd.Add(time.Duration(i) * time.Hour)
			sub := Submission{
				UserID:      users[i%len(users)].ID,
				IssueID:     past.ID,
				ImageURL:    fmt.Sprintf("https://picsum.photos/seed/munich-%d/%d/%d", i+1, photo.width, photo.height),
				ImageWidth:  photo.width,
				ImageHeight: photo.height,
				Description: photo.description,
				Status:      photo.status,
				VoteCount:   photo.votes,
				SubmittedAt: past.SubmissionStart.Add(time.Duration(i+1) * time.Hour),
				ReviewedAt:  &reviewedAt,
			}
			if err := tx.Create(&sub).Error; err != nil {
				return fmt.Errorf("create submission: %w", err)
			}
			if sub.Status == SubmissionStatusSelected {
				selected = append(selected, sub.ID)
			}
			summary.Submissions++
		}

		config := GalleryIssueConfig{
			IssueID:       past.ID,
			IsPublished:   true,
			CoverImageURL: "https://picsum.photos/seed/munich-1/1600/1067",
			CustomTitle:   past.Title,
		}
		if err := tx.Create(&config).Error; err != nil {
			return fmt.Errorf("create gallery config: %w", err)
		}
		for idx, id := range selected {
			order := GallerySubmissionOrder{ConfigID: config.ID, SubmissionID: id, DisplayOrder: idx}
			if err := tx.Create(&order).Error; err != nil {
				return fmt.Errorf("create gallery order: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return SeedSummary{}, err
	}
	return summary, nil
}
