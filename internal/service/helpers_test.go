package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/munichweekly/internal/db"
	"github.com/munichweekly/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int64

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:service-%d-%d?mode=memory&cache=shared", time.Now().UnixNano(), atomic.AddInt64(&testDBCounter, 1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func seedUser(t *testing.T, gdb *gorm.DB, email string) *db.User {
	t.Helper()
	user := db.User{Email: email, Password: "x", Nickname: email, Role: db.RoleUser}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return &user
}

// seedIssue 创建一期：投稿窗口为 base 前后各一天，投票窗口紧随其后三天。
func seedIssue(t *testing.T, gdb *gorm.DB, base time.Time) *db.Issue {
	t.Helper()
	issue := db.Issue{
		Title:           "Isar at dawn",
		Description:     "**River** light",
		SubmissionStart: base.Add(-24 * time.Hour),
		SubmissionEnd:   base.Add(24 * time.Hour),
		VotingStart:     base.Add(24 * time.Hour),
		VotingEnd:       base.Add(96 * time.Hour),
	}
	if err := gdb.Create(&issue).Error; err != nil {
		t.Fatalf("failed to seed issue: %v", err)
	}
	return &issue
}

func seedSubmission(t *testing.T, gdb *gorm.DB, userID, issueID uint, status string, votes int, submittedAt time.Time) *db.Submission {
	t.Helper()
	sub := db.Submission{
		UserID:      userID,
		IssueID:     issueID,
		Status:      status,
		VoteCount:   votes,
		SubmittedAt: submittedAt,
		ImageURL:    "https://img.example.com/x.jpg",
		ImageWidth:  1200,
		ImageHeight: 800,
	}
	if err := gdb.Create(&sub).Error; err != nil {
		t.Fatalf("failed to seed submission: %v", err)
	}
	return &sub
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Upload(_ context.Context, object *storage.Object) (*storage.UploadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[object.Key] = object.Data
	return &storage.UploadResult{URL: "https://cdn.example.com/" + object.Key, Key: object.Key}, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type recordingInvalidator struct {
	issues []uint
}

func (r *recordingInvalidator) Invalidate(_ context.Context, issueID uint) error {
	r.issues = append(r.issues, issueID)
	return nil
}
