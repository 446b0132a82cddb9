package db

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/munichweekly/internal/config"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:db-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := Open(config.DatabaseSettings{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(gdb) })
	return gdb
}

func TestInitCreatesSQLiteFileAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "munichweekly.db")

	gdb, err := Init(config.DatabaseSettings{Driver: "sqlite", DSN: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(gdb) })

	for _, model := range Models() {
		require.True(t, gdb.Migrator().HasTable(model), "missing table for %T", model)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseSettings{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
}

func TestPingPostgresConnection(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	mock.ExpectPing()
	require.NoError(t, Ping(gdb))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPingWithoutDatabase(t *testing.T) {
	require.Error(t, Ping(nil))
}

func TestEnsureAdmin(t *testing.T) {
	gdb := openMemoryDB(t)
	require.NoError(t, Migrate(gdb))

	created, err := EnsureAdmin(gdb, " Admin@Example.com ", "s3cret-pass")
	require.NoError(t, err)
	require.True(t, created)

	var admin User
	require.NoError(t, gdb.Where("email = ?", "admin@example.com").First(&admin).Error)
	require.Equal(t, RoleAdmin, admin.Role)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte("s3cret-pass")))

	created, err = EnsureAdmin(gdb, "admin@example.com", "another")
	require.NoError(t, err)
	require.False(t, created)

	created, err = EnsureAdmin(gdb, "", "")
	require.NoError(t, err)
	require.False(t, created)
}

func TestEnsureAdminPromotesExistingUser(t *testing.T) {
	gdb := openMemoryDB(t)
	require.NoError(t, Migrate(gdb))
	require.NoError(t, gdb.Create(&User{Email: "member@example.com", Password: "hash", Role: RoleUser}).Error)

	_, err := EnsureAdmin(gdb, "member@example.com", "whatever")
	require.NoError(t, err)

	var user User
	require.NoError(t, gdb.Where("email = ?", "member@example.com").First(&user).Error)
	require.True(t, user.IsAdmin())
}

func TestIssuePhase(t *testing.T) {
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	issue := Issue{
		SubmissionStart: base,
		SubmissionEnd:   base.Add(5 * 24 * time.Hour),
		VotingStart:     base.Add(6 * 24 * time.Hour),
		VotingEnd:       base.Add(8 * 24 * time.Hour),
	}

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{name: "before", now: base.Add(-time.Hour), want: IssuePhaseUpcoming},
		{name: "submission start boundary", now: base, want: IssuePhaseSubmission},
		{name: "submission end boundary", now: base.Add(5 * 24 * time.Hour), want: IssuePhaseSubmission},
		{name: "review gap", now: base.Add(5*24*time.Hour + time.Hour), want: IssuePhaseReview},
		{name: "voting", now: base.Add(7 * 24 * time.Hour), want: IssuePhaseVoting},
		{name: "closed", now: base.Add(9 * 24 * time.Hour), want: IssuePhaseClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := issue.Phase(tt.now); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSeedDemoCreatesMixedAspectGallery(t *testing.T) {
	gdb := openMemoryDB(t)
	require.NoError(t, Migrate(gdb))
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)

	summary, err := SeedDemo(gdb, now)
	require.NoError(t, err)
	require.False(t, summary.Skipped)
	require.Equal(t, 2, summary.Issues)
	require.Equal(t, len(demoPhotos), summary.Submissions)

	var subs []Submission
	require.NoError(t, gdb.Find(&subs).Error)
	hasLandscape, hasPortrait, hasSquare := false, false, false
	for _, sub := range subs {
		require.Positive(t, sub.ImageWidth)
		require.Positive(t, sub.ImageHeight)
		ratio := float64(sub.ImageWidth) / float64(sub.ImageHeight)
		switch {
		case ratio > 1.15:
			hasLandscape = true
		case ratio < 0.9:
			hasPortrait = true
		default:
			hasSquare = true
		}
	}
	require.True(t, hasLandscape && hasPortrait && hasSquare, "expected landscape, portrait and square photos")

	var orders int64
	require.NoError(t, gdb.Model(&GallerySubmissionOrder{}).Count(&orders).Error)
	require.EqualValues(t, 5, orders)

	var current Issue
	require.NoError(t, gdb.Where("title = ?", "Summer by the Isar").First(&current).Error)
	require.Equal(t, IssuePhaseSubmission, current.Phase(now))

	again, err := SeedDemo(gdb, now)
	require.NoError(t, err)
	require.True(t, again.Skipped)
}
