package pagination

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type row struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
}

func (r row) CursorKey() (time.Time, uuid.UUID) { return r.CreatedAt, r.ID }

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
}

func TestCursorRoundTrip(t *testing.T) {
	want := Cursor{CreatedAt: time.Date(2026, 3, 1, 8, 30, 0, 123, time.UTC), ID: uuid.New()}
	token := EncodeCursor(want)
	assert.NotContains(t, token, "=")

	got, err := ParseCursor(token)
	require.NoError(t, err)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, want.ID, got.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	blank, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, blank)

	for _, raw := range []string{
		"!!!",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("yesterday|" + uuid.NewString())),
		base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano) + "|nope")),
	} {
		_, err := ParseCursor(raw)
		assert.ErrorIs(t, err, errMalformedCursor, raw)
	}
}

func TestNewestWalksEveryRowOnce(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&row{}))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 7 {
		// two rows share each timestamp so the id tiebreak is exercised
		require.NoError(t, conn.Create(&row{ID: uuid.New(), CreatedAt: base.Add(time.Duration(i/2) * time.Minute)}).Error)
	}

	seen := map[uuid.UUID]bool{}
	params := Params{Limit: 3}
	for pages := 0; ; pages++ {
		require.Less(t, pages, 5, "pagination did not terminate")
		query, err := Newest(conn.Model(&row{}), params)
		require.NoError(t, err)

		var rows []row
		require.NoError(t, query.Find(&rows).Error)
		page, next := Page(rows, params)
		for _, r := range page {
			assert.False(t, seen[r.ID], fmt.Sprintf("row %s returned twice", r.ID))
			seen[r.ID] = true
		}
		if next == nil {
			break
		}
		params.Cursor = EncodeCursor(*next)
	}
	assert.Len(t, seen, 7)
}

func TestNewestRejectsBadCursor(t *testing.T) {
	_, err := Newest(&gorm.DB{}, Params{Cursor: "%%%"})
	assert.Error(t, err)
}
