package visitors_test

import (
	"sync"
	"testing"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"beaconly/internal/testsupport"
	"beaconly/internal/visitors"
)

func TestResolveVisitorConvergesOnOneRow(t *testing.T) {
	dbManager, _, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	db := dbManager.GetConnection()

	fp := visitors.Fingerprint(website.ID, "203.0.113.10", "visitor-abc", "salt")
	now := time.Now().UTC()

	first, err := visitors.ResolveVisitor(db, website.ID, fp, now, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.PageViews)

	second, err := visitors.ResolveVisitor(db, website.ID, fp, now.Add(time.Minute), true)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(2), second.PageViews)

	var count int64
	require.NoError(t, db.Model(&visitors.Visitor{}).Where("website_id = ?", website.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestResolveVisitorSkipsCounterForNonPageViews(t *testing.T) {
	dbManager, _, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	db := dbManager.GetConnection()

	fp := visitors.Fingerprint(website.ID, "203.0.113.10", "visitor-abc", "salt")
	now := time.Now().UTC()

	visitor, err := visitors.ResolveVisitor(db, website.ID, fp, now, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), visitor.PageViews)

	visitor, err = visitors.ResolveVisitor(db, website.ID, fp, now.Add(time.Minute), true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), visitor.PageViews)
}

func TestResolveVisitorLastSeenNeverMovesBackwards(t *testing.T) {
	dbManager, _, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	db := dbManager.GetConnection()

	fp := visitors.Fingerprint(website.ID, "203.0.113.10", "visitor-abc", "salt")
	now := time.Now().UTC().Truncate(time.Second)

	_, err := visitors.ResolveVisitor(db, website.ID, fp, now, true)
	require.NoError(t, err)

	// A late-arriving beacon with an older timestamp must not rewind last_seen_at.
	visitor, err := visitors.ResolveVisitor(db, website.ID, fp, now.Add(-time.Hour), true)
	require.NoError(t, err)
	assert.False(t, visitor.LastSeenAt.Before(now))
}

func TestResolveSessionTracksPageCountAndDuration(t *testing.T) {
	dbManager, _, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	db := dbManager.GetConnection()

	fp := visitors.Fingerprint(website.ID, "203.0.113.10", "visitor-abc", "salt")
	start := time.Now().UTC().Truncate(time.Second)

	visitor, err := visitors.ResolveVisitor(db, website.ID, fp, start, true)
	require.NoError(t, err)

	session, err := visitors.ResolveSession(db, website.ID, visitor.ID, "session-1", start)
	require.NoError(t, err)
	assert.Equal(t, int64(1), session.PageCount)
	assert.Equal(t, int64(0), session.DurationSeconds)

	session, err = visitors.ResolveSession(db, website.ID, visitor.ID, "session-1", start.Add(130*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), session.PageCount)
	assert.Equal(t, int64(130), session.DurationSeconds)

	// A separate token is a separate session even for the same visitor.
	other, err := visitors.ResolveSession(db, website.ID, visitor.ID, "session-2", start.Add(200*time.Second))
	require.NoError(t, err)
	assert.NotEqual(t, session.ID, other.ID)
	assert.Equal(t, int64(1), other.PageCount)
}

func TestSessionIsExpired(t *testing.T) {
	now := time.Now().UTC()
	session := &visitors.Session{LastActivityAt: now.Add(-31 * time.Minute)}

	assert.True(t, session.IsExpired(now, 1800))
	assert.False(t, session.IsExpired(now, 3600))
}

func TestResolveVisitorConvergesUnderConcurrentWrites(t *testing.T) {
	dbManager, logger, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	db := dbManager.GetConnection()

	fp := visitors.Fingerprint(website.ID, "203.0.113.10", "visitor-abc", "salt")
	now := time.Now().UTC()

	// All writers race on the same unseen fingerprint; the ON CONFLICT
	// upsert must converge them onto a single row regardless of order.
	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
				_, err := visitors.ResolveVisitor(tx, website.ID, fp, now.Add(time.Duration(i)*time.Second), true)
				return err
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var rows []visitors.Visitor
	require.NoError(t, db.Where("website_id = ?", website.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(writers), rows[0].PageViews)
}
