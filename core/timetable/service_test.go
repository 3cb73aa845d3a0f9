package timetable

import (
	"context"
	"net/mail"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobias-barakaa/newschool-sub008/core"
	appfs "github.com/tobias-barakaa/newschool-sub008/fs"
	emailsvc "github.com/tobias-barakaa/newschool-sub008/services/email"
)

var errUnavailable = errors.New("storage unavailable")

// memCache is a Cache whose operations can be made to fail.
type memCache struct {
	mu        sync.Mutex
	slots     map[string][]byte
	getErr    error
	putErr    error
	deleteErr error
	puts      int
	deletes   int
}

func newMemCache() *memCache { return &memCache{slots: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, slot string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	data, ok := c.slots[slot]
	if !ok {
		return nil, ErrCacheMiss
	}
	return data, nil
}

func (c *memCache) Put(_ context.Context, slot string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	if c.putErr != nil {
		return c.putErr
	}
	c.slots[slot] = data
	return nil
}

func (c *memCache) Delete(_ context.Context, slot string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	if c.deleteErr != nil {
		return c.deleteErr
	}
	delete(c.slots, slot)
	return nil
}

func (c *memCache) snapshot(t *testing.T) Snapshot {
	t.Helper()
	c.mu.Lock()
	data, ok := c.slots[DefaultSlot]
	c.mu.Unlock()
	require.True(t, ok, "nothing persisted")
	snap, err := DecodeSnapshot(data)
	require.NoError(t, err)
	return snap
}

func newTestService(t *testing.T, cache Cache) *Service {
	t.Helper()
	svc := NewService(Deps{Cache: cache, Seed: seedState(t)})
	require.NoError(t, svc.Init(context.Background()))
	return svc
}

func mockNow(t *testing.T, now time.Time) {
	t.Helper()
	NowFunc = func() time.Time { return now }
	t.Cleanup(func() { NowFunc = time.Now })
}

func TestService_Init(t *testing.T) {
	ctx := context.Background()
	seed := seedState(t)

	t.Run("empty slot", func(t *testing.T) {
		cache := newMemCache()
		svc := newTestService(t, cache)

		assert.True(t, reflect.DeepEqual(seed, svc.State()))
		assert.Equal(t, 1, cache.puts)
		snap := cache.snapshot(t)
		assert.Equal(t, SnapshotVersion, snap.Version)
		assert.NotEmpty(t, snap.Revision)
		assert.Nil(t, snap.Pinned)
	})

	t.Run("restores", func(t *testing.T) {
		cache := newMemCache()
		svc := newTestService(t, cache)
		k := ck("Grade 9", Friday, "1")
		_, err := svc.SetCell(ctx, k, CellAssignment{Subject: "Music", Teacher: "Ms. Njeri"})
		require.NoError(t, err)
		_, err = svc.UpdateTeacherTimetable(ctx, TeacherTimetable{Teachers: map[string]TeacherSchedule{}})
		require.NoError(t, err)

		restored := newTestService(t, cache)
		assert.Equal(t, "Music", restored.State().Subjects[k].Subject)
		assert.Equal(t, SourcePinned, restored.TeacherTimetable().Source)
	})

	t.Run("incompatible snapshot", func(t *testing.T) {
		cache := newMemCache()
		cache.slots[DefaultSlot] = []byte(`{"version": 2, "mainTimetable": {"subjects": {}}}`)
		svc := newTestService(t, cache)

		assert.Len(t, svc.State().Subjects, 28)
		assert.Equal(t, SnapshotVersion, cache.snapshot(t).Version, "slot is overwritten")
	})

	t.Run("malformed snapshot", func(t *testing.T) {
		cache := newMemCache()
		cache.slots[DefaultSlot] = []byte(`{"version": 1, "mainTimetable": {"subjects": {"Grade 7-9-1": {}}}}`)
		svc := newTestService(t, cache)

		assert.Len(t, svc.State().Subjects, 28)
		assert.Equal(t, 1, cache.puts)
	})

	t.Run("unreadable slot", func(t *testing.T) {
		cache := newMemCache()
		cache.getErr = errUnavailable
		svc := newTestService(t, cache)

		assert.Len(t, svc.State().Subjects, 28)
		assert.Equal(t, 0, cache.puts, "slot is left alone")
	})

	t.Run("write fails", func(t *testing.T) {
		cache := newMemCache()
		cache.putErr = errUnavailable
		svc := NewService(Deps{Cache: cache, Seed: seed})

		err := svc.Init(ctx)
		assert.True(t, IsPersistError(err))
		assert.Len(t, svc.State().Subjects, 28)
	})
}

func TestService_resetRoundTrip(t *testing.T) {
	ctx := context.Background()
	seed := seedState(t)
	svc := newTestService(t, newMemCache())
	mockNow(t, time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC))

	st, err := svc.ResetTimetable(ctx)
	require.NoError(t, err)
	require.True(t, reflect.DeepEqual(seed, st))

	grade := "Grade 9"
	patches := []Patch{
		{SelectedGrade: &grade},
		{Subjects: map[CellKey]CellAssignment{ck("Grade 9", Monday, "1"): {Subject: "Art"}}},
		{Breaks: []Break{{ID: "lunch", Name: "Dinner"}}, GradeSizes: map[string]int{"Grade 9": 1}},
		{Teachers: map[string]TeacherInfo{}, Days: []Day{{Name: "Monday"}}},
	}
	for _, p := range patches {
		_, err = svc.UpdateMainTimetable(ctx, p)
		require.NoError(t, err)
	}
	_, err = svc.SetCell(ctx, ck("Grade 7", Monday, "1"), CellAssignment{Subject: "Music"})
	require.NoError(t, err)
	_, err = svc.UpdateTeacherTimetable(ctx, TeacherTimetable{})
	require.NoError(t, err)
	require.False(t, reflect.DeepEqual(seed, svc.State()))

	st, err = svc.ResetTimetable(ctx)
	require.NoError(t, err)
	assert.True(t, reflect.DeepEqual(seed, st), "reset returns the seed")
	assert.True(t, reflect.DeepEqual(seed, svc.State()))
	assert.Equal(t, SourceDerived, svc.TeacherTimetable().Source, "reset drops the pinned view")

	// the caller's copy is not shared with the service
	st.Subjects[ck("Grade 7", Monday, "1")] = CellAssignment{Subject: "Music"}
	assert.True(t, reflect.DeepEqual(seed, svc.State()))
}

func TestService_mutations(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newMemCache())
	now := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	mockNow(t, now)

	rev := svc.Revision()
	k := ck("Grade 9", Friday, "1")
	st, err := svc.SetCell(ctx, k, CellAssignment{Subject: "Music", Teacher: "Ms. Njeri"})
	require.NoError(t, err)
	assert.Equal(t, "Music", st.Subjects[k].Subject)
	assert.Equal(t, now, st.LastUpdated)
	assert.Greater(t, svc.Revision(), rev)

	st, err = svc.ClearCell(ctx, k)
	require.NoError(t, err)
	_, ok := st.Subjects[k]
	assert.False(t, ok)
	assert.Len(t, st.Subjects, 28)

	grade := "Grade 8"
	st, err = svc.UpdateMainTimetable(ctx, Patch{SelectedGrade: &grade})
	require.NoError(t, err)
	assert.Equal(t, "Grade 8", st.SelectedGrade)
	assert.Len(t, st.Subjects, 28)
}

func TestService_persistError(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	svc := newTestService(t, cache)
	cache.putErr = errUnavailable

	k := ck("Grade 9", Friday, "1")
	st, err := svc.SetCell(ctx, k, CellAssignment{Subject: "Music"})
	require.Error(t, err)
	assert.True(t, IsPersistError(err))
	assert.True(t, errors.Is(err, errUnavailable))
	assert.Contains(t, err.Error(), "changes may not be saved")
	assert.Equal(t, "Music", st.Subjects[k].Subject, "the change is applied in memory")
	assert.Equal(t, "Music", svc.State().Subjects[k].Subject)

	_, err = svc.SyncTeacherTimetable(ctx)
	assert.NoError(t, err, "nothing pinned, nothing to write")

	_, err = svc.UpdateTeacherTimetable(ctx, TeacherTimetable{})
	assert.True(t, IsPersistError(err))
	assert.Equal(t, SourcePinned, svc.TeacherTimetable().Source)
}

func TestService_invalidKeyNotPersisted(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	svc := newTestService(t, cache)

	_, err := svc.SetCell(ctx, CellKey{Grade: "Grade 7", Day: Weekday(12), TimeSlotID: "1"}, CellAssignment{Subject: "Math"})
	assert.True(t, IsPersistError(err))
	assert.Contains(t, err.Error(), ErrInvalidCellKey.Error())
	assert.Len(t, cache.snapshot(t).MainTimetable.Subjects, 28, "the last good snapshot is kept")
}

func TestService_reload(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	svc := newTestService(t, cache)
	k := ck("Grade 9", Friday, "1")

	_, err := svc.SetCell(ctx, k, CellAssignment{Subject: "Music"})
	require.NoError(t, err)
	st, err := svc.LoadMockData(ctx)
	require.NoError(t, err)
	assert.Len(t, st.Subjects, 28)
	assert.Equal(t, 0, cache.deletes)

	_, err = svc.SetCell(ctx, k, CellAssignment{Subject: "Music"})
	require.NoError(t, err)
	st, err = svc.ForceReloadMockData(ctx)
	require.NoError(t, err)
	assert.Len(t, st.Subjects, 28)
	assert.Equal(t, 1, cache.deletes)
	assert.Len(t, cache.snapshot(t).MainTimetable.Subjects, 28)

	cache.deleteErr = errUnavailable
	_, err = svc.SetCell(ctx, k, CellAssignment{Subject: "Music"})
	require.NoError(t, err)
	st, err = svc.ForceReloadMockData(ctx)
	assert.True(t, IsPersistError(err))
	assert.Len(t, st.Subjects, 28, "reseeded anyway")
}

func TestService_teacherView(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newMemCache())

	view := svc.TeacherTimetable()
	assert.Equal(t, SourceDerived, view.Source)
	assert.Equal(t, 6, view.Timetable.Teachers["Mr. Kibe"].TotalClasses)

	pinned := TeacherTimetable{Teachers: map[string]TeacherSchedule{"Mr. Kibe": {Teacher: "Mr. Kibe", TotalClasses: 99}}}
	view, err := svc.UpdateTeacherTimetable(ctx, pinned)
	require.NoError(t, err)
	assert.Equal(t, SourcePinned, view.Source)
	assert.False(t, view.Timetable.LastUpdated.IsZero(), "stamped")

	// the main state keeps moving; the pinned view does not follow
	_, err = svc.ClearCell(ctx, ck("Grade 8", Monday, "1"))
	require.NoError(t, err)
	assert.Equal(t, 99, svc.TeacherTimetable().Timetable.Teachers["Mr. Kibe"].TotalClasses)
	assert.Equal(t, 5, svc.DerivedTeacherTimetable().Teachers["Mr. Kibe"].TotalClasses)

	view, err = svc.SyncTeacherTimetable(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceDerived, view.Source)
	assert.Equal(t, 5, view.Timetable.Teachers["Mr. Kibe"].TotalClasses)
	assert.Equal(t, SourceDerived, svc.TeacherTimetable().Source)
}

func TestService_derivedViews(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newMemCache())

	assert.Equal(t, 2, svc.ConflictCount())
	assert.Equal(t, 2, svc.TeacherConflictCount("Mr. Kibe"))
	assert.Equal(t, 0, svc.TeacherConflictCount("Mr. Otieno"))
	assert.Len(t, svc.Merged("Grade 9"), 28+10)
	assert.Equal(t, "Lunch", svc.Merged("Grade 9")[ck("Grade 9", Wednesday, "8")].Subject)

	all := svc.Stats("")
	assert.Equal(t, 18, all.TotalLessons)
	g8 := svc.Stats("Grade 8")
	assert.Equal(t, 5, g8.TotalLessons)
	assert.Equal(t, 10, g8.TotalBreaks)

	// views follow mutations
	_, err := svc.SetCell(ctx, ck("Grade 9", Monday, "1"), CellAssignment{Subject: "Mathematics", Teacher: "Mr. Kibe"})
	require.NoError(t, err)
	assert.Equal(t, 3, svc.ConflictCount())
	assert.Equal(t, 19, svc.Stats("").TotalLessons)
	assert.Equal(t, 5, svc.Stats("Grade 8").TotalLessons)
	assert.Equal(t, 5, svc.Stats("Grade 9").TotalLessons)
	assert.Equal(t, 7, svc.TeacherTimetable().Timetable.Teachers["Mr. Kibe"].TotalClasses)

	_, err = svc.ClearCell(ctx, ck("Grade 8", Monday, "1"))
	require.NoError(t, err)
	assert.Equal(t, 2, svc.ConflictCount())
	assert.Equal(t, 4, svc.Stats("Grade 8").TotalLessons)
}

func TestService_concurrent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newMemCache())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			k := ck("Grade 10", Weekday(i%5), "1")
			_, _ = svc.SetCell(ctx, k, CellAssignment{Subject: "Math", Teacher: "Mr. Kibe"})
		}(i)
		go func() {
			defer wg.Done()
			_ = svc.Stats("Grade 10")
			_ = svc.Conflicts()
			_ = svc.TeacherTimetable()
			_ = svc.Merged("Grade 10")
		}()
	}
	wg.Wait()

	assert.Len(t, FilterGrade(svc.State().Subjects, "Grade 10"), 5)
	assert.Equal(t, svc.ConflictCount(), ConflictCount(DetectConflicts(svc.State().Subjects, svc.State().Breaks)))
}

func TestService_conflictAlert(t *testing.T) {
	ctx := context.Background()
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, true, core.NopLogger)
	mailSvc := emailsvc.NewConsoleServiceMock(&core.Config{AppName: "Newschool"})

	svc := NewService(Deps{
		Cache:   newMemCache(),
		Seed:    seedState(t),
		MailSvc: mailSvc,
		AlertTo: []mail.Address{{Name: "Deputy", Address: "deputy@school.test"}},
	})
	require.NoError(t, svc.Init(ctx))
	assert.Empty(t, mailSvc.SentMessages(), "init does not alert")

	// no new conflict
	_, err := svc.SetCell(ctx, ck("Grade 9", Friday, "1"), CellAssignment{Subject: "Music", Teacher: "Ms. Njeri"})
	require.NoError(t, err)
	assert.Empty(t, mailSvc.SentMessages())

	_, err = svc.SetCell(ctx, ck("Grade 9", Monday, "1"), CellAssignment{Subject: "Mathematics", Teacher: "Mr. Kibe"})
	require.NoError(t, err)
	sent := mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Timetable conflicts: 3 cells double booked", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "from 2 to 3 double-booked cells")
	assert.Contains(t, sent[0].TextContent, "- Grade 9-1-1: Mr. Kibe (Mathematics) also in Grade 7-1-1, Grade 8-1-1")

	// fewer conflicts
	_, err = svc.ResetTimetable(ctx)
	require.NoError(t, err)
	assert.Len(t, mailSvc.SentMessages(), 1)
}
