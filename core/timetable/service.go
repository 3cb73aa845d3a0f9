package timetable

import (
	"context"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tobias-barakaa/newschool-sub008/core"
)

// NowFunc is mockable in tests.
var NowFunc = time.Now

type (
	Deps struct {
		Cache   Cache
		Seed    State
		Logger  core.Logger
		MailSvc core.EmailService // optional
		AlertTo []mail.Address    // conflict alert recipients
		Slot    string
	}

	ServiceInterface interface {
		State() State
		UpdateMainTimetable(ctx context.Context, patch Patch) (State, error)
		SetCell(ctx context.Context, key CellKey, a CellAssignment) (State, error)
		ClearCell(ctx context.Context, key CellKey) (State, error)
		ResetTimetable(ctx context.Context) (State, error)
		LoadMockData(ctx context.Context) (State, error)
		ForceReloadMockData(ctx context.Context) (State, error)
		SyncTeacherTimetable(ctx context.Context) (TeacherView, error)
		UpdateTeacherTimetable(ctx context.Context, tt TeacherTimetable) (TeacherView, error)
		TeacherTimetable() TeacherView
		Merged(grade string) map[CellKey]CellAssignment
		Conflicts() map[CellKey]Conflict
		ConflictCount() int
		TeacherConflictCount(teacher string) int
		Stats(grade string) Stats
	}

	Service struct {
		cache   Cache
		seed    State
		logger  core.Logger
		mailSvc core.EmailService
		alertTo []mail.Address
		slot    string

		mu       sync.RWMutex
		state    State
		pinned   *TeacherTimetable
		revision uint64

		memoMu sync.Mutex
		memo   views
	}

	// views caches derived values of one revision.
	views struct {
		revision  uint64
		merged    map[string]map[CellKey]CellAssignment
		conflicts map[CellKey]Conflict
		stats     map[string]Stats
		teachers  *TeacherTimetable
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(deps Deps) *Service {
	svc := &Service{
		cache:   deps.Cache,
		seed:    deps.Seed.Clone(),
		logger:  deps.Logger,
		mailSvc: deps.MailSvc,
		alertTo: deps.AlertTo,
		slot:    deps.Slot,
	}
	if svc.logger == nil {
		svc.logger = core.NopLogger
	}
	if svc.slot == "" {
		svc.slot = DefaultSlot
	}
	svc.state = svc.seed.Clone()
	return svc
}

// Init restores the state from the cache slot. The seed fixture is used when the slot is empty,
// unreadable or holds an incompatible snapshot; in the empty and incompatible cases it is written
// back. Only write failures are returned.
func (svc *Service) Init(ctx context.Context) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	data, err := svc.cache.Get(ctx, svc.slot)
	if err == nil {
		snap, err := DecodeSnapshot(data)
		if err == nil {
			svc.state = snap.MainTimetable
			svc.pinned = snap.Pinned
			svc.revision++
			svc.logger.Info("timetable: restored snapshot " + snap.Revision)
			return nil
		}
		svc.logger.Warn("timetable: discarding cached snapshot", err)
	} else if errors.Cause(err) != ErrCacheMiss {
		// leave the slot alone, it may be readable again later
		svc.logger.Warn("timetable: reading cache slot "+svc.slot, err)
		svc.state = svc.seed.Clone()
		svc.pinned = nil
		svc.revision++
		return nil
	}

	svc.state = svc.seed.Clone()
	svc.pinned = nil
	svc.revision++
	return svc.persistLocked(ctx, "init")
}

// State returns a copy of the main timetable.
func (svc *Service) State() State {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.state.Clone()
}

// Revision increases on every change of the state.
func (svc *Service) Revision() uint64 {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.revision
}

// Mutations

// UpdateMainTimetable applies patch and stamps LastUpdated.
func (svc *Service) UpdateMainTimetable(ctx context.Context, patch Patch) (State, error) {
	return svc.mutate(ctx, "update", func(st *State) {
		patch.apply(st)
		st.LastUpdated = NowFunc().UTC()
	})
}

// SetCell assigns one cell.
func (svc *Service) SetCell(ctx context.Context, key CellKey, a CellAssignment) (State, error) {
	return svc.mutate(ctx, "set cell", func(st *State) {
		if st.Subjects == nil {
			st.Subjects = make(map[CellKey]CellAssignment)
		}
		st.Subjects[key] = a
		st.LastUpdated = NowFunc().UTC()
	})
}

// ClearCell frees one cell.
func (svc *Service) ClearCell(ctx context.Context, key CellKey) (State, error) {
	return svc.mutate(ctx, "clear cell", func(st *State) {
		delete(st.Subjects, key)
		st.LastUpdated = NowFunc().UTC()
	})
}

// ResetTimetable replaces the whole state with the seed fixture and drops any pinned teacher view.
func (svc *Service) ResetTimetable(ctx context.Context) (State, error) {
	return svc.reseed(ctx, "reset")
}

// LoadMockData reseeds the state from the fixture.
func (svc *Service) LoadMockData(ctx context.Context) (State, error) {
	return svc.reseed(ctx, "load mock data")
}

// ForceReloadMockData clears the cache slot before reseeding, so a stale snapshot
// cannot survive a failed write.
func (svc *Service) ForceReloadMockData(ctx context.Context) (State, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	var clearErr error
	if err := svc.cache.Delete(ctx, svc.slot); err != nil {
		svc.logger.Error("timetable: clearing cache slot "+svc.slot, err)
		clearErr = &PersistError{Op: "force reload", Err: errors.Wrap(err, "clearing cache slot")}
	}
	st, err := svc.reseedLocked(ctx, "force reload")
	if err == nil {
		err = clearErr
	}
	return st, err
}

// SyncTeacherTimetable drops the pinned teacher view so the derived one is served again.
// The main state is untouched.
func (svc *Service) SyncTeacherTimetable(ctx context.Context) (TeacherView, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.pinned == nil {
		return TeacherView{Source: SourceDerived, Timetable: svc.teachersLocked()}, nil
	}
	svc.pinned = nil
	err := svc.persistLocked(ctx, "sync teachers")
	return TeacherView{Source: SourceDerived, Timetable: svc.teachersLocked()}, err
}

// UpdateTeacherTimetable pins tt as the served teacher view until the next sync or reset.
// The derived view keeps being computed from the main state.
func (svc *Service) UpdateTeacherTimetable(ctx context.Context, tt TeacherTimetable) (TeacherView, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if tt.LastUpdated.IsZero() {
		tt.LastUpdated = NowFunc().UTC()
	}
	svc.pinned = &tt
	err := svc.persistLocked(ctx, "pin teachers")
	return TeacherView{Source: SourcePinned, Timetable: tt}, err
}

// Reads. Returned maps are shared between callers and must not be modified.

// TeacherTimetable returns the pinned teacher view if any, the derived one otherwise.
func (svc *Service) TeacherTimetable() TeacherView {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	if svc.pinned != nil {
		return TeacherView{Source: SourcePinned, Timetable: *svc.pinned}
	}
	return TeacherView{Source: SourceDerived, Timetable: svc.teachersLocked()}
}

// DerivedTeacherTimetable ignores any pinned view.
func (svc *Service) DerivedTeacherTimetable() TeacherTimetable {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.teachersLocked()
}

// Merged returns the cells with breaks replicated under grade.
func (svc *Service) Merged(grade string) map[CellKey]CellAssignment {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.mergedLocked(grade)
}

func (svc *Service) Conflicts() map[CellKey]Conflict {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.conflictsLocked()
}

func (svc *Service) ConflictCount() int {
	return ConflictCount(svc.Conflicts())
}

func (svc *Service) TeacherConflictCount(teacher string) int {
	return TeacherConflictCount(svc.Conflicts(), teacher)
}

// Stats summarises the cells of grade, its breaks merged in. An empty grade covers every cell.
func (svc *Service) Stats(grade string) Stats {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	svc.memoMu.Lock()
	defer svc.memoMu.Unlock()
	svc.memoResetLocked()
	if s, ok := svc.memo.stats[grade]; ok {
		return s
	}

	subjects := svc.state.Subjects
	if grade != "" {
		subjects = FilterGrade(svc.mergedMemoLocked(grade), grade)
	}
	s := ComputeStats(StatsInput{
		Subjects:  subjects,
		Breaks:    svc.state.Breaks,
		TimeSlots: svc.state.TimeSlots,
		Days:      svc.state.Days,
	})
	svc.memo.stats[grade] = s
	return s
}

// Internals. *Locked methods expect svc.mu to be held.

func (svc *Service) mutate(ctx context.Context, op string, fn func(st *State)) (State, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	before := len(svc.conflictsLocked())
	fn(&svc.state)
	svc.revision++
	err := svc.persistLocked(ctx, op)
	svc.alertLocked(before)
	return svc.state.Clone(), err
}

func (svc *Service) reseed(ctx context.Context, op string) (State, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.reseedLocked(ctx, op)
}

func (svc *Service) reseedLocked(ctx context.Context, op string) (State, error) {
	before := len(svc.conflictsLocked())
	svc.state = svc.seed.Clone()
	svc.pinned = nil
	svc.revision++
	err := svc.persistLocked(ctx, op)
	svc.alertLocked(before)
	return svc.state.Clone(), err
}

// persistLocked writes the full snapshot. The in-memory state stays authoritative when it fails.
func (svc *Service) persistLocked(ctx context.Context, op string) error {
	data, err := EncodeSnapshot(Snapshot{
		Version:       SnapshotVersion,
		Revision:      uuid.NewString(),
		MainTimetable: svc.state,
		Pinned:        svc.pinned,
		SavedAt:       NowFunc().UTC(),
	})
	if err == nil {
		err = svc.cache.Put(ctx, svc.slot, data)
	}
	if err != nil {
		svc.logger.Error("timetable: persisting after "+op, err)
		return &PersistError{Op: op, Err: err}
	}
	return nil
}

func (svc *Service) memoResetLocked() {
	if svc.memo.revision == svc.revision && svc.memo.merged != nil {
		return
	}
	svc.memo = views{
		revision: svc.revision,
		merged:   make(map[string]map[CellKey]CellAssignment),
		stats:    make(map[string]Stats),
	}
}

func (svc *Service) mergedLocked(grade string) map[CellKey]CellAssignment {
	svc.memoMu.Lock()
	defer svc.memoMu.Unlock()
	svc.memoResetLocked()
	return svc.mergedMemoLocked(grade)
}

// mergedMemoLocked expects svc.memoMu to be held as well.
func (svc *Service) mergedMemoLocked(grade string) map[CellKey]CellAssignment {
	if m, ok := svc.memo.merged[grade]; ok {
		return m
	}
	m := MergeBreaks(svc.state.Subjects, svc.state.Breaks, grade)
	svc.memo.merged[grade] = m
	return m
}

func (svc *Service) conflictsLocked() map[CellKey]Conflict {
	svc.memoMu.Lock()
	defer svc.memoMu.Unlock()
	svc.memoResetLocked()
	if svc.memo.conflicts == nil {
		svc.memo.conflicts = DetectConflicts(svc.state.Subjects, svc.state.Breaks)
	}
	return svc.memo.conflicts
}

func (svc *Service) teachersLocked() TeacherTimetable {
	svc.memoMu.Lock()
	defer svc.memoMu.Unlock()
	svc.memoResetLocked()
	if svc.memo.teachers == nil {
		tt := ProjectTeachers(svc.state)
		svc.memo.teachers = &tt
	}
	return *svc.memo.teachers
}
