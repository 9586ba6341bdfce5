package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-ranking/internal/domain/ledger"
	"github.com/alem-hub/progress-ranking/internal/domain/shared"
	"github.com/alem-hub/progress-ranking/internal/infrastructure/persistence/memory"
)

const studentA = "0f8fad5b-d9cb-469f-a165-70867728950e"

var day = time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)

// flakyStore wraps a store and fails selected calls.
type flakyStore struct {
	ledger.Store

	mu         sync.Mutex
	failFind   int
	failInsert int
	failDelete int
	insertErr  error
	calls      map[string]int
}

func newFlakyStore(inner ledger.Store) *flakyStore {
	return &flakyStore{Store: inner, calls: make(map[string]int)}
}

func (f *flakyStore) take(counter *int, op string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if *counter > 0 {
		*counter--
		return true
	}
	return false
}

func (f *flakyStore) FindEnthusiasmRecords(ctx context.Context, studentID string, date time.Time) ([]ledger.PointRecord, error) {
	if f.take(&f.failFind, "find") {
		return nil, shared.ErrLedgerStoreUnavailable
	}
	return f.Store.FindEnthusiasmRecords(ctx, studentID, date)
}

func (f *flakyStore) InsertRecord(ctx context.Context, r ledger.PointRecord) (ledger.PointRecord, error) {
	if f.take(&f.failInsert, "insert") {
		if f.insertErr != nil {
			return ledger.PointRecord{}, f.insertErr
		}
		return ledger.PointRecord{}, shared.ErrLedgerStoreUnavailable
	}
	return f.Store.InsertRecord(ctx, r)
}

func (f *flakyStore) DeleteEnthusiasmRecords(ctx context.Context, studentID string, date time.Time) (int, error) {
	if f.take(&f.failDelete, "delete") {
		return 0, shared.ErrLedgerStoreUnavailable
	}
	return f.Store.DeleteEnthusiasmRecords(ctx, studentID, date)
}

func enthusiasmCount(t *testing.T, store ledger.Store, studentID string, date time.Time) int {
	t.Helper()
	records, err := store.FindEnthusiasmRecords(context.Background(), studentID, date)
	require.NoError(t, err)
	return len(records)
}

func TestSync_PresentAwardsOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPointStore()
	s := ledger.NewSynchronizer(store, time.UTC, nil)

	outcome, err := s.Sync(ctx, studentA, day, ledger.StatusPresent)
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeAwarded, outcome)

	records, err := store.FindEnthusiasmRecords(ctx, studentA, day)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Points)
	assert.Equal(t, ledger.ReasonAttendance, records[0].Reason)
	assert.Equal(t, ledger.PointTypeEnthusiasm, records[0].PointType)
	assert.NotEmpty(t, records[0].ID)
}

func TestSync_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPointStore()
	s := ledger.NewSynchronizer(store, time.UTC, nil)

	for i := 0; i < 5; i++ {
		_, err := s.Sync(ctx, studentA, day, ledger.StatusPresent)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, enthusiasmCount(t, store, studentA, day))

	outcome, err := s.Sync(ctx, studentA, day, ledger.StatusPresent)
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeUnchanged, outcome)

	for i := 0; i < 3; i++ {
		_, err := s.Sync(ctx, studentA, day, ledger.StatusAbsent)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, enthusiasmCount(t, store, studentA, day))
}

func TestSync_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPointStore()
	s := ledger.NewSynchronizer(store, time.UTC, nil)

	outcome, err := s.Sync(ctx, studentA, day, ledger.StatusPresent)
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeAwarded, outcome)

	outcome, err = s.Sync(ctx, studentA, day, ledger.StatusAbsent)
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeRevoked, outcome)
	assert.Equal(t, 0, enthusiasmCount(t, store, studentA, day))

	outcome, err = s.Sync(ctx, studentA, day, ledger.StatusPresent)
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeAwarded, outcome)
	assert.Equal(t, 1, enthusiasmCount(t, store, studentA, day))
}

func TestSync_AbsentWithoutRecordStillDeletes(t *testing.T) {
	store := newFlakyStore(memory.NewPointStore())
	s := ledger.NewSynchronizer(store, time.UTC, nil)

	outcome, err := s.Sync(context.Background(), studentA, day, ledger.StatusAbsent)
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeUnchanged, outcome)
	assert.Equal(t, 1, store.calls["delete"])
	assert.Equal(t, 0, store.calls["insert"])
}

func TestSync_NeverTouchesGeneralRecordsOrOtherDates(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPointStore()
	nextDay := day.AddDate(0, 0, 1)
	store.Seed(
		ledger.PointRecord{ID: "general-1", StudentID: studentA, Date: day, PointType: ledger.PointTypeGeneral, Points: 5, Reason: "helped a peer"},
		ledger.PointRecord{ID: "other-day", StudentID: studentA, Date: nextDay, PointType: ledger.PointTypeEnthusiasm, Points: 1, Reason: ledger.ReasonAttendance},
	)
	s := ledger.NewSynchronizer(store, time.UTC, nil)

	_, err := s.Sync(ctx, studentA, day, ledger.StatusPresent)
	require.NoError(t, err)
	_, err = s.Sync(ctx, studentA, day, ledger.StatusAbsent)
	require.NoError(t, err)

	all := store.All()
	require.Len(t, all, 2)
	assert.Equal(t, "general-1", all[0].ID)
	assert.Equal(t, 5, all[0].Points)
	assert.Equal(t, "other-day", all[1].ID)
}

func TestSync_HealsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPointStore()
	store.Seed(
		ledger.NewEnthusiasmRecord(studentA, day),
		ledger.NewEnthusiasmRecord(studentA, day),
		ledger.NewEnthusiasmRecord(studentA, day),
	)
	s := ledger.NewSynchronizer(store, time.UTC, nil)

	res, err := s.Reconcile(ctx, studentA, day, ledger.StatusPresent)
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeHealed, res.Outcome)
	assert.Equal(t, 3, res.Deleted)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, enthusiasmCount(t, store, studentA, day))
}

func TestSync_AbsentRemovesDuplicates(t *testing.T) {
	store := memory.NewPointStore()
	store.Seed(ledger.NewEnthusiasmRecord(studentA, day), ledger.NewEnthusiasmRecord(studentA, day))
	s := ledger.NewSynchronizer(store, time.UTC, nil)

	res, err := s.Reconcile(context.Background(), studentA, day, ledger.StatusAbsent)
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeRevoked, res.Outcome)
	assert.Equal(t, 2, res.Deleted)
	assert.Equal(t, 0, enthusiasmCount(t, store, studentA, day))
}

func TestSync_LostInsertRaceConverges(t *testing.T) {
	inner := memory.NewPointStore()
	store := newFlakyStore(inner)
	store.failInsert = 1
	store.insertErr = shared.ErrPointRecordExists
	s := ledger.NewSynchronizer(store, time.UTC, nil)

	outcome, err := s.Sync(context.Background(), studentA, day, ledger.StatusPresent)
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeUnchanged, outcome)
}

func TestSync_StoreFailuresAreRetryable(t *testing.T) {
	tests := []struct {
		name   string
		status ledger.AttendanceStatus
		seed   int
		setup  func(*flakyStore)
	}{
		{"find fails", ledger.StatusPresent, 0, func(f *flakyStore) { f.failFind = 1 }},
		{"insert fails", ledger.StatusPresent, 0, func(f *flakyStore) { f.failInsert = 1 }},
		{"delete fails", ledger.StatusAbsent, 1, func(f *flakyStore) { f.failDelete = 1 }},
		// Healing deletes the duplicates before inserting, so a failed insert
		// leaves the key empty until the retry.
		{"heal insert fails after delete", ledger.StatusPresent, 2, func(f *flakyStore) { f.failInsert = 1 }},
		{"heal delete fails", ledger.StatusPresent, 3, func(f *flakyStore) { f.failDelete = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			inner := memory.NewPointStore()
			for i := 0; i < tt.seed; i++ {
				inner.Seed(ledger.NewEnthusiasmRecord(studentA, day))
			}
			store := newFlakyStore(inner)
			tt.setup(store)
			s := ledger.NewSynchronizer(store, time.UTC, nil)

			_, err := s.Sync(ctx, studentA, day, tt.status)
			require.Error(t, err)
			assert.True(t, shared.IsRetryable(err))
			assert.True(t, errors.Is(err, shared.ErrServiceUnavailable))

			// The retry converges.
			_, err = s.Sync(ctx, studentA, day, tt.status)
			require.NoError(t, err)

			records, err := inner.FindEnthusiasmRecords(ctx, studentA, day)
			require.NoError(t, err)
			if tt.status == ledger.StatusAbsent {
				assert.Empty(t, records)
				return
			}
			require.Len(t, records, 1)
			assert.Equal(t, 1, records[0].Points)
			assert.Equal(t, "attendance", records[0].Reason)
		})
	}
}

func TestSync_RejectsInvalidInput(t *testing.T) {
	store := newFlakyStore(memory.NewPointStore())
	s := ledger.NewSynchronizer(store, time.UTC, nil)
	ctx := context.Background()

	for _, id := range []string{"", "bob", "0F8FAD5BD9CB469FA16570867728950E", "{0f8fad5b-d9cb-469f-a165-70867728950e}"} {
		_, err := s.Sync(ctx, id, day, ledger.StatusPresent)
		assert.True(t, shared.IsValidation(err), id)
	}

	_, err := s.Sync(ctx, studentA, day, ledger.AttendanceStatus(""))
	assert.Error(t, err)

	_, err = s.Sync(ctx, studentA, time.Time{}, ledger.StatusPresent)
	assert.True(t, shared.IsValidation(err))

	_, err = s.Sync(ctx, studentA, day, ledger.AttendanceStatus("late"))
	assert.ErrorIs(t, err, shared.ErrUnknownAttendanceStatus)

	assert.Empty(t, store.calls)
}

func TestSync_NormalizesDatesInLocation(t *testing.T) {
	ctx := context.Background()
	almaty := time.FixedZone("Asia/Almaty", 5*60*60)
	store := memory.NewPointStore()
	s := ledger.NewSynchronizer(store, almaty, nil)

	morning := time.Date(2025, time.March, 14, 9, 0, 0, 0, almaty)
	evening := time.Date(2025, time.March, 14, 22, 30, 0, 0, almaty)

	_, err := s.Sync(ctx, studentA, morning, ledger.StatusPresent)
	require.NoError(t, err)
	outcome, err := s.Sync(ctx, studentA, evening, ledger.StatusPresent)
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeUnchanged, outcome)
	assert.Equal(t, 1, enthusiasmCount(t, store, studentA, day))
}

func TestSync_ConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPointStore()
	s := ledger.NewSynchronizer(store, time.UTC, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Sync(ctx, studentA, day, ledger.StatusPresent)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, enthusiasmCount(t, store, studentA, day))
}

func TestParseAttendanceStatus(t *testing.T) {
	got, err := ledger.ParseAttendanceStatus(" Present ")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPresent, got)

	got, err = ledger.ParseAttendanceStatus("ABSENT")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusAbsent, got)

	_, err = ledger.ParseAttendanceStatus("excused")
	assert.ErrorIs(t, err, shared.ErrUnknownAttendanceStatus)
	assert.True(t, shared.IsValidation(err))
}
