package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuckerworks/calsync/pkg/calendar"
)

const normalizedTitle = "Tucker Works"

var reference = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func options() Options {
	return Options{NormalizedTitle: normalizedTitle, Reference: reference, Location: time.UTC}
}

func shift(title string, start time.Time, location string) calendar.Event {
	return calendar.Event{
		ID:       "volatile-" + title,
		Title:    title,
		Start:    calendar.DateTime(start),
		End:      calendar.DateTime(start.Add(time.Hour)),
		Location: location,
	}
}

func mirrored(t *testing.T, source calendar.Event, destinationID string) calendar.SyncedEvent {
	t.Helper()
	key, err := calendar.DeriveKey(source)
	require.NoError(t, err)
	return calendar.NewPayload(source, key, normalizedTitle).AsSynced(destinationID)
}

func TestReconcile_ScenarioA_NewEventIsCreated(t *testing.T) {
	// given
	source := shift("Shift A", time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), "Store 1")
	expectedKey, _ := calendar.DeriveKey(source)

	// when
	plan := Reconcile([]calendar.Event{source}, nil, options())

	// then
	require.Len(t, plan.Creates, 1)
	assert.Empty(t, plan.Updates)
	assert.Empty(t, plan.Skips)
	assert.Empty(t, plan.Deletes)
	assert.Empty(t, plan.Preserves)

	create := plan.Creates[0]
	assert.Equal(t, KindCreate, create.Kind)
	assert.Equal(t, expectedKey, create.Key)
	assert.Equal(t, normalizedTitle, create.Payload.Title)
	assert.Equal(t, expectedKey, create.Payload.SourceKey)
	assert.Equal(t, source.Start, create.Payload.Start)
	assert.Equal(t, source.End, create.Payload.End)
	assert.Equal(t, "Store 1", create.Payload.Location)
	assert.Equal(t, "Shift A", create.Title)
}

func TestReconcile_ScenarioB_UnchangedEventIsSkipped(t *testing.T) {
	// given
	source := shift("Shift A", time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), "Store 1")
	existing := mirrored(t, source, "dest-1")
	source.ID = "recreated-by-publisher"

	// when
	plan := Reconcile([]calendar.Event{source}, []calendar.SyncedEvent{existing}, options())

	// then
	require.Len(t, plan.Skips, 1)
	assert.Equal(t, "dest-1", plan.Skips[0].DestinationID)
	assert.Empty(t, plan.Creates)
	assert.Empty(t, plan.Updates)
	assert.Empty(t, plan.Deletes)
}

func TestReconcile_ScenarioC_ChangedEventIsUpdatedInPlace(t *testing.T) {
	// given
	source := shift("Shift A", time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), "Store 2")
	existing := mirrored(t, source, "dest-1")
	// Same key, but the destination copy still shows the old location.
	existing.Location = "Store 1"

	// when
	plan := Reconcile([]calendar.Event{source}, []calendar.SyncedEvent{existing}, options())

	// then
	require.Len(t, plan.Updates, 1)
	update := plan.Updates[0]
	assert.Equal(t, "dest-1", update.DestinationID)
	assert.Equal(t, "Store 2", update.Payload.Location)
	assert.Equal(t, existing.SourceKey, update.Payload.SourceKey)
	assert.Equal(t, normalizedTitle, update.Payload.Title)
	assert.Empty(t, plan.Creates)
	assert.Empty(t, plan.Skips)
	assert.Empty(t, plan.Deletes)
}

func TestReconcile_ScenarioC_DescriptionChangeKeepsKey(t *testing.T) {
	source := shift("Shift A", time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), "Store 1")
	existing := mirrored(t, source, "dest-1")
	source.Description = "Bring keys"

	plan := Reconcile([]calendar.Event{source}, []calendar.SyncedEvent{existing}, options())

	require.Len(t, plan.Updates, 1)
	assert.Equal(t, "Bring keys", plan.Updates[0].Payload.Description)
	assert.Empty(t, plan.Creates)
	assert.Empty(t, plan.Deletes)
}

func TestReconcile_ScenarioD_OrphanRetention(t *testing.T) {
	testCases := []struct {
		name         string
		start        time.Time
		wantDelete   bool
		wantPreserve bool
	}{
		{
			name:         "orphan that ended before reference is preserved",
			start:        reference.Add(-3 * time.Hour),
			wantPreserve: true,
		},
		{
			name:       "orphan ending after reference is deleted",
			start:      reference.Add(3 * time.Hour),
			wantDelete: true,
		},
		{
			name:       "orphan in progress is deleted",
			start:      reference.Add(-30 * time.Minute),
			wantDelete: true,
		},
		{
			name:       "orphan ending exactly at reference is deleted",
			start:      reference.Add(-time.Hour),
			wantDelete: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			gone := mirrored(t, shift("Shift Z", tc.start, "Store 9"), "dest-orphan")

			// when
			plan := Reconcile(nil, []calendar.SyncedEvent{gone}, options())

			// then
			if tc.wantPreserve {
				require.Len(t, plan.Preserves, 1)
				assert.Equal(t, "dest-orphan", plan.Preserves[0].DestinationID)
				assert.Empty(t, plan.Deletes)
			}
			if tc.wantDelete {
				require.Len(t, plan.Deletes, 1)
				assert.Equal(t, "dest-orphan", plan.Deletes[0].DestinationID)
				assert.Empty(t, plan.Preserves)
			}
		})
	}
}

func TestReconcile_OrphanWithoutTimesIsPreservedWithWarning(t *testing.T) {
	broken := calendar.SyncedEvent{
		Event:     calendar.Event{ID: "dest-broken", Title: normalizedTitle},
		SourceKey: "0123456789abcdef",
	}

	plan := Reconcile(nil, []calendar.SyncedEvent{broken}, options())

	require.Len(t, plan.Preserves, 1)
	assert.Empty(t, plan.Deletes)
	require.Len(t, plan.Warnings, 1)
	assert.ErrorIs(t, plan.Warnings[0], calendar.ErrRetentionUnresolved)
}

func TestReconcile_AllDayOrphanUsesConfiguredZone(t *testing.T) {
	// 2024-06-01 08:00 UTC is still 2024-05-31 in Honolulu.
	honolulu, err := time.LoadLocation("Pacific/Honolulu")
	require.NoError(t, err)
	yesterday := calendar.SyncedEvent{
		Event:     calendar.Event{ID: "dest-day", Title: normalizedTitle, Start: calendar.Date(2024, 5, 31)},
		SourceKey: "fedcba9876543210",
	}

	inUTC := Reconcile(nil, []calendar.SyncedEvent{yesterday}, options())
	opts := options()
	opts.Location = honolulu
	inHonolulu := Reconcile(nil, []calendar.SyncedEvent{yesterday}, opts)

	assert.Len(t, inUTC.Preserves, 1)
	assert.Len(t, inHonolulu.Deletes, 1)
}

func TestReconcile_UntaggedDestinationEventsAreIgnored(t *testing.T) {
	manual := calendar.SyncedEvent{
		Event: calendar.Event{ID: "manual", Title: normalizedTitle, Start: calendar.DateTime(reference.Add(time.Hour))},
	}

	plan := Reconcile(nil, []calendar.SyncedEvent{manual}, options())

	assert.True(t, plan.IsNoop())
	assert.Empty(t, plan.Preserves)
	assert.Empty(t, plan.Skips)
}

func TestReconcile_DuplicateSourceEventsLastWins(t *testing.T) {
	// given
	first := shift("Shift A", time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), "Store 1")
	first.Description = "first"
	second := first
	second.ID = "other-uid"
	second.Description = "second"

	// when
	plan := Reconcile([]calendar.Event{first, second}, nil, options())

	// then
	require.Len(t, plan.Creates, 1)
	assert.Equal(t, "second", plan.Creates[0].Payload.Description)
	require.Len(t, plan.Duplicates, 1)
	assert.Equal(t, plan.Creates[0].Key, plan.Duplicates[0])
}

func TestReconcile_DuplicateDestinationCopiesConverge(t *testing.T) {
	// given
	source := shift("Shift A", time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), "Store 1")
	kept := mirrored(t, source, "dest-1")
	extra := mirrored(t, source, "dest-2")

	// when
	plan := Reconcile([]calendar.Event{source}, []calendar.SyncedEvent{kept, extra}, options())

	// then
	require.Len(t, plan.Skips, 1)
	assert.Equal(t, "dest-1", plan.Skips[0].DestinationID)
	require.Len(t, plan.Deletes, 1)
	assert.Equal(t, "dest-2", plan.Deletes[0].DestinationID)
}

func TestReconcile_EventWithoutStartIsCreatedWithWarning(t *testing.T) {
	broken := calendar.Event{ID: "uid-1", Title: "Shift ?"}

	plan := Reconcile([]calendar.Event{broken}, nil, options())

	require.Len(t, plan.Creates, 1)
	require.Len(t, plan.Warnings, 1)
	assert.ErrorIs(t, plan.Warnings[0], calendar.ErrIdentityDerivation)
}

func TestReconcile_MixedPlan(t *testing.T) {
	// given
	day := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	unchanged := shift("Shift A", day, "Store 1")
	moved := shift("Shift B", day.Add(24*time.Hour), "Store 1")
	fresh := shift("Shift C", day.Add(48*time.Hour), "Store 1")
	cancelled := shift("Shift D", day.Add(72*time.Hour), "Store 1")
	history := shift("Shift E", reference.Add(-48*time.Hour), "Store 1")

	movedCopy := mirrored(t, moved, "dest-b")
	movedCopy.Location = "Store 3"
	synced := []calendar.SyncedEvent{
		mirrored(t, unchanged, "dest-a"),
		movedCopy,
		mirrored(t, cancelled, "dest-d"),
		mirrored(t, history, "dest-e"),
	}

	// when
	plan := Reconcile([]calendar.Event{unchanged, moved, fresh}, synced, options())

	// then
	assert.Len(t, plan.Creates, 1)
	assert.Len(t, plan.Updates, 1)
	assert.Len(t, plan.Skips, 1)
	assert.Len(t, plan.Deletes, 1)
	assert.Len(t, plan.Preserves, 1)
	assert.Equal(t, "dest-b", plan.Updates[0].DestinationID)
	assert.Equal(t, "dest-d", plan.Deletes[0].DestinationID)
	assert.Equal(t, "dest-e", plan.Preserves[0].DestinationID)
	assert.Equal(t, 3, plan.Mutations())
}

func TestReconcile_IsIdempotentOnceApplied(t *testing.T) {
	// given
	ctx := context.Background()
	dest := calendar.NewStubCalendar()
	day := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	sources := []calendar.Event{
		shift("Shift A", day, "Store 1"),
		shift("Shift B", day.Add(24*time.Hour), ""),
		{ID: "all-day", Title: "Inventory", Start: calendar.Date(2024, 6, 10), End: calendar.Date(2024, 6, 11)},
	}
	dest.Seed(mirrored(t, shift("Shift X", reference.Add(-24*time.Hour), "Store 1"), "dest-history"))
	dest.Seed(mirrored(t, shift("Shift Y", day.Add(time.Hour), "Store 1"), "dest-cancelled"))

	synced, err := dest.ListManagedEvents(ctx, normalizedTitle)
	require.NoError(t, err)
	first := Reconcile(sources, synced, options())
	report := Apply(ctx, first, dest)
	require.Equal(t, StatusSuccess, report.Status())
	require.Equal(t, 3, report.Created)
	require.Equal(t, 1, report.Deleted)

	// when
	synced, err = dest.ListManagedEvents(ctx, normalizedTitle)
	require.NoError(t, err)
	second := Reconcile(sources, synced, options())

	// then
	assert.True(t, second.IsNoop())
	assert.Len(t, second.Skips, 3)
	assert.Len(t, second.Preserves, 1)
	assert.Equal(t, "dest-history", second.Preserves[0].DestinationID)
}

func TestReconcile_IsDeterministicWithoutMutation(t *testing.T) {
	sources := []calendar.Event{shift("Shift A", time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC), "Store 1")}
	synced := []calendar.SyncedEvent{mirrored(t, shift("Shift Z", reference.Add(time.Hour), ""), "dest-z")}

	first := Reconcile(sources, synced, options())
	second := Reconcile(sources, synced, options())

	assert.Equal(t, first, second)
}
