package reconcile

import (
	"fmt"

	"github.com/tuckerworks/calsync/pkg/calendar"
)

// Reconcile computes the actions that turn the managed destination events
// into a mirror of the source events. It does no I/O.
//
// Source events are matched to destination events only through their stable
// key. When several source events share a key the last one in input order is
// mirrored and the key is listed in Plan.Duplicates. When several destination
// events carry the same key the first is kept as the match and the others are
// handled like orphans, so the destination converges to a single copy.
//
// Orphans that ended before opts.Reference are preserved, all other orphans
// are deleted. An orphan whose end cannot be resolved is preserved and
// reported as a warning.
func Reconcile(sources []calendar.Event, synced []calendar.SyncedEvent, opts Options) Plan {
	loc := opts.Location
	if loc == nil {
		loc = opts.Reference.Location()
	}
	plan := Plan{}

	bySourceKey := make(map[calendar.StableKey]calendar.Event, len(sources))
	order := make([]calendar.StableKey, 0, len(sources))
	for _, source := range sources {
		key, err := calendar.DeriveKey(source)
		if err != nil {
			plan.Warnings = append(plan.Warnings, err)
		}
		if _, seen := bySourceKey[key]; seen {
			plan.Duplicates = appendUnique(plan.Duplicates, key)
		} else {
			order = append(order, key)
		}
		bySourceKey[key] = source
	}

	bySyncedKey := make(map[calendar.StableKey]calendar.SyncedEvent, len(synced))
	var orphans []calendar.SyncedEvent
	for _, event := range synced {
		if event.SourceKey == "" {
			continue
		}
		_, seen := bySyncedKey[event.SourceKey]
		_, inSource := bySourceKey[event.SourceKey]
		if seen || !inSource {
			orphans = append(orphans, event)
		}
		if !seen {
			bySyncedKey[event.SourceKey] = event
		}
	}

	for _, key := range order {
		source := bySourceKey[key]
		existing, found := bySyncedKey[key]
		if !found {
			plan.Creates = append(plan.Creates, Action{
				Kind:    KindCreate,
				Key:     key,
				Payload: calendar.NewPayload(source, key, opts.NormalizedTitle),
				Title:   source.Title,
				Start:   source.Start,
			})
			continue
		}
		if calendar.Changed(source, existing) {
			plan.Updates = append(plan.Updates, Action{
				Kind:          KindUpdate,
				Key:           key,
				DestinationID: existing.ID,
				Payload:       calendar.NewPayload(source, key, opts.NormalizedTitle),
				Title:         source.Title,
				Start:         source.Start,
			})
			continue
		}
		plan.Skips = append(plan.Skips, Action{
			Kind:          KindSkip,
			Key:           key,
			DestinationID: existing.ID,
			Title:         source.Title,
			Start:         source.Start,
		})
	}

	for _, orphan := range orphans {
		action := Action{
			Key:           orphan.SourceKey,
			DestinationID: orphan.ID,
			Title:         orphan.Title,
			Start:         orphan.Start,
		}
		past, err := calendar.IsPast(orphan.Event, opts.Reference, loc)
		if err != nil {
			plan.Warnings = append(plan.Warnings, fmt.Errorf("destination event %s: %w", orphan.ID, err))
		}
		if past || err != nil {
			action.Kind = KindPreserve
			plan.Preserves = append(plan.Preserves, action)
			continue
		}
		action.Kind = KindDelete
		plan.Deletes = append(plan.Deletes, action)
	}

	return plan
}

func appendUnique(keys []calendar.StableKey, key calendar.StableKey) []calendar.StableKey {
	for _, k := range keys {
		if k == key {
			return keys
		}
	}
	return append(keys, key)
}
