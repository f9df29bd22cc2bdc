// Package alert picks the pending reminders whose alert instant has come up
// for a viewer. Evaluation is pure; the caller owns the shown set.
package alert

import (
	"sort"
	"time"

	"reminderdesk/internal/domain"
	"reminderdesk/internal/visibility"
)

// Window bounds how far before (Early) and after (Grace) the alert instant a
// reminder still counts as due. Both bounds are inclusive.
type Window struct {
	Early time.Duration
	Grace time.Duration
}

var DefaultWindow = Window{Early: 60 * time.Second, Grace: 300 * time.Second}

// Contains reports whether delta = alertInstant - now falls in the window.
func (w Window) Contains(delta time.Duration) bool {
	return delta <= w.Early && delta >= -w.Grace
}

type Evaluator struct {
	Window   Window
	Location *time.Location
}

func NewEvaluator(w Window, loc *time.Location) Evaluator {
	if loc == nil {
		loc = time.Local
	}
	return Evaluator{Window: w, Location: loc}
}

// Due reports whether a single reminder should alert at now, ignoring the
// shown set.
func (e Evaluator) Due(r domain.Reminder, v domain.Viewer, now time.Time) bool {
	if r.Status != domain.StatusPending || r.Dismissed {
		return false
	}
	at, ok := r.AlertInstant(e.location())
	if !ok {
		return false
	}
	if !visibility.IsRelevant(r, v) {
		return false
	}
	return e.Window.Contains(at.Sub(now))
}

// Evaluate returns, in input order, the ids newly due for v at now. It never
// returns an id present in shown, nor the same id twice.
func (e Evaluator) Evaluate(reminders []domain.Reminder, v domain.Viewer, now time.Time, shown ShownSet) []string {
	var due []string
	seen := make(map[string]struct{})
	for _, r := range reminders {
		if shown.Has(r.ID) {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		if !e.Due(r, v, now) {
			continue
		}
		seen[r.ID] = struct{}{}
		due = append(due, r.ID)
	}
	return due
}

func (e Evaluator) location() *time.Location {
	if e.Location == nil {
		return time.Local
	}
	return e.Location
}

// ShownSet is the per-session record of ids already alerted. It is not safe
// for concurrent use; the session guards it.
type ShownSet map[string]struct{}

func NewShownSet(ids ...string) ShownSet {
	s := make(ShownSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s ShownSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s ShownSet) Add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Forget re-arms an id so it may alert again, e.g. after a snooze.
func (s ShownSet) Forget(id string) {
	delete(s, id)
}

func (s ShownSet) Len() int { return len(s) }

func (s ShownSet) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
