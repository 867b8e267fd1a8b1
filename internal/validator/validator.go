// Package validator checks event input against the field definitions and the
// cross-field rules of recurring events. Problems are reported per field.
package validator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lomoval/sked/internal/event"
	"github.com/lomoval/sked/internal/form"
)

// Errors maps a persisted field name to a message.
type Errors map[string]string

// Add keeps the first message reported for a field.
func (e Errors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

func (e Errors) Merge(other Errors) {
	for f, m := range other {
		e.Add(f, m)
	}
}

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "invalid event: " + strings.Join(parts, "; ")
}

type Result struct {
	Valid  bool
	Errors Errors
}

// Err returns the errors as an error, or nil for a valid result.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return r.Errors
}

// LeadTimeInput is the reminder lead time of one member as entered:
// a number of units. Zero Num with empty Unit means not set.
type LeadTimeInput struct {
	MemberID string
	Num      int
	Unit     event.LeadTimeUnit
}

func (l LeadTimeInput) set() bool {
	return l.Num != 0 || l.Unit != ""
}

// Validate checks def and lead. On success the member lead time is derived
// from lead and written to def; on failure def is left untouched.
func Validate(def *event.Definition, lead LeadTimeInput, defs form.Table) Result {
	errs := make(Errors)
	if def == nil {
		errs.Add(form.FieldLabel, "is required")
		errs.Add(form.FieldStartsAt, "is required")
		return Result{Errors: errs}
	}

	checkRequired(def, defs, errs)
	checkOptions(def, defs, errs)
	checkRecurrence(def, errs)
	checkLeadTime(lead, defs, errs)

	if len(errs) > 0 {
		return Result{Errors: errs}
	}
	adjust(def, lead)
	return Result{Valid: true, Errors: errs}
}

func checkRequired(def *event.Definition, defs form.Table, errs Errors) {
	label := strings.TrimSpace(def.Label)
	if label == "" {
		errs.Add(form.FieldLabel, "is required")
	} else if limit := defs.MaxLength(form.FieldLabel); limit > 0 && utf8.RuneCountInString(label) > limit {
		errs.Add(form.FieldLabel, fmt.Sprintf("must be at most %d characters", limit))
	}
	if def.StartsAt.IsZero() {
		errs.Add(form.FieldStartsAt, "is required")
	}
}

func checkOptions(def *event.Definition, defs form.Table, errs Errors) {
	switch {
	case def.DurationMinutes < 0:
		errs.Add(form.FieldDuration, "must not be negative")
	case def.DurationMinutes > 0 && !defs.Allows(form.FieldDuration, strconv.Itoa(def.DurationMinutes)):
		errs.Add(form.FieldDuration, "is not an allowed duration")
	}

	switch {
	case def.Frequency < 0:
		errs.Add(form.FieldFrequency, "must be positive")
	case def.Frequency > 0 && !defs.Allows(form.FieldFrequency, strconv.Itoa(def.Frequency)):
		errs.Add(form.FieldFrequency, "is not an allowed frequency")
	}

	if !def.Interval.Valid() {
		errs.Add(form.FieldInterval, fmt.Sprintf("unknown interval %q", def.Interval))
	} else if def.Recurring() && !defs.Allows(form.FieldInterval, string(def.Interval)) {
		errs.Add(form.FieldInterval, "is not an allowed interval")
	}

	for _, l := range def.Weekdays.Labels() {
		if !defs.Allows(form.FieldWeekdays, l) {
			errs.Add(form.FieldWeekdays, fmt.Sprintf("%s is not an allowed weekday", l))
		}
	}
}

func checkRecurrence(def *event.Definition, errs Errors) {
	once := !def.Recurring()
	if once && def.Interval.Valid() {
		if def.Frequency > 0 {
			errs.Add(form.FieldFrequency, "requires a repeat interval")
		}
		if !def.Weekdays.Empty() {
			errs.Add(form.FieldWeekdays, "is only allowed for repeating events")
		}
		if def.HasEnd() {
			errs.Add(form.FieldEndsAt, "is only allowed for repeating events")
		}
	}

	if def.HasEnd() {
		if def.Frequency == 0 {
			errs.Add(form.FieldFrequency, "is required when a repeat end is set")
		}
		if once {
			errs.Add(form.FieldInterval, "is required when a repeat end is set")
		}
		if !def.StartsAt.IsZero() && def.EndsAt.Before(def.StartsAt) {
			errs.Add(form.FieldEndsAt, "must not be before the start")
		}
	}

	if def.Interval == event.IntervalDaily && !def.Weekdays.Empty() {
		errs.Add(form.FieldWeekdays, "must be empty for daily events")
	}
}

func checkLeadTime(lead LeadTimeInput, defs form.Table, errs Errors) {
	if !lead.set() {
		return
	}
	switch {
	case lead.Num <= 0:
		errs.Add(form.FieldLeadTimeNum, "must be a positive number")
	case lead.Unit == "":
		errs.Add(form.FieldLeadTimeUnit, "is required with a lead time")
	}
	if lead.Unit != "" {
		if _, ok := lead.Unit.Minutes(); !ok || !defs.Allows(form.FieldLeadTimeUnit, string(lead.Unit)) {
			errs.Add(form.FieldLeadTimeUnit, fmt.Sprintf("unknown unit %q", lead.Unit))
		}
	}
	if lead.MemberID == "" {
		errs.Add(form.FieldLeadTimeNum, "requires a member")
	}
}

// adjust recomputes derived fields.
func adjust(def *event.Definition, lead LeadTimeInput) {
	if def.Interval == "" {
		def.Interval = event.IntervalOnce
	}
	if lead.MemberID == "" {
		return
	}
	minutes := 0
	if lead.set() {
		factor, _ := lead.Unit.Minutes()
		minutes = lead.Num * factor
	}
	m, ok := def.Members[lead.MemberID]
	if !ok && minutes == 0 {
		return
	}
	if def.Members == nil {
		def.Members = make(map[string]event.Member)
	}
	m.LeadTimeMinutes = minutes
	def.Members[lead.MemberID] = m
}
