package internalhttp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lomoval/sked/internal/app"
	"github.com/lomoval/sked/internal/daterange"
	"github.com/lomoval/sked/internal/event"
	"github.com/lomoval/sked/internal/ical"
	"github.com/lomoval/sked/internal/occurrence"
	"github.com/lomoval/sked/internal/storage"
	"github.com/lomoval/sked/internal/validator"
	log "github.com/sirupsen/logrus"
)

const (
	errInternalServerError = "internal server error"
	errEventNotFound       = "event not found"
	maxBodySize            = 1 << 20
	maxRangeDays           = 366
)

type occurrenceView struct {
	EventID     string      `json:"eventId"`
	Label       string      `json:"label"`
	Description string      `json:"description,omitempty"`
	At          time.Time   `json:"at"`
	Ends        time.Time   `json:"ends"`
	Time        string      `json:"time"`
	Anchor      bool        `json:"anchor"`
	Tags        []event.Tag `json:"tags,omitempty"`
}

type dayView struct {
	Date        string           `json:"date"`
	Occurrences []occurrenceView `json:"occurrences"`
}

func toOccurrenceViews(occ []occurrence.Occurrence) []occurrenceView {
	views := make([]occurrenceView, 0, len(occ))
	for _, o := range occ {
		views = append(views, occurrenceView{
			EventID:     o.Event.ID,
			Label:       o.Event.Label,
			Description: o.Event.Description,
			At:          o.At,
			Ends:        o.Ends(),
			Time:        o.Format(""),
			Anchor:      o.Anchor,
			Tags:        o.Event.SortedTags(),
		})
	}
	return views
}

func toDayViews(days []app.DayOccurrences) []dayView {
	views := make([]dayView, 0, len(days))
	for _, d := range days {
		views = append(views, dayView{Date: d.Date.Format("2006-01-02"), Occurrences: toOccurrenceViews(d.Occurrences)})
	}
	return views
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	id, err := s.app.CreateEvent(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request, params map[string]string) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	if err := s.app.UpdateEvent(r.Context(), params["id"], in); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": params["id"]})
}

func (s *Server) removeEvent(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if err := s.app.RemoveEvent(r.Context(), params["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request, params map[string]string) {
	e, err := s.app.GetEvent(r.Context(), params["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validator.Encode(e, r.URL.Query().Get("member")))
}

func (s *Server) occurrencesForDay(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q, errs := parseQuery(r)
	date, err := daterange.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		errs.Add("date", err.Error())
	}
	if len(errs) > 0 {
		writeError(w, errs)
		return
	}
	occ, err := s.app.EventsForDay(r.Context(), date, q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOccurrenceViews(occ))
}

func (s *Server) occurrencesForWeek(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q, errs := parseQuery(r)
	date, err := daterange.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		errs.Add("date", err.Error())
	}
	if len(errs) > 0 {
		writeError(w, errs)
		return
	}
	days, err := s.app.EventsForWeek(r.Context(), date, q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDayViews(days))
}

func (s *Server) occurrencesForMonth(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q, errs := parseQuery(r)
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 1 || year > 9999 {
		errs.Add("year", "must be a year between 1 and 9999")
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		errs.Add("month", "must be a month number between 1 and 12")
	}
	if len(errs) > 0 {
		writeError(w, errs)
		return
	}
	days, err := s.app.EventsForMonth(r.Context(), year, time.Month(month), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDayViews(days))
}

func (s *Server) occurrencesForRange(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q, errs := parseQuery(r)
	start := time.Now().UTC()
	var err error
	if v := r.URL.Query().Get("start"); v != "" {
		if start, err = daterange.ParseDate(v); err != nil {
			errs.Add("start", err.Error())
		}
	}
	// Without an end the range spans the longest allowed window.
	end := start.AddDate(0, 0, maxRangeDays-1)
	if v := r.URL.Query().Get("end"); v != "" {
		if end, err = daterange.ParseDate(v); err != nil {
			errs.Add("end", err.Error())
		}
	}
	if _, ok := errs["start"]; !ok && end.Sub(start) >= maxRangeDays*24*time.Hour {
		errs.Add("end", fmt.Sprintf("range must not exceed %d days", maxRangeDays))
	}
	if len(errs) > 0 {
		writeError(w, errs)
		return
	}
	days, err := s.app.EventsForRange(r.Context(), daterange.New(start, &end), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDayViews(days))
}

func (s *Server) fieldDefinitions(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	table, err := s.app.FieldDefinitions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) calendarFeed(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q, errs := parseQuery(r)
	var from, to time.Time
	var err error
	if v := r.URL.Query().Get("start"); v != "" {
		if from, err = daterange.ParseDate(v); err != nil {
			errs.Add("start", err.Error())
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if to, err = daterange.ParseDate(v); err != nil {
			errs.Add("end", err.Error())
		}
	}
	if len(errs) > 0 {
		writeError(w, errs)
		return
	}

	defs, err := s.app.Definitions(r.Context(), q, from)
	if err != nil {
		writeError(w, err)
		return
	}
	if !to.IsZero() {
		kept := defs[:0]
		for _, d := range defs {
			if d.StartsAt.Before(to.AddDate(0, 0, 1)) {
				kept = append(kept, d)
			}
		}
		defs = kept
	}

	var buf bytes.Buffer
	if err := ical.Write(&buf, defs, ical.Options{MemberID: q.MemberID}); err != nil {
		writeError(w, fmt.Errorf("failed to build calendar feed: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		log.Errorf("failed to write calendar feed: %v", err)
	}
}

// parseQuery reads the view parameters shared by the occurrence endpoints:
// offset in minutes, member, public and repeated tag=id:value.
func parseQuery(r *http.Request) (app.Query, validator.Errors) {
	errs := make(validator.Errors)
	values := r.URL.Query()
	q := app.Query{MemberID: values.Get("member")}

	if v := values.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < -14*60 || offset > 14*60 {
			errs.Add("offset", "must be minutes east of UTC between -840 and 840")
		}
		q.Offset = offset
	}
	if v := values.Get("public"); v != "" {
		public, err := strconv.ParseBool(v)
		if err != nil {
			errs.Add("public", "must be a boolean")
		}
		q.PublicOnly = public
	}
	for _, tag := range values["tag"] {
		id, value, _ := strings.Cut(tag, ":")
		if id == "" {
			errs.Add("tag", "must be id or id:value")
			continue
		}
		if q.Tags == nil {
			q.Tags = make(map[string]string)
		}
		q.Tags[id] = value
	}
	return q, errs
}

func decodeInput(w http.ResponseWriter, r *http.Request) (validator.Input, bool) {
	var in validator.Input
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&in); err != nil {
		writeError(w, validator.Errors{"body": "malformed JSON: " + err.Error()})
		return in, false
	}
	return in, true
}

func writeError(w http.ResponseWriter, err error) {
	var verrs validator.Errors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, map[string]validator.Errors{"errors": verrs})
	case errors.Is(err, storage.ErrNotFoundEvent):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": errEventNotFound})
	default:
		log.Errorf("request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": errInternalServerError})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}
