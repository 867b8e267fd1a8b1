// Package form holds the field definitions that event input is checked against:
// the allowed options of select and checkbox fields and text limits.
package form

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/lomoval/sked/internal/event"
	"gopkg.in/yaml.v3"
)

const (
	FieldID           = "id"
	FieldLabel        = "label"
	FieldStartsAt     = "starts_at"
	FieldDuration     = "duration"
	FieldEndsAt       = "ends_at"
	FieldFrequency    = "frequency"
	FieldInterval     = "interval"
	FieldWeekdays     = "weekdays"
	FieldLeadTimeNum  = "lead_time_num"
	FieldLeadTimeUnit = "lead_time_unit"
)

var ErrEmptyPath = errors.New("field definitions path is empty")

type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

type Field struct {
	Name      string   `yaml:"name" json:"name"`
	Type      string   `yaml:"type" json:"type"`
	Label     string   `yaml:"label" json:"label,omitempty"`
	MaxLength int      `yaml:"max_length" json:"maxLength,omitempty"`
	Multi     bool     `yaml:"multi" json:"multi,omitempty"`
	Options   []Option `yaml:"options" json:"options,omitempty"`
}

// Allows reports whether value is one of the field options.
// Fields without options allow anything.
func (f Field) Allows(value string) bool {
	if len(f.Options) == 0 {
		return true
	}
	for _, o := range f.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Table is an ordered list of field definitions.
type Table struct {
	Fields []Field `yaml:"fields" json:"fields"`
}

func (t Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Allows reports whether value is allowed for the named field.
// Unknown fields allow anything.
func (t Table) Allows(name, value string) bool {
	f, ok := t.Field(name)
	if !ok {
		return true
	}
	return f.Allows(value)
}

func (t Table) MaxLength(name string) int {
	f, _ := t.Field(name)
	return f.MaxLength
}

// Merge returns a copy of t where fields of other replace fields with the same name.
// Fields unknown to t are appended.
func (t Table) Merge(other Table) Table {
	res := Table{Fields: make([]Field, 0, len(t.Fields)+len(other.Fields))}
	res.Fields = append(res.Fields, t.Fields...)
	for _, f := range other.Fields {
		replaced := false
		for i := range res.Fields {
			if res.Fields[i].Name == f.Name {
				res.Fields[i] = f
				replaced = true
				break
			}
		}
		if !replaced {
			res.Fields = append(res.Fields, f)
		}
	}
	return res
}

// DurationLabel renders minutes like "1 hr 30 min".
func DurationLabel(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%d hr %d min", h, m)
	case h > 0:
		return fmt.Sprintf("%d hr", h)
	default:
		return fmt.Sprintf("%d min", m)
	}
}

// Default returns the built-in field definitions.
func Default() Table {
	durations := make([]Option, 0, 24)
	for m := 15; m <= 6*60; m += 15 {
		durations = append(durations, Option{Value: strconv.Itoa(m), Label: DurationLabel(m)})
	}
	frequencies := make([]Option, 0, 31)
	for f := 1; f <= 31; f++ {
		frequencies = append(frequencies, Option{Value: strconv.Itoa(f), Label: strconv.Itoa(f)})
	}
	weekdays := make([]Option, 0, 7)
	for _, d := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday} {
		l := event.WeekdayLabel(d)
		weekdays = append(weekdays, Option{Value: l, Label: l})
	}

	return Table{Fields: []Field{
		{Name: FieldID, Type: "hidden"},
		{Name: FieldLabel, Type: "text", Label: "Description", MaxLength: 255},
		{Name: FieldStartsAt, Type: "text", Label: "Starts At"},
		{Name: FieldDuration, Type: "select", Label: "Duration", Options: durations},
		{Name: FieldEndsAt, Type: "text", Label: "Repeat Until"},
		{Name: FieldFrequency, Type: "select", Label: "Repeat every", Options: frequencies},
		{Name: FieldInterval, Type: "select", Options: []Option{
			{Value: string(event.IntervalDaily), Label: "day"},
			{Value: string(event.IntervalWeekly), Label: "week"},
			{Value: string(event.IntervalMonthly), Label: "month"},
		}},
		{Name: FieldWeekdays, Type: "checkbox", Label: "On", Multi: true, Options: weekdays},
		{Name: FieldLeadTimeNum, Type: "text", Label: "Remind before"},
		{Name: FieldLeadTimeUnit, Type: "select", Options: []Option{
			{Value: string(event.LeadTimeMinute), Label: "minutes"},
			{Value: string(event.LeadTimeHour), Label: "hours"},
			{Value: string(event.LeadTimeDay), Label: "days"},
		}},
	}}
}

// Load reads field overrides from a YAML file and merges them over Default.
func Load(path string) (Table, error) {
	if path == "" {
		return Table{}, ErrEmptyPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read field definitions: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Table, error) {
	var overrides Table
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return Table{}, fmt.Errorf("failed to parse field definitions: %w", err)
	}
	for i, f := range overrides.Fields {
		if f.Name == "" {
			return Table{}, fmt.Errorf("field definition %d has no name", i)
		}
	}
	return Default().Merge(overrides), nil
}

// Source provides field definitions to the validator.
type Source interface {
	FieldDefinitions(ctx context.Context) (Table, error)
}

// Static serves a fixed table.
type Static Table

func (s Static) FieldDefinitions(_ context.Context) (Table, error) {
	return Table(s), nil
}
