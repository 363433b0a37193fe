package calendar

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/pfrederiksen/uct-events/internal/event"
)

// ProductID identifies generated calendars.
const ProductID = "-//UC Theatre Events//uct-events//EN"

// PropertyPrivateTag carries the fingerprint in .ics files.
const PropertyPrivateTag = "X-UCT-PRIVATE-ID"

// GenerateICS renders events as a standalone iCalendar document with one
// VEVENT per event. now is written as DTSTAMP.
func GenerateICS(events []*event.Event, now time.Time) string {
	cal := newCalendar()
	for _, evt := range events {
		ve := cal.AddEvent(UID(evt.Fingerprint))
		ve.SetDtStampTime(now)
		ve.SetSummary(evt.Title)
		ve.SetStartAt(evt.Start)
		ve.SetEndAt(evt.End)
		if evt.Description != "" {
			ve.SetDescription(evt.Description)
		}
		if evt.TicketURL != "" {
			ve.SetURL(evt.TicketURL)
		}
		ve.SetProperty(ical.ComponentProperty(PropertyPrivateTag), evt.Fingerprint)
	}
	return cal.Serialize()
}

// UID derives the iCalendar UID of a fingerprint.
func UID(fingerprint string) string {
	return fingerprint + "@" + UIDDomain
}

func newCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetMethod(ical.MethodPublish)
	return cal
}

// textValue reads a text property, undoing RFC 5545 escaping.
func textValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	p := ve.GetProperty(prop)
	if p == nil {
		return ""
	}
	return unescapeText(p.Value)
}

var textUnescaper = strings.NewReplacer(
	`\\`, `\`,
	`\n`, "\n",
	`\N`, "\n",
	`\,`, ",",
	`\;`, ";",
)

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}
