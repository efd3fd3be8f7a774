// Package mail renders transactional email templates and delivers them
// through the Brevo API.
//
// Templates use a deliberately tiny syntax: {{KEY}} placeholders substituted
// with literal values, and {{#if KEY}}...{{/if}} blocks kept when the key is
// present and non-empty, stripped otherwise. Each template exposes a typed
// params struct so callers cannot misspell a placeholder at a call site; the
// render step still verifies no marker survived substitution and fails on
// leftovers rather than mailing users a template artifact.
package mail

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	placeholderRe = regexp.MustCompile(`\{\{([A-Z0-9_]+)\}\}`)
	ifBlockRe     = regexp.MustCompile(`(?s)\{\{#if ([A-Z0-9_]+)\}\}(.*?)\{\{/if\}\}`)
)

// RenderError reports a template body that still contained markers after
// substitution, naming the first leftover so the missing param is obvious.
type RenderError struct {
	Template string
	Leftover string
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	return fmt.Sprintf("mail: template %q left marker %q unresolved", e.Template, e.Leftover)
}

// Render substitutes params into body and resolves conditional blocks.
// Conditionals run first so their inner placeholders are only substituted
// when the block survives; a key is truthy when present with a non-empty
// value. CURRENT_YEAR is always available without being passed.
func Render(name, body string, params map[string]string) (string, error) {
	if params == nil {
		params = map[string]string{}
	}
	if _, ok := params["CURRENT_YEAR"]; !ok {
		params["CURRENT_YEAR"] = strconv.Itoa(time.Now().Year())
	}

	out := ifBlockRe.ReplaceAllStringFunc(body, func(block string) string {
		m := ifBlockRe.FindStringSubmatch(block)
		if v, ok := params[m[1]]; ok && v != "" {
			return m[2]
		}
		return ""
	})

	out = placeholderRe.ReplaceAllStringFunc(out, func(marker string) string {
		key := placeholderRe.FindStringSubmatch(marker)[1]
		if v, ok := params[key]; ok {
			return v
		}
		return marker
	})

	if idx := strings.Index(out, "{{"); idx >= 0 {
		end := idx + 40
		if end > len(out) {
			end = len(out)
		}
		return "", &RenderError{Template: name, Leftover: out[idx:end]}
	}
	return out, nil
}

// WelcomeParams fills the welcome template sent right after signup.
type WelcomeParams struct {
	UserName string
	LoginURL string
	IsMentor bool
}

// Params flattens the struct into template keys.
func (p WelcomeParams) Params() map[string]string {
	m := map[string]string{
		"USER_NAME": p.UserName,
		"LOGIN_URL": p.LoginURL,
	}
	if p.IsMentor {
		m["IS_MENTOR"] = "1"
	}
	return m
}

// NewScheduleParams fills the appointment-confirmation template sent to the
// mentor when a mentee books a slot.
type NewScheduleParams struct {
	MentorName string
	MenteeName string
	Date       string // 2006-01-02
	StartTime  string // 15:04
	EndTime    string // 15:04
	Timezone   string
	Notes      string
	MeetLink   string
}

// Params flattens the struct into template keys.
func (p NewScheduleParams) Params() map[string]string {
	return map[string]string{
		"MENTOR_NAME": p.MentorName,
		"MENTEE_NAME": p.MenteeName,
		"DATE":        p.Date,
		"START_TIME":  p.StartTime,
		"END_TIME":    p.EndTime,
		"TIMEZONE":    p.Timezone,
		"NOTES":       p.Notes,
		"MEET_LINK":   p.MeetLink,
	}
}

// CancelParams fills the cancellation notice sent to the counterpart when an
// appointment is called off.
type CancelParams struct {
	RecipientName string
	CancellerName string
	Date          string
	StartTime     string
	Reason        string
}

// Params flattens the struct into template keys.
func (p CancelParams) Params() map[string]string {
	return map[string]string{
		"RECIPIENT_NAME": p.RecipientName,
		"CANCELLER_NAME": p.CancellerName,
		"DATE":           p.Date,
		"START_TIME":     p.StartTime,
		"REASON":         p.Reason,
	}
}

// CourseSaleParams fills the sale notice sent to a course owner after a
// settled purchase.
type CourseSaleParams struct {
	OwnerName   string
	StudentName string
	CourseName  string
	Price       string // formatted, e.g. "R$ 50,00"
}

// Params flattens the struct into template keys.
func (p CourseSaleParams) Params() map[string]string {
	return map[string]string{
		"OWNER_NAME":   p.OwnerName,
		"STUDENT_NAME": p.StudentName,
		"COURSE_NAME":  p.CourseName,
		"PRICE":        p.Price,
	}
}

// EnrollmentParams fills the purchase confirmation sent to the student.
type EnrollmentParams struct {
	StudentName string
	CourseName  string
	OwnerName   string
	CourseURL   string
}

// Params flattens the struct into template keys.
func (p EnrollmentParams) Params() map[string]string {
	return map[string]string{
		"STUDENT_NAME": p.StudentName,
		"COURSE_NAME":  p.CourseName,
		"OWNER_NAME":   p.OwnerName,
		"COURSE_URL":   p.CourseURL,
	}
}
