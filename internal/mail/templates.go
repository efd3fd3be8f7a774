package mail

// Template couples a subject line with HTML and plain-text bodies. Subjects
// go through the same renderer as bodies, so they may carry placeholders.
type Template struct {
	Name    string
	Subject string
	HTML    string
	Text    string
}

// Template names used across the service layer.
const (
	TemplateWelcome     = "welcome"
	TemplateNewSchedule = "new_schedule"
	TemplateCancel      = "appointment_cancelled"
	TemplateCourseSale  = "course_sale"
	TemplateEnrollment  = "enrollment_confirmed"
)

// Templates is the registry of every transactional email the service sends.
var Templates = map[string]Template{
	TemplateWelcome: {
		Name:    TemplateWelcome,
		Subject: "Welcome to MentorHub, {{USER_NAME}}!",
		HTML: `<html><body style="font-family:Arial,sans-serif;color:#1f2933">
<h2>Welcome, {{USER_NAME}}!</h2>
<p>Your account is ready. Sign in anytime at <a href="{{LOGIN_URL}}">{{LOGIN_URL}}</a>.</p>
{{#if IS_MENTOR}}<p>As a mentor you can now publish courses and open your calendar for appointments. Your earnings settle directly to your connected account.</p>{{/if}}
<p>Good learning,<br>The MentorHub team</p>
<p style="color:#9aa5b1;font-size:12px">&copy; {{CURRENT_YEAR}} MentorHub</p>
</body></html>`,
		Text: `Welcome, {{USER_NAME}}!

Your account is ready. Sign in anytime at {{LOGIN_URL}}.
{{#if IS_MENTOR}}
As a mentor you can now publish courses and open your calendar for appointments. Your earnings settle directly to your connected account.
{{/if}}
Good learning,
The MentorHub team
(c) {{CURRENT_YEAR}} MentorHub`,
	},
	TemplateNewSchedule: {
		Name:    TemplateNewSchedule,
		Subject: "New appointment: {{MENTEE_NAME}} on {{DATE}}",
		HTML: `<html><body style="font-family:Arial,sans-serif;color:#1f2933">
<h2>Hi {{MENTOR_NAME}},</h2>
<p><strong>{{MENTEE_NAME}}</strong> booked a session with you.</p>
<p>{{DATE}}, {{START_TIME}}&ndash;{{END_TIME}} ({{TIMEZONE}})</p>
{{#if NOTES}}<p>Notes from the mentee: {{NOTES}}</p>{{/if}}
{{#if MEET_LINK}}<p>Meeting link: <a href="{{MEET_LINK}}">{{MEET_LINK}}</a></p>{{/if}}
<p style="color:#9aa5b1;font-size:12px">&copy; {{CURRENT_YEAR}} MentorHub</p>
</body></html>`,
		Text: `Hi {{MENTOR_NAME}},

{{MENTEE_NAME}} booked a session with you.
{{DATE}}, {{START_TIME}}-{{END_TIME}} ({{TIMEZONE}})
{{#if NOTES}}Notes from the mentee: {{NOTES}}
{{/if}}{{#if MEET_LINK}}Meeting link: {{MEET_LINK}}
{{/if}}
(c) {{CURRENT_YEAR}} MentorHub`,
	},
	TemplateCancel: {
		Name:    TemplateCancel,
		Subject: "Appointment on {{DATE}} was cancelled",
		HTML: `<html><body style="font-family:Arial,sans-serif;color:#1f2933">
<h2>Hi {{RECIPIENT_NAME}},</h2>
<p>{{CANCELLER_NAME}} cancelled your appointment scheduled for {{DATE}} at {{START_TIME}}.</p>
{{#if REASON}}<p>Reason: {{REASON}}</p>{{/if}}
<p>You can rebook at any time from your dashboard.</p>
<p style="color:#9aa5b1;font-size:12px">&copy; {{CURRENT_YEAR}} MentorHub</p>
</body></html>`,
		Text: `Hi {{RECIPIENT_NAME}},

{{CANCELLER_NAME}} cancelled your appointment scheduled for {{DATE}} at {{START_TIME}}.
{{#if REASON}}Reason: {{REASON}}
{{/if}}
You can rebook at any time from your dashboard.
(c) {{CURRENT_YEAR}} MentorHub`,
	},
	TemplateCourseSale: {
		Name:    TemplateCourseSale,
		Subject: "You made a sale: {{COURSE_NAME}}",
		HTML: `<html><body style="font-family:Arial,sans-serif;color:#1f2933">
<h2>Congratulations, {{OWNER_NAME}}!</h2>
<p><strong>{{STUDENT_NAME}}</strong> just enrolled in <strong>{{COURSE_NAME}}</strong> for {{PRICE}}.</p>
<p>The amount settles directly to your connected account.</p>
<p style="color:#9aa5b1;font-size:12px">&copy; {{CURRENT_YEAR}} MentorHub</p>
</body></html>`,
		Text: `Congratulations, {{OWNER_NAME}}!

{{STUDENT_NAME}} just enrolled in {{COURSE_NAME}} for {{PRICE}}.
The amount settles directly to your connected account.
(c) {{CURRENT_YEAR}} MentorHub`,
	},
	TemplateEnrollment: {
		Name:    TemplateEnrollment,
		Subject: "You're enrolled in {{COURSE_NAME}}",
		HTML: `<html><body style="font-family:Arial,sans-serif;color:#1f2933">
<h2>Hi {{STUDENT_NAME}},</h2>
<p>Your enrollment in <strong>{{COURSE_NAME}}</strong> by {{OWNER_NAME}} is confirmed.</p>
{{#if COURSE_URL}}<p>Start now: <a href="{{COURSE_URL}}">{{COURSE_URL}}</a></p>{{/if}}
<p style="color:#9aa5b1;font-size:12px">&copy; {{CURRENT_YEAR}} MentorHub</p>
</body></html>`,
		Text: `Hi {{STUDENT_NAME}},

Your enrollment in {{COURSE_NAME}} by {{OWNER_NAME}} is confirmed.
{{#if COURSE_URL}}Start now: {{COURSE_URL}}
{{/if}}
(c) {{CURRENT_YEAR}} MentorHub`,
	},
}
