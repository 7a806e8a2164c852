package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"SessionPulse/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[models.JobType]string{
	models.JobPrep48h:           "Prepare for %s in 2 days",
	models.JobPrep24h:           "Reminder: %s is tomorrow",
	models.JobFeedbackImmediate: "How did %s go?",
	models.JobSessionUpdate:     "Updated: %s",
}

// Renderer turns a (job type, session, recipient) triple into email content.
// Times are shown in the meeting's display location.
type Renderer struct {
	baseURL   string
	loc       *time.Location
	templates map[models.JobType]*template.Template
}

type templateData struct {
	RecipientName string
	IsMentor      bool
	SessionTitle  string
	TeamName      string
	Date          string
	Time          string
	Duration      int
	PrepURL       string
	FeedbackURL   string
	SessionURL    string
	Changes       []models.FieldChange
}

func NewRenderer(baseURL string, loc *time.Location) (*Renderer, error) {
	if loc == nil {
		loc = time.UTC
	}
	r := &Renderer{
		baseURL:   baseURL,
		loc:       loc,
		templates: make(map[models.JobType]*template.Template, len(subjects)),
	}
	for typ := range subjects {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+string(typ)+".html")
		if err != nil {
			return nil, fmt.Errorf("template parse error: %w", err)
		}
		r.templates[typ] = tmpl
	}
	return r, nil
}

// Render produces the subject and HTML body. changes is only used by
// session update notifications.
func (r *Renderer) Render(typ models.JobType, s models.Session, to models.Recipient, changes []models.FieldChange) (models.RenderedEmail, error) {
	tmpl, ok := r.templates[typ]
	if !ok {
		return models.RenderedEmail{}, fmt.Errorf("no template for job type %q", typ)
	}

	title := s.Title
	if title == "" {
		title = "your mentorship session"
	}
	start := s.ScheduledStart.In(r.loc)
	sessionURL := r.link("sessions", s.ID)

	data := templateData{
		RecipientName: to.Name,
		IsMentor:      to.Role == models.RoleMentor,
		SessionTitle:  title,
		TeamName:      s.Team.Name,
		Date:          start.Format("Monday, January 2, 2006"),
		Time:          start.Format("3:04 PM MST"),
		Duration:      s.Duration,
		PrepURL:       sessionURL + "/prep",
		FeedbackURL:   sessionURL + "/feedback",
		SessionURL:    sessionURL,
		Changes:       changes,
	}
	if data.RecipientName == "" {
		data.RecipientName = "there"
	}

	var body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&body, "layout", data); err != nil {
		return models.RenderedEmail{}, fmt.Errorf("template execution error: %w", err)
	}

	return models.RenderedEmail{
		Subject: fmt.Sprintf(subjects[typ], title),
		HTML:    body.String(),
	}, nil
}

func (r *Renderer) link(parts ...string) string {
	u, err := url.JoinPath(r.baseURL, parts...)
	if err != nil {
		return r.baseURL
	}
	return u
}
