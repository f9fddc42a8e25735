package alerts

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"text/template"
)

// Content is the renderer input: the alert family plus its template
// fields.
type Content struct {
	Type       string // cyclone, flood, landslide, outbreak, convergence
	Title      string
	Fields     map[string]string
	TrackingID string
}

// Message is one rendered variant pair.
type Message struct {
	Subject string `json:"subject"`
	Plain   string `json:"plain"`
	HTML    string `json:"html"`
}

// MessageRenderer renders alert messages for a language. The English
// renderer is built in; indigenous-language renderers plug in behind the
// same interface.
type MessageRenderer interface {
	Render(c Content, lang string) (Message, error)
	Languages() []string
}

// plainTemplates are the per-family message bodies.
var plainTemplates = map[string]string{
	"cyclone": `CYCLONE ALERT - {{.threat_level}}

{{.title}}

A tropical cyclone has been detected near {{.position}}.
Max wind: {{.max_wind_kt}} kt
Min pressure: {{.min_pressure_hpa}} hPa

ACTIONS:
1. Move to higher ground
2. Secure loose items
3. Store water and food
4. Listen to local radio`,

	"flood": `FLOOD ALERT - {{.severity}}

{{.title}}

Flooding detected near {{.position}}.
Flooded area: {{.area_km2}} km2

ACTIONS:
1. Avoid flooded roads and bridges
2. Move valuables and livestock to high ground
3. Do not drink flood water`,

	"landslide": `LANDSLIDE RISK - {{.risk_level}}

{{.title}}

Elevated landslide risk near {{.position}}.
24h rainfall: {{.rainfall_mm}} mm on {{.slope_deg}} degree slopes.
{{.reason}}

ACTION: {{.recommended_action}}`,

	"outbreak": `DISEASE OUTBREAK ALERT

{{.disease}} outbreak in {{.place}}

Cases: {{.cases}}
Severity: {{.severity}}

PROTECT YOURSELF:
1. Wash hands frequently
2. Avoid contact with sick people
3. Report symptoms to the nearest health centre`,

	"convergence": `CRITICAL CONVERGENCE ALERT

Cyclone + outbreak detected

Location: {{.place}}
Distance: {{.distance_km}} km apart
Risk score: {{.risk_score}}/1.0

This is a HIGH-RISK situation:
- Flooding can contaminate water supplies
- Displacement can spread infection

IMMEDIATE ACTIONS:
1. Prepare for evacuation
2. Stock medications and hygiene supplies
3. Follow authority instructions`,
}

// EnglishRenderer renders the built-in English template family. The
// HTML variant embeds the 1x1 tracking pixel.
type EnglishRenderer struct {
	pixelBase string
	templates map[string]*template.Template
}

// NewEnglishRenderer compiles the templates. pixelBase is the URL base
// the tracking pixel reference is built from.
func NewEnglishRenderer(pixelBase string) (*EnglishRenderer, error) {
	compiled := make(map[string]*template.Template, len(plainTemplates))
	for name, body := range plainTemplates {
		t, err := template.New(name).Option("missingkey=zero").Parse(body)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s template: %w", name, err)
		}
		compiled[name] = t
	}
	return &EnglishRenderer{pixelBase: strings.TrimRight(pixelBase, "/"), templates: compiled}, nil
}

func (r *EnglishRenderer) Languages() []string { return []string{"en"} }

// Render produces the (plain, html) pair for the alert content.
func (r *EnglishRenderer) Render(c Content, lang string) (Message, error) {
	if lang != "" && lang != "en" {
		return Message{}, fmt.Errorf("language %q not supported by the English renderer", lang)
	}

	t, ok := r.templates[c.Type]
	if !ok {
		return Message{}, fmt.Errorf("unknown alert type %q", c.Type)
	}

	fields := make(map[string]string, len(c.Fields)+1)
	for k, v := range c.Fields {
		fields[k] = v
	}
	fields["title"] = c.Title

	var buf bytes.Buffer
	if err := t.Execute(&buf, fields); err != nil {
		return Message{}, fmt.Errorf("failed to render %s message: %w", c.Type, err)
	}
	plain := buf.String()

	return Message{
		Subject: c.Title,
		Plain:   plain,
		HTML:    r.renderHTML(c, plain),
	}, nil
}

// renderHTML wraps the plain body in a simple card and appends the
// tracking pixel.
func (r *EnglishRenderer) renderHTML(c Content, plain string) string {
	body := strings.ReplaceAll(html.EscapeString(plain), "\n", "<br>\n")
	pixel := ""
	if c.TrackingID != "" {
		pixel = fmt.Sprintf(`<img src="%s/%s.png" width="1" height="1" alt="">`, r.pixelBase, c.TrackingID)
	}

	return fmt.Sprintf(`<div style="max-width:560px;border:1px solid #e5e7eb;border-radius:12px;padding:16px;font-family:system-ui,-apple-system,sans-serif;background:#f8fafc;">
  <div style="font-size:18px;font-weight:600;color:#1e293b;">%s</div>
  <div style="font-size:13px;color:#334155;margin-top:12px;line-height:1.6;">%s</div>
  <div style="border-top:1px solid #cbd5e1;margin-top:12px;padding-top:8px;font-size:10px;color:#94a3b8;">AFRO Storm early warning - you might wanna check this</div>
</div>%s`, html.EscapeString(c.Title), body, pixel)
}
