package templates

import (
	"bytes"
	"fmt"
	htmpl "html/template"
)

const welcomeHTML = `<!DOCTYPE html>
<html>
  <body style="font-family: sans-serif; color: #333;">
    <h2>Welcome to {{.AppName}}, {{.Name}}!</h2>
    <p>Your account for <strong>{{.Email}}</strong> is ready.</p>
    <p>You can now sign in, fill out your profile and upload an avatar.</p>
    <p style="color:#888; font-size:12px;">If you did not create this account, you can ignore this email.</p>
  </body>
</html>`

var htmlTemplates = map[string]*htmpl.Template{
	"welcome": htmpl.Must(htmpl.New("welcome").Parse(welcomeHTML)),
}

// Subject returns the subject line for a known template.
func Subject(name string, data map[string]any) string {
	switch name {
	case "welcome":
		if app, ok := data["AppName"]; ok && fmt.Sprintf("%v", app) != "" {
			return fmt.Sprintf("Welcome to %v", app)
		}
		return "Welcome"
	default:
		return "Notification"
	}
}

// RenderHTML renders a named template with the given data.
func RenderHTML(name string, data map[string]any) (string, error) {
	t, ok := htmlTemplates[name]
	if !ok {
		return "", fmt.Errorf("unknown email template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
