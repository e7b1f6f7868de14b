// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// CodeEmailData fills the one-time code email.
type CodeEmailData struct {
	SiteName  string
	Code      string
	Action    string // e.g. "verify your account"
	ExpiresIn string // e.g. "5 minutes"
}

var codeHTML = template.Must(template.New("code").Parse(codeHTMLTemplate))

// BuildCodeEmail renders a one-time code email addressed to to.
func BuildCodeEmail(to string, data CodeEmailData) Email {
	var html bytes.Buffer
	_ = codeHTML.Execute(&html, data)
	return Email{
		To:       to,
		Subject:  fmt.Sprintf("Your %s code", data.SiteName),
		TextBody: buildCodeText(data),
		HTMLBody: html.String(),
	}
}

func buildCodeText(data CodeEmailData) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Use this code to %s on %s: %s\n\n", data.Action, data.SiteName, data.Code)
	fmt.Fprintf(&buf, "The code expires in %s.\n\n", data.ExpiresIn)
	buf.WriteString("If you did not ask for this code, you can ignore this email.\n")
	return buf.String()
}

const codeHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.SiteName}} code</title>
</head>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 24px 32px; border-bottom: 1px solid #e5e7eb; text-align: center;">
              <h1 style="margin: 0; font-size: 22px; color: #0f766e;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              <p style="margin: 0 0 20px; font-size: 16px; color: #374151;">Use this code to {{.Action}}:</p>
              <div style="background-color: #f3f4f6; border-radius: 8px; padding: 20px; text-align: center;">
                <span style="font-size: 30px; font-weight: 700; letter-spacing: 8px; font-family: 'Courier New', monospace;">{{.Code}}</span>
              </div>
              <p style="margin: 20px 0 0; font-size: 13px; color: #6b7280; text-align: center;">The code expires in {{.ExpiresIn}}.</p>
            </td>
          </tr>
          <tr>
            <td style="padding: 20px 32px; background-color: #f9fafb; font-size: 12px; color: #9ca3af; text-align: center;">
              If you did not ask for this code, you can ignore this email.
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
