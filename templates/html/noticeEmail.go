package templates

import (
	"fmt"
	"html"
	"strings"
)

// RenderNotice wraps an owner-authored message in the shared branded frame.
// The body is plain text; line breaks become paragraphs.
func RenderNotice(subject, body string) string {
	safeSubject := html.EscapeString(subject)

	var paragraphs strings.Builder
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		paragraphs.WriteString("<p>")
		paragraphs.WriteString(html.EscapeString(line))
		paragraphs.WriteString("</p>\n      ")
	}

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>%s</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f4f5f7; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: linear-gradient(135deg, #2563eb 0%%, #1e40af 100%%); padding: 36px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 22px; font-weight: 700; }
    .content { padding: 36px 30px; color: #1f2937; line-height: 1.6; font-size: 15px; }
    .footer { padding: 26px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid #e5e7eb; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>%s</h1>
    </div>
    <div class="content">
      %s
    </div>
    <div class="footer">
      <p>&copy; FormGate</p>
    </div>
  </div>
</body>
</html>`, safeSubject, safeSubject, strings.TrimSpace(paragraphs.String()))
}
