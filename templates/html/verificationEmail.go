package templates

import (
	"fmt"
	"html"
)

// RenderCode generates the branded HTML for the verification code email.
func RenderCode(code string) string {
	safeCode := html.EscapeString(code)

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>Verify your email</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f4f5f7; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: linear-gradient(135deg, #2563eb 0%%, #1e40af 100%%); padding: 36px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 22px; font-weight: 700; }
    .content { padding: 36px 30px; color: #1f2937; line-height: 1.6; font-size: 15px; }
    .code { font-size: 32px; letter-spacing: 8px; font-weight: 700; text-align: center; color: #1e40af; padding: 18px 0; }
    .footer { padding: 26px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid #e5e7eb; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>Verify your email</h1>
    </div>
    <div class="content">
      <p>Use this code to verify your email address before submitting your application:</p>
      <div class="code">%s</div>
      <p>The code expires in 10 minutes. If you did not request it you can ignore this email.</p>
    </div>
    <div class="footer">
      <p>&copy; FormGate</p>
    </div>
  </div>
</body>
</html>`, safeCode)
}
