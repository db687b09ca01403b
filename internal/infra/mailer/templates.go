package mailer

import (
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

const (
	resetCodeSubject       = "Your password recovery code"
	passwordChangedSubject = "Your password was changed"
)

type resetCodeData struct {
	Name       string
	Code       string
	TTLMinutes int
	Product    string
}

type passwordChangedData struct {
	Name    string
	Product string
}

func ttlMinutes(ttl time.Duration) int {
	minutes := int(ttl / time.Minute)
	if minutes < 1 {
		return 1
	}
	return minutes
}

var resetCodeText = texttemplate.Must(texttemplate.New("reset_code_text").Parse(`Hello {{.Name}},

We received a request to reset your {{.Product}} password.

Your verification code is: {{.Code}}

This code is valid for {{.TTLMinutes}} minutes.

If you did not request this change you can safely ignore this message.

-- 
This is an automated message, please do not reply.
`))

var resetCodeHTML = htmltemplate.Must(htmltemplate.New("reset_code_html").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"></head>
<body style="margin:0;padding:20px;font-family:Arial,sans-serif;background-color:#f4f4f4;">
  <div style="max-width:600px;margin:0 auto;background:#16213e;padding:40px;border-radius:12px;color:#ffffff;">
    <h1 style="text-align:center;font-size:28px;margin:0 0 24px 0;">{{.Product}}</h1>
    <p style="font-size:16px;line-height:1.6;">Hello <strong>{{.Name}}</strong>,</p>
    <p style="font-size:16px;line-height:1.6;">We received a request to reset your password.</p>
    <div style="border:2px solid rgba(255,255,255,0.3);border-radius:8px;padding:20px;text-align:center;margin:30px 0;">
      <p style="margin:0 0 10px 0;font-size:14px;">Your verification code is:</p>
      <div style="font-size:36px;font-weight:bold;letter-spacing:8px;font-family:'Courier New',monospace;">{{.Code}}</div>
    </div>
    <p style="font-size:16px;"><strong>This code is valid for {{.TTLMinutes}} minutes.</strong></p>
    <p style="font-size:16px;line-height:1.6;">If you did not request this change you can safely ignore this message.</p>
    <p style="margin-top:30px;font-size:12px;opacity:0.7;">This is an automated message, please do not reply.</p>
  </div>
</body>
</html>
`))

var passwordChangedText = texttemplate.Must(texttemplate.New("password_changed_text").Parse(`Hello {{.Name}},

The password for your {{.Product}} account was just changed.

If you made this change no further action is needed. If you did not, request a new recovery code immediately.

-- 
This is an automated message, please do not reply.
`))

var passwordChangedHTML = htmltemplate.Must(htmltemplate.New("password_changed_html").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="margin:0;padding:20px;font-family:Arial,sans-serif;background-color:#f4f4f4;">
  <div style="max-width:600px;margin:0 auto;background:#16213e;padding:40px;border-radius:12px;color:#ffffff;">
    <h1 style="text-align:center;font-size:28px;margin:0 0 24px 0;">{{.Product}}</h1>
    <p style="font-size:16px;line-height:1.6;">Hello <strong>{{.Name}}</strong>,</p>
    <p style="font-size:16px;line-height:1.6;">The password for your account was just changed.</p>
    <p style="font-size:16px;line-height:1.6;">If you did not make this change, request a new recovery code immediately.</p>
    <p style="margin-top:30px;font-size:12px;opacity:0.7;">This is an automated message, please do not reply.</p>
  </div>
</body>
</html>
`))
