package mail

import (
	"bytes"
	"html/template"
	"time"
)

var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>{{.AppName}} account activation</h2>
  <p>Hello {{if .FullName}}{{.FullName}}{{else}}there{{end}},</p>
  <p>Your activation code is:</p>
  <p style="font-size: 28px; font-weight: bold; letter-spacing: 6px;">{{.Code}}</p>
  <p>The code expires in {{.Minutes}} minutes and can be used once.</p>
  <p>If you did not create an account, ignore this message.</p>
</body>
</html>`))

type otpView struct {
	AppName  string
	FullName string
	Code     string
	Minutes  int
}

// RenderOTP returns the subject and HTML body of an activation message.
func RenderOTP(appName, fullName, code string, ttl time.Duration) (string, string, error) {
	var buf bytes.Buffer
	err := otpTemplate.Execute(&buf, otpView{
		AppName:  appName,
		FullName: fullName,
		Code:     code,
		Minutes:  int(ttl.Round(time.Minute) / time.Minute),
	})
	if err != nil {
		return "", "", err
	}
	return appName + " activation code", buf.String(), nil
}
