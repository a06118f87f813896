package mail

import (
	"bytes"
	"text/template"
	"time"
)

const resetSubject = "Your memberhub password reset code"

var resetBody = template.Must(template.New("reset").Parse(`Hello {{if .Name}}{{.Name}}{{else}}there{{end}},

Use this code to reset your memberhub password:

    {{.Code}}

The code expires in {{.Minutes}} minutes and works once. If you did not ask
to reset your password you can ignore this email.
`))

// ResetCodeMessage renders the password reset email.
func ResetCodeMessage(to, name, code string, ttl time.Duration) (Message, error) {
	var b bytes.Buffer
	err := resetBody.Execute(&b, struct {
		Name    string
		Code    string
		Minutes int
	}{name, code, int(ttl.Minutes())})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: resetSubject, Body: b.String()}, nil
}
