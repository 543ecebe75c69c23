package email

import (
	"bytes"
	"html/template"
)

// Встроенные шаблоны писем. Держим их в коде: писем мало,
// а деплой без внешней директории шаблонов проще.
var templates = template.Must(template.New("email").Parse(`
{{define "verification"}}
<html><body>
<h2>Подтверждение адреса</h2>
<p>Здравствуйте, {{.Username}}!</p>
<p>Ваш код подтверждения: <b>{{.Token}}</b></p>
<p>Код действует 24 часа.</p>
</body></html>
{{end}}

{{define "subscription_status"}}
<html><body>
<h2>Статус подписки изменен</h2>
<p>План: <b>{{.Plan}}</b></p>
<p>Новый статус: <b>{{.Status}}</b></p>
{{if .Notes}}<p>Комментарий: {{.Notes}}</p>{{end}}
</body></html>
{{end}}
`))

// Render рендерит именованный шаблон с данными
func Render(name string, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
