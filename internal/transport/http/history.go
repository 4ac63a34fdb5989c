package http

import (
	"html/template"
	"io"

	"github.com/Waeei/waeei-backend/internal/domain"
)

var historyTmpl = template.Must(template.New("history").Funcs(template.FuncMap{
	"safe": func(v domain.Verdict) bool { return v == domain.VerdictSafe },
}).Parse(`<!DOCTYPE html>
<html lang="ar" dir="rtl">
<head>
	<meta charset="utf-8">
	<title>سجل الروابط - واعي</title>
	<style>
		body { font-family: Arial, sans-serif; background-color:#fff5f5; text-align:center; margin:40px; }
		table { border-collapse:collapse; margin:0 auto; width:90%; background:#c7ddde; box-shadow:0 2px 8px rgba(0,0,0,0.1); border-radius:8px; overflow:hidden; }
		th { background:#5a9695; color:#fff; padding:12px; font-size:16px; }
		td { padding:10px; border-bottom:1px solid #ddd; font-size:14px; }
		.safe { color:green; font-weight:bold; }
		.unsafe { color:red; font-weight:bold; }
	</style>
</head>
<body>
	<h2>سجل الروابط</h2>
	<table>
		<tr><th>الرابط</th><th>النتيجة</th><th>التاريخ</th></tr>
		{{- range .}}
		<tr><td>{{.URL}}</td>{{if safe .Verdict}}<td class="safe">✅ {{.Verdict}}</td>{{else}}<td class="unsafe">❌ {{.Verdict}}</td>{{end}}<td>{{.CheckedAt.Format "2006-01-02 15:04:05"}}</td></tr>
		{{- end}}
	</table>
</body>
</html>
`))

func renderHistory(w io.Writer, records []domain.VerdictRecord) error {
	return historyTmpl.Execute(w, records)
}
