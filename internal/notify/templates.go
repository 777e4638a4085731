package notify

import (
	htmltemplate "html/template"
	texttemplate "text/template"
)

const subjectLayout = "02/01/2006 15:04"

var textBody = texttemplate.Must(texttemplate.New("alert.txt").Parse(
	`ALERTA DO MONITOR DE EDITAIS
==================================================

Data/Hora: {{ .Timestamp.Format "02/01/2006 15:04:05" }}
URL: {{ .URL }}
{{ if .Keywords }}
Palavras-chave detectadas:
{{- range .Keywords }}
  - {{ . }}
{{- end }}
{{ end }}{{ if .Changed }}
MUDANÇA NO CONTEÚDO DA PÁGINA DETECTADA!
{{ end }}
Acesse a URL acima para verificar as alterações.

---
Monitor de Editais Públicos
Sistema automatizado de monitoramento
`))

var htmlBody = htmltemplate.Must(htmltemplate.New("alert.html").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.container { max-width: 600px; margin: 0 auto; padding: 20px; }
.header { background: #2c3e50; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
.content { background: #f8f9fa; padding: 20px; border-radius: 0 0 8px 8px; }
.info-box { background: white; padding: 15px; margin: 15px 0; border-radius: 6px; border-left: 4px solid #3498db; }
.change { background-color: #fff3cd; border-left: 4px solid #ffc107; padding: 12px; margin: 15px 0; }
.button { display: inline-block; background: #27ae60; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; margin: 15px 0; }
.footer { text-align: center; color: #7f8c8d; padding: 20px; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>Alerta do Monitor de Editais</h1>
    <p>{{ .Timestamp.Format "02/01/2006" }} às {{ .Timestamp.Format "15:04:05" }}</p>
  </div>
  <div class="content">
    {{- if .Changed }}
    <div class="change"><strong>MUDANÇA NO CONTEÚDO DA PÁGINA DETECTADA!</strong></div>
    {{- end }}
    {{- if .Keywords }}
    <div class="info-box">
      <h3>Palavras-chave Detectadas:</h3>
      <ul>{{ range .Keywords }}<li><strong>{{ . }}</strong></li>{{ end }}</ul>
    </div>
    {{- end }}
    <div class="info-box">
      <h3>URL Monitorada:</h3>
      <p><a href="{{ .URL }}" style="color: #3498db; word-break: break-all;">{{ .URL }}</a></p>
    </div>
    <p style="text-align: center;"><a href="{{ .URL }}" class="button">Acessar Página do Edital</a></p>
  </div>
  <div class="footer">
    <p>Monitor de Editais Públicos</p>
    <p>Sistema automatizado de monitoramento</p>
  </div>
</div>
</body>
</html>
`))
