package server

import (
	_ "embed"
	"html/template"
)

//go:embed templates/success.html
var successPageTemplateHTML string

var successPageTemplate = template.Must(template.New("success").Parse(successPageTemplateHTML))
