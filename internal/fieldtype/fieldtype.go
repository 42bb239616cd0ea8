// Package fieldtype holds the button field definition and renders the
// handler script the CRM UI loads for it.
package fieldtype

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/Pusher91/fieldbutton/internal/domain"
)

const DefaultHandlerPath = "/render.js"

var idRe = regexp.MustCompile(`^[a-z0-9_]{1,50}$`)

func Default() domain.FieldDefinition {
	return domain.FieldDefinition{
		ID:          "archivo_electronico_button",
		Title:       "Archivo electrónico",
		Description: "Botón que abre un enlace personalizado en una nueva ventana",
		ButtonText:  "Archivo electrónico",
		HelpText:    "Introduce la URL del archivo electrónico",
		Placeholder: "https://ejemplo.com/archivo.pdf",
		HandlerPath: DefaultHandlerPath,
	}
}

// Load overlays the YAML file at path onto Default. An empty path returns
// the default definition.
func Load(path string) (domain.FieldDefinition, error) {
	def := Default()
	if strings.TrimSpace(path) == "" {
		return def, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("read field type file: %w", err)
	}

	var override domain.FieldDefinition
	if err := yaml.Unmarshal(b, &override); err != nil {
		return def, fmt.Errorf("parse field type file %s: %w", path, err)
	}

	merge(&def, override)
	if err := Validate(def); err != nil {
		return def, fmt.Errorf("field type file %s: %w", path, err)
	}
	return def, nil
}

func merge(dst *domain.FieldDefinition, src domain.FieldDefinition) {
	set := func(d *string, s string) {
		if s = strings.TrimSpace(s); s != "" {
			*d = s
		}
	}
	set(&dst.ID, src.ID)
	set(&dst.Title, src.Title)
	set(&dst.Description, src.Description)
	set(&dst.ButtonText, src.ButtonText)
	set(&dst.HelpText, src.HelpText)
	set(&dst.Placeholder, src.Placeholder)
	set(&dst.HandlerPath, src.HandlerPath)
}

func Validate(def domain.FieldDefinition) error {
	var errs []error
	if !idRe.MatchString(def.ID) {
		errs = append(errs, fmt.Errorf("id %q must match %s", def.ID, idRe.String()))
	}
	if def.Title == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if !strings.HasPrefix(def.HandlerPath, "/") || strings.ContainsAny(def.HandlerPath, "?#") {
		errs = append(errs, fmt.Errorf("handler_path %q must be an absolute path", def.HandlerPath))
	}
	return errors.Join(errs...)
}

//go:embed render.js.tmpl
var scriptSource string

var scriptTmpl = template.Must(template.New("render.js").Parse(scriptSource))

// Script renders the BX.BitrixCustomFields handler for def.
func Script(def domain.FieldDefinition) ([]byte, error) {
	var buf bytes.Buffer
	if err := scriptTmpl.Execute(&buf, def); err != nil {
		return nil, fmt.Errorf("render field script: %w", err)
	}
	return buf.Bytes(), nil
}
