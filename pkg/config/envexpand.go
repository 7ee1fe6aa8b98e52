package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv expands {{.VAR_NAME}} references in YAML content using Go
// templates. Shell-style $VAR and ${VAR} are left untouched so that header
// values and tokens containing '$' survive.
//
// Missing variables expand to an empty string. Content that is not a valid
// template is returned unchanged and left for the YAML parser to reject.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("storeassist").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok && key != "" {
			env[key] = value
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return data
	}
	return buf.Bytes()
}
