package core

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strings"
	"text/template"
)

// expand renders connection parameter values as templates, so that secrets can be
// provided as {{ env "DB_PASSWORD" }}, {{ file "/run/secrets/pw" }} or {{ exec "vault read ..." }}.
func expand(value string) (string, error) {
	if !strings.Contains(value, "{{") {
		return value, nil
	}

	tmpl, err := template.New("expand_variables").
		Funcs(template.FuncMap{
			"env": func(envvar string) string {
				return os.Getenv(envvar)
			},
			"file": func(path string) (string, error) {
				b, err := os.ReadFile(path)
				return strings.TrimSpace(string(b)), err
			},
			"exec": func(line string) (string, error) {
				if strings.Contains(line, " | ") {
					out, err := exec.Command("sh", "-c", line).Output()
					return strings.TrimSpace(string(out)), err
				}

				l := strings.Fields(line)
				if len(l) < 1 {
					return "", errors.New("no command provided")
				}

				out, err := exec.Command(l[0], l[1:]...).Output()
				return strings.TrimSpace(string(out)), err
			},
		}).
		Parse(value)
	if err != nil {
		return "", err
	}

	var out bytes.Buffer
	err = tmpl.Execute(&out, nil)
	if err != nil {
		return "", err
	}

	return out.String(), nil
}
