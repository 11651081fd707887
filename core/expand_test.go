package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	r := require.New(t)

	secret := filepath.Join(t.TempDir(), "secret")
	r.NoError(os.WriteFile(secret, []byte("s3cret\n"), 0o600))

	testCases := []struct {
		input    string
		expected string
	}{
		{"normal string", "normal string"},
		{"{{ env `HOME` }}", os.Getenv("HOME")},
		{"{{ exec `echo \"hello\nbuddy\" | grep buddy` }}", "buddy"},
		{"{{ file `" + secret + "` }}", "s3cret"},
	}

	for _, tc := range testCases {
		actual, err := expand(tc.input)
		r.NoError(err)

		r.Equal(tc.expected, actual)
	}
}

func TestConnectionParams_Expand(t *testing.T) {
	r := require.New(t)
	t.Setenv("EXTRACTOR_TEST_PASSWORD", "from-env")

	params := &ConnectionParams{
		Type:        "postgres",
		Host:        "localhost",
		Port:        5432,
		User:        "user",
		Password:    `{{ env "EXTRACTOR_TEST_PASSWORD" }}`,
		InitQueries: []string{"SET search_path TO public"},
	}

	expanded := params.Expand()
	r.Equal("from-env", expanded.Password)
	r.Equal(`{{ env "EXTRACTOR_TEST_PASSWORD" }}`, params.Password)
	r.Equal(params.InitQueries, expanded.InitQueries)

	tunneled := expanded.WithEndpoint("127.0.0.1", 33006)
	r.Equal("127.0.0.1", tunneled.Host)
	r.Equal(33006, tunneled.Port)
	r.Equal("localhost", expanded.Host)

	out, err := expanded.MarshalJSON()
	r.NoError(err)
	r.NotContains(string(out), "from-env")
}

func TestConnectionParams_ExpandFailureIsLogged(t *testing.T) {
	r := require.New(t)
	logger, hook := test.NewNullLogger()

	missing := filepath.Join(t.TempDir(), "missing")
	params := &ConnectionParams{
		Type:     "postgres",
		Password: "{{ file `" + missing + "` }}",
	}

	expanded := params.ExpandWithLogger(logger)
	r.Equal(params.Password, expanded.Password)

	r.Len(hook.AllEntries(), 1)
	entry := hook.LastEntry()
	r.Equal(logrus.WarnLevel, entry.Level)
	r.Contains(entry.Message, `Unable to expand connection parameter "password"`)
	r.Contains(entry.Message, missing)
}
