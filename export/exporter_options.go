package export

import (
	"github.com/sirupsen/logrus"
)

type ExporterOption func(*Exporter)

// WithOutputDir sets the directory of csv files and manifests.
func WithOutputDir(dir string) ExporterOption {
	return func(e *Exporter) {
		e.outDir = dir
	}
}

func WithManifestWriter(w ManifestWriter) ExporterOption {
	return func(e *Exporter) {
		e.manifests = w
	}
}

func WithLogger(log logrus.FieldLogger) ExporterOption {
	return func(e *Exporter) {
		e.log = log
	}
}

// WithStateCallback registers a function called on every state transition of an export.
func WithStateCallback(fn func(cfg *ExportConfig, s State)) ExporterOption {
	return func(e *Exporter) {
		e.onState = fn
	}
}
