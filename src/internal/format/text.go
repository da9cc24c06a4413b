package format

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"logcourier/src/internal/config"
	"logcourier/src/internal/core"

	"github.com/lixenwraith/log"
)

const defaultTextTemplate = "{{FmtTime .Timestamp}} [{{ToUpper .Level}}] {{.Source}} - {{.Message}}"

// Produces human-readable text logs using templates
type TextFormatter struct {
	config   *config.TextFormatterOptions
	template *template.Template
	logger   *log.Logger
}

// Creates a new text formatter
func NewTextFormatter(opts *config.TextFormatterOptions, logger *log.Logger) (*TextFormatter, error) {
	if opts == nil {
		opts = &config.TextFormatterOptions{}
	}
	cfg := *opts
	if cfg.Template == "" {
		cfg.Template = defaultTextTemplate
	}
	if cfg.TimestampFormat == "" {
		cfg.TimestampFormat = time.RFC3339
	}

	f := &TextFormatter{
		config: &cfg,
		logger: logger,
	}

	funcMap := template.FuncMap{
		"FmtTime": func(t time.Time) string {
			return t.Format(f.config.TimestampFormat)
		},
		"ToUpper":   strings.ToUpper,
		"ToLower":   strings.ToLower,
		"TrimSpace": strings.TrimSpace,
	}

	tmpl, err := template.New("log").Funcs(funcMap).Parse(f.config.Template)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	f.template = tmpl
	return f, nil
}

// Formats the log entry using the template
func (f *TextFormatter) Format(entry core.LogEntry) ([]byte, error) {
	data := map[string]any{
		"Timestamp": entry.Time,
		"Level":     entry.Level.String(),
		"Source":    entry.Source,
		"Message":   entry.Message,
		"Error":     entry.Error,
	}

	if len(entry.Fields) > 0 {
		data["Fields"] = string(entry.Fields)
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		// Fallback: return a basic formatted message
		f.logger.Debug("msg", "Template execution failed, using fallback",
			"component", "text_formatter",
			"error", err)

		fallback := fmt.Sprintf("[%s] [%s] %s - %s\n",
			entry.Time.Format(f.config.TimestampFormat),
			strings.ToUpper(entry.Level.String()),
			entry.Source,
			entry.Message)
		return []byte(fallback), nil
	}

	// Ensure newline at end
	result := buf.Bytes()
	if len(result) == 0 || result[len(result)-1] != '\n' {
		result = append(result, '\n')
	}

	return result, nil
}

// Returns the formatter name
func (f *TextFormatter) Name() string {
	return "text"
}
