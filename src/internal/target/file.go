package target

import (
	"bytes"
	"fmt"
	"time"

	"logcourier/src/internal/config"
	"logcourier/src/internal/core"
	"logcourier/src/internal/format"

	"github.com/lixenwraith/log"
)

// FileSink writes formatted entries to rotating log files. Rotation,
// retention and disk-space policies are delegated to a dedicated
// lixenwraith/log writer instance; this type only renders and hands
// lines over.
type FileSink struct {
	writer    *log.Logger
	formatter format.Formatter
	logger    *log.Logger
}

// NewFileSink creates a file sink and starts its writer.
func NewFileSink(opts *config.FileTargetOptions, formatter format.Formatter, logger *log.Logger) (*FileSink, error) {
	directory := "./"
	name := "logcourier.output"
	if opts != nil {
		if opts.Directory != "" {
			directory = opts.Directory
		}
		if opts.Name != "" {
			name = opts.Name
		}
	}

	writerConfig := log.DefaultConfig()
	writerConfig.Directory = directory
	writerConfig.Name = name
	writerConfig.EnableConsole = false
	writerConfig.ShowTimestamp = false // entries carry their own
	writerConfig.ShowLevel = false

	if opts != nil {
		if opts.MaxSizeMB > 0 {
			writerConfig.MaxSizeKB = opts.MaxSizeMB * 1000
		}
		if opts.MaxTotalSizeMB > 0 {
			writerConfig.MaxTotalSizeKB = opts.MaxTotalSizeMB * 1000
		}
		if opts.RetentionHours > 0 {
			writerConfig.RetentionPeriodHrs = opts.RetentionHours
		}
		if opts.MinDiskFreeMB > 0 {
			writerConfig.MinDiskFreeKB = opts.MinDiskFreeMB * 1000
		}
	}

	writer := log.NewLogger()
	if err := writer.ApplyConfig(writerConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize file writer: %w", err)
	}
	if err := writer.Start(); err != nil {
		return nil, fmt.Errorf("failed to start file writer: %w", err)
	}

	return &FileSink{
		writer:    writer,
		formatter: formatter,
		logger:    logger,
	}, nil
}

func (fs *FileSink) Write(entry core.LogEntry) error {
	formatted, err := fs.formatter.Format(entry)
	if err != nil {
		return fmt.Errorf("format entry: %w", err)
	}

	// String conversion prevents hex encoding of []byte by the writer.
	// Strip the trailing newline, the writer adds its own.
	fs.writer.Message(string(bytes.TrimSuffix(formatted, []byte{'\n'})))
	return nil
}

func (fs *FileSink) WriteBatch(entries []core.LogEntry) error {
	for _, entry := range entries {
		if err := fs.Write(entry); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts the writer down, flushing buffered lines.
func (fs *FileSink) Close() error {
	if err := fs.writer.Shutdown(2 * time.Second); err != nil {
		return fmt.Errorf("file writer shutdown: %w", err)
	}
	return nil
}
