package app

import (
	"log"
	"sync"
)

// FileOpener hands a file to an editor or the system default application.
type FileOpener interface {
	OpenFile(path string) error
}

// PackageInstaller installs an installable package file.
type PackageInstaller interface {
	InstallPackage(path string) error
}

// Prefs remembers the last opened root across sessions. An empty path means
// none is recorded; SetRecentFolder("") forgets it.
type Prefs interface {
	RecentFolder() (string, error)
	SetRecentFolder(path string) error
}

// ErrorReporter shows a dismissible error to the user.
type ErrorReporter interface {
	ReportError(msg string, err error)
}

// ErrorReporterFunc adapts a function to an ErrorReporter.
type ErrorReporterFunc func(msg string, err error)

func (f ErrorReporterFunc) ReportError(msg string, err error) { f(msg, err) }

type logReporter struct{}

func (logReporter) ReportError(msg string, err error) {
	log.Printf("%s: %v", msg, err)
}

// memPrefs keeps the recent folder for the lifetime of the process.
type memPrefs struct {
	mu     sync.Mutex
	recent string
}

func (p *memPrefs) RecentFolder() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recent, nil
}

func (p *memPrefs) SetRecentFolder(path string) error {
	p.mu.Lock()
	p.recent = path
	p.mu.Unlock()
	return nil
}
