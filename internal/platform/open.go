// Package platform hands activated files to the operating system: the
// default application for documents and adb for Android packages.
package platform

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/justyntemme/filetree/internal/debug"
)

// Names with these extensions are never opened as text.
var invalidTextFiles = regexp.MustCompile(`^.*\.(bin|ttf|png|jpe?g|bmp|mp4|mp3|m4a|iso|so|zip|rar|jar|dex|odex|vdex|7z|apk|apks|xapk)$`)

// IsValidTextFile reports whether name looks like something a text editor
// can open. Matching is case-sensitive.
func IsValidTextFile(name string) bool {
	return !invalidTextFiles.MatchString(name)
}

// IsInstallablePackage reports whether name is an Android package.
func IsInstallablePackage(name string) bool {
	return strings.HasSuffix(name, ".apk")
}

// runner starts a command without waiting for it to exit.
type runner func(name string, args ...string) error

func start(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// Opener opens files with the system default application, or with App
// when it is set.
type Opener struct {
	App string

	run runner
}

func NewOpener(app string) *Opener {
	return &Opener{App: app, run: start}
}

// OpenFile launches the file.
func (o *Opener) OpenFile(path string) error {
	run := o.run
	if run == nil {
		run = start
	}
	name, args := openCommand(path, o.App)
	debug.Log(debug.APP, "OpenFile: %s %v", name, args)
	if err := run(name, args...); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	return nil
}

// ADBInstaller installs packages on the connected device with
// `adb install -r`.
type ADBInstaller struct {
	// ADB is the adb binary, "adb" when empty.
	ADB string

	run runner
}

func NewADBInstaller(adb string) *ADBInstaller {
	return &ADBInstaller{ADB: adb, run: func(name string, args ...string) error {
		out, err := exec.Command(name, args...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	}}
}

func (i *ADBInstaller) InstallPackage(path string) error {
	adb := i.ADB
	if adb == "" {
		adb = "adb"
	}
	run := i.run
	if run == nil {
		run = start
	}
	debug.Log(debug.APP, "InstallPackage: %s install -r %s", adb, path)
	if err := run(adb, "install", "-r", path); err != nil {
		return fmt.Errorf("install %s: %w", path, err)
	}
	return nil
}
