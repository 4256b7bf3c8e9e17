//go:build windows

package platform

// openCommand launches through 'cmd /c start "" "path"', the standard way
// to hand a file to its default application on Windows.
func openCommand(path, app string) (string, []string) {
	if app != "" {
		return app, []string{path}
	}
	return "cmd", []string{"/c", "start", "", path}
}
