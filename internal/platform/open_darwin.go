//go:build darwin

package platform

// openCommand uses the macOS 'open' command, with -a for a specific app.
func openCommand(path, app string) (string, []string) {
	if app != "" {
		return "open", []string{"-a", app, path}
	}
	return "open", []string{path}
}
