//go:build linux

package platform

// openCommand uses xdg-open (default application) unless app is given.
func openCommand(path, app string) (string, []string) {
	if app != "" {
		return app, []string{path}
	}
	return "xdg-open", []string{path}
}
