//go:build !linux && !darwin && !windows

package platform

func openCommand(path, app string) (string, []string) {
	if app != "" {
		return app, []string{path}
	}
	return "xdg-open", []string{path}
}
