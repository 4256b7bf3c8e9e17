package platform

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsValidTextFile(t *testing.T) {
	testCases := []struct {
		name string
		want bool
	}{
		{"main.go", true},
		{"README", true},
		{"notes.txt", true},
		{"photo.jpg", false},
		{"photo.jpeg", false},
		{"lib.so", false},
		{"app.apk", false},
		{"bundle.xapk", false},
		{"archive.7z", false},
		{"classes.dex", false},
		{"PHOTO.PNG", true}, // case-sensitive
		{"png", true},
		{"file.png.txt", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, IsValidTextFile(tc.name))
		})
	}
}

func TestIsInstallablePackage(t *testing.T) {
	require.True(t, IsInstallablePackage("/sdcard/app-release.apk"))
	require.False(t, IsInstallablePackage("/sdcard/bundle.xapk"))
	require.False(t, IsInstallablePackage("apk"))
}

type call struct {
	name string
	args []string
}

func recorder(calls *[]call, err error) runner {
	return func(name string, args ...string) error {
		*calls = append(*calls, call{name, args})
		return err
	}
}

func TestOpener_OpenFile(t *testing.T) {
	var calls []call
	o := &Opener{run: recorder(&calls, nil)}

	require.NoError(t, o.OpenFile("/r/main.go"))
	require.Len(t, calls, 1)

	wantName, wantArgs := openCommand("/r/main.go", "")
	require.Equal(t, call{wantName, wantArgs}, calls[0])
	if runtime.GOOS == "linux" {
		require.Equal(t, "xdg-open", calls[0].name)
	}
}

func TestOpener_CustomApp(t *testing.T) {
	var calls []call
	o := &Opener{App: "vim", run: recorder(&calls, nil)}

	require.NoError(t, o.OpenFile("/r/main.go"))
	require.Contains(t, append([]string{calls[0].name}, calls[0].args...), "vim")
}

func TestOpener_Error(t *testing.T) {
	var calls []call
	boom := errors.New("no display")
	o := &Opener{run: recorder(&calls, boom)}
	require.ErrorIs(t, o.OpenFile("/r/a.txt"), boom)
}

func TestADBInstaller(t *testing.T) {
	var calls []call
	i := &ADBInstaller{run: recorder(&calls, nil)}

	require.NoError(t, i.InstallPackage("/r/app.apk"))
	require.Equal(t, []call{{"adb", []string{"install", "-r", "/r/app.apk"}}}, calls)

	calls = nil
	i.ADB = "/opt/sdk/platform-tools/adb"
	require.NoError(t, i.InstallPackage("/r/app.apk"))
	require.Equal(t, "/opt/sdk/platform-tools/adb", calls[0].name)
}
