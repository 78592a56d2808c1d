package browser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeLookPath(installed ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, i := range installed {
			if i == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
}

func TestCommand_PicksFirstInstalled(t *testing.T) {
	cmd, err := command("linux", "https://appcenter.intuit.com/connect/oauth2?state=x", fakeLookPath("xdg-open"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/bin/xdg-open", "https://appcenter.intuit.com/connect/oauth2?state=x"}, cmd.Args)

	cmd, err = command("linux", "https://example.com", fakeLookPath("xdg-open", "wslview"))
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/wslview", cmd.Args[0])
}

func TestCommand_Windows(t *testing.T) {
	cmd, err := command("windows", "https://example.com", fakeLookPath("rundll32"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/bin/rundll32", "url.dll,FileProtocolHandler", "https://example.com"}, cmd.Args)
}

func TestCommand_RejectsNonHTTP(t *testing.T) {
	for _, u := range []string{"file:///etc/passwd", "javascript:alert(1)", "ms-settings:"} {
		_, err := command("linux", u, fakeLookPath("xdg-open"))
		assert.Error(t, err, u)
	}
}

func TestCommand_Unsupported(t *testing.T) {
	_, err := command("plan9", "https://example.com", fakeLookPath("xdg-open"))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = command("linux", "https://example.com", fakeLookPath())
	assert.ErrorIs(t, err, ErrUnsupported)
}
