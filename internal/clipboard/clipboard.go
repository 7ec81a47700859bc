package clipboard

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/asheshgoplani/sessionseek/internal/platform"
)

// ErrEmpty is returned when there is nothing to copy.
var ErrEmpty = errors.New("no content to copy")

// CopyResult describes a successful copy.
type CopyResult struct {
	Method   string // pbcopy, clip.exe, wl-copy, xclip, xsel or osc52
	ByteSize int
}

// command is a native clipboard tool invocation.
type command struct {
	name string
	args []string
}

// Copy puts text on the system clipboard. Native tools are tried first; when
// none is available and allowOSC52 is set, the OSC 52 escape sequence is
// written to the controlling terminal instead.
func Copy(text string, allowOSC52 bool) (*CopyResult, error) {
	if text == "" {
		return nil, ErrEmpty
	}

	var nativeErr error
	for _, c := range nativeCommands(platform.Detect(), os.Getenv("WAYLAND_DISPLAY") != "") {
		path, err := exec.LookPath(c.name)
		if err != nil {
			continue
		}
		cmd := exec.Command(path, c.args...)
		cmd.Stdin = strings.NewReader(text)
		if nativeErr = cmd.Run(); nativeErr == nil {
			return &CopyResult{Method: c.name, ByteSize: len(text)}, nil
		}
	}

	if allowOSC52 {
		if err := writeOSC52(text); err != nil {
			return nil, fmt.Errorf("OSC 52 clipboard failed: %w", err)
		}
		return &CopyResult{Method: "osc52", ByteSize: len(text)}, nil
	}
	if nativeErr != nil {
		return nil, fmt.Errorf("clipboard command failed: %w", nativeErr)
	}
	return nil, errors.New("no clipboard method available (install pbcopy, xclip, xsel, or wl-copy)")
}

// nativeCommands lists clipboard tools to try, best first.
func nativeCommands(p platform.Platform, wayland bool) []command {
	switch p {
	case platform.PlatformMacOS:
		return []command{{name: "pbcopy"}}
	case platform.PlatformWSL1, platform.PlatformWSL2:
		return []command{{name: "clip.exe"}}
	case platform.PlatformLinux:
		var cmds []command
		if wayland {
			cmds = append(cmds, command{name: "wl-copy"})
		}
		return append(cmds,
			command{name: "xclip", args: []string{"-selection", "clipboard"}},
			command{name: "xsel", args: []string{"--clipboard", "--input"}},
		)
	default:
		return nil
	}
}

// writeOSC52 writes the sequence to /dev/tty so redirected stdout (or a
// running TUI) does not swallow it.
func writeOSC52(text string) error {
	seq := osc52(base64.StdEncoding.EncodeToString([]byte(text)), os.Getenv("TMUX") != "")
	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("cannot open /dev/tty: %w", err)
	}
	defer tty.Close()
	_, err = tty.WriteString(seq)
	return err
}

// osc52 builds the escape sequence, wrapped in a DCS passthrough inside tmux.
func osc52(encoded string, inTmux bool) string {
	seq := "\x1b]52;c;" + encoded + "\x07"
	if inTmux {
		return "\x1bPtmux;\x1b" + seq + "\x1b\\"
	}
	return seq
}
