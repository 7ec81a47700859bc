package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Platform represents the detected platform
type Platform string

const (
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformWSL1    Platform = "wsl1"
	PlatformWSL2    Platform = "wsl2"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

var (
	detectOnce sync.Once
	detected   Platform
)

// Detect returns the current platform. The result is computed once.
func Detect() Platform {
	detectOnce.Do(func() {
		detected = detectPlatform()
	})
	return detected
}

func detectPlatform() Platform {
	switch runtime.GOOS {
	case "darwin":
		return PlatformMacOS
	case "windows":
		return PlatformWindows
	case "linux":
		return detectLinuxOrWSL()
	default:
		return PlatformUnknown
	}
}

func detectLinuxOrWSL() Platform {
	procVersion, _ := os.ReadFile("/proc/version")
	if os.Getenv("WSL_DISTRO_NAME") == "" && !strings.Contains(strings.ToLower(string(procVersion)), "microsoft") {
		return PlatformLinux
	}
	return wslVersion(string(procVersion))
}

// wslVersion tells WSL1 from WSL2. WSL2 kernels report
// "microsoft-standard"; WSL1 reports "Microsoft" without it.
func wslVersion(procVersion string) Platform {
	if strings.Contains(procVersion, "microsoft-standard") {
		return PlatformWSL2
	}
	if strings.Contains(procVersion, "Microsoft") {
		return PlatformWSL1
	}
	// /run/WSL and /dev/vsock only exist under WSL2.
	for _, p := range []string{"/run/WSL", "/dev/vsock"} {
		if _, err := os.Stat(p); err == nil {
			return PlatformWSL2
		}
	}
	return PlatformWSL1
}

// IsWSL returns true if running in any WSL environment
func IsWSL() bool {
	p := Detect()
	return p == PlatformWSL1 || p == PlatformWSL2
}

// String returns a human-readable platform name
func (p Platform) String() string {
	switch p {
	case PlatformMacOS:
		return "macOS"
	case PlatformLinux:
		return "Linux"
	case PlatformWSL1:
		return "WSL1"
	case PlatformWSL2:
		return "WSL2"
	case PlatformWindows:
		return "Windows"
	default:
		return "Unknown"
	}
}

// FilesystemType returns the type of the mount holding path, read from
// /proc/mounts. It returns "" off Linux or when the type cannot be found.
func FilesystemType(path string) string {
	if runtime.GOOS != "linux" {
		return ""
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return ""
	}
	return mountType(string(mounts), absPath)
}

// mountType finds the longest mount point containing absPath.
// Lines have the form: device mountpoint fstype options ...
func mountType(mounts, absPath string) string {
	var matchedMount, matchedType string
	for _, line := range strings.Split(mounts, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mountPoint, fsType := fields[1], fields[2]
		if !withinMount(absPath, mountPoint) {
			continue
		}
		if len(mountPoint) > len(matchedMount) {
			matchedMount, matchedType = mountPoint, fsType
		}
	}
	return matchedType
}

func withinMount(path, mountPoint string) bool {
	if mountPoint == "/" || path == mountPoint {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(mountPoint, "/")+"/")
}

// FileEventsReliable reports whether fsnotify events can be trusted for
// files under path. When they cannot, the returned reason names the
// filesystem and callers should rely on polling.
func FileEventsReliable(path string) (bool, string) {
	return eventsReliableOn(FilesystemType(path))
}

func eventsReliableOn(fsType string) (bool, string) {
	switch {
	case fsType == "9p":
		return false, "9p mount (WSL2 Windows filesystem)"
	case fsType == "nfs" || fsType == "nfs4":
		return false, "NFS mount"
	case fsType == "cifs" || fsType == "smbfs" || fsType == "smb3":
		return false, "CIFS/SMB mount"
	case strings.HasPrefix(fsType, "fuse.sshfs"):
		return false, "SSHFS mount"
	}
	return true, ""
}
