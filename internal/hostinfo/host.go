// Package hostinfo adapts the machine running the CLI to the library's
// platform abstractions: identity, host OS version and URL opening.
package hostinfo

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/parrotnavy/rn-native-updates/internal/config"
	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

// Host describes the operating system the CLI runs on.
type Host struct {
	OS              string `json:"os" yaml:"os"`
	Platform        string `json:"platform" yaml:"platform"`
	PlatformVersion string `json:"platformVersion" yaml:"platformVersion"`
	KernelVersion   string `json:"kernelVersion" yaml:"kernelVersion"`
	Arch            string `json:"arch" yaml:"arch"`
}

// infoFunc is swapped in tests.
var infoFunc = host.InfoWithContext

// Detect reads host information.
func Detect(ctx context.Context) (Host, error) {
	info, err := infoFunc(ctx)
	if err != nil {
		return Host{}, err
	}
	return Host{
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		Arch:            info.KernelArch,
	}, nil
}

// OSVersion is the version compared against a store listing's minimum OS
// version. The platform version is preferred; the kernel version is the
// fallback for hosts that report none.
func (h Host) OSVersion() string {
	if v := strings.TrimSpace(h.PlatformVersion); v != "" {
		return v
	}
	return strings.TrimSpace(h.KernelVersion)
}

// Identity builds the app identity described by the configuration.
func Identity(cfg config.Config) update.StaticIdentity {
	return update.StaticIdentity{
		Version: cfg.CurrentVersion,
		Build:   cfg.BuildNumber,
		Package: cfg.PackageName,
		Region:  strings.ToUpper(cfg.Country),
	}
}
