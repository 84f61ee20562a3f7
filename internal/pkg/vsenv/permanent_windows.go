//go:build windows

package vsenv

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

const (
	systemEnvKey = `System\CurrentControlSet\Control\Session Manager\Environment`
	userEnvKey   = `Environment`

	hwndBroadcast   = 0xFFFF
	wmSettingChange = 0x001A
	smtoAbortIfHung = 0x0002
)

var procSendMessageTimeout = windows.NewLazySystemDLL("user32.dll").NewProc("SendMessageTimeoutW")

// SetPermanentEnv writes env to the registry. PATH goes to the machine
// environment, everything else to the user environment. Every variable is
// attempted and the failures are returned together.
func SetPermanentEnv(env Env) error {
	var errs []error
	for _, v := range env {
		if err := setRegistryVar(v.Key, v.Value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", v.Key, err))
		}
	}
	broadcastEnvironmentChange()
	return errors.Join(errs...)
}

func setRegistryVar(name, value string) error {
	root, path := registry.CURRENT_USER, userEnvKey
	isPath := strings.EqualFold(name, "PATH")
	if isPath {
		root, path = registry.LOCAL_MACHINE, systemEnvKey
	}

	key, err := registry.OpenKey(root, path, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer key.Close()

	if isPath || strings.Contains(value, "%") {
		return key.SetExpandStringValue(name, value)
	}
	return key.SetStringValue(name, value)
}

func broadcastEnvironmentChange() {
	env, err := windows.UTF16PtrFromString("Environment")
	if err != nil {
		return
	}
	var result uintptr
	procSendMessageTimeout.Call(
		uintptr(hwndBroadcast),
		uintptr(wmSettingChange),
		0,
		uintptr(unsafe.Pointer(env)),
		uintptr(smtoAbortIfHung),
		uintptr(5000),
		uintptr(unsafe.Pointer(&result)),
	)
}
