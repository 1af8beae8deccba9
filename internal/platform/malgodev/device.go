package malgodev

import (
	"encoding/hex"
	"runtime"
	"strings"
	"time"

	"github.com/gen2brain/malgo"
	gocache "github.com/patrickmn/go-cache"

	"github.com/pcmflow/pcmflow/internal/errors"
)

// DeviceInfo describes one audio endpoint visible to the platform
// backend. ID is the decoded platform identifier, stable across
// enumerations on the same host.
type DeviceInfo struct {
	Index     int
	Name      string
	ID        string
	IsDefault bool
}

// Direction selects which endpoints an enumeration covers.
type Direction int

const (
	DirectionPlayback Direction = iota
	DirectionCapture
)

func (d Direction) String() string {
	if d == DirectionCapture {
		return "capture"
	}
	return "playback"
}

func (d Direction) deviceType() malgo.DeviceType {
	if d == DirectionCapture {
		return malgo.Capture
	}
	return malgo.Playback
}

// Device enumeration hits the native backend and can take tens of
// milliseconds, so results are cached briefly. Hotplug shows up after
// the TTL expires.
var deviceCache = gocache.New(30*time.Second, time.Minute)

// EnumerateDevices lists the audio endpoints for the given direction.
func EnumerateDevices(dir Direction) ([]DeviceInfo, error) {
	if cached, found := deviceCache.Get(dir.String()); found {
		if devices, ok := cached.([]DeviceInfo); ok {
			return devices, nil
		}
	}

	mctx, err := acquireContext()
	if err != nil {
		return nil, err
	}
	defer releaseContext()

	infos, err := mctx.Devices(dir.deviceType())
	if err != nil {
		return nil, errors.New(err).
			Component(Component).
			Category(errors.CategoryAudio).
			Context("operation", "enumerate_devices").
			Context("direction", dir.String()).
			Build()
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		// The ALSA null sink is not a useful endpoint for callers.
		if strings.Contains(infos[i].Name(), "Discard all samples") {
			continue
		}

		decodedID, err := hexToASCII(infos[i].ID.String())
		if err != nil {
			decodedID = infos[i].ID.String()
		}

		devices = append(devices, DeviceInfo{
			Index:     i,
			Name:      infos[i].Name(),
			ID:        decodedID,
			IsDefault: infos[i].IsDefault == 1,
		})
	}

	deviceCache.Set(dir.String(), devices, gocache.DefaultExpiration)
	return devices, nil
}

// selectDevice resolves a device query against the raw enumeration.
// Empty, "default" and "sysdefault" select the platform default; other
// queries match by exact name, decoded ID, then name substring.
func selectDevice(infos []malgo.DeviceInfo, query string) (*malgo.DeviceInfo, error) {
	if query == "" || query == "default" || query == "sysdefault" {
		for i := range infos {
			if infos[i].IsDefault == 1 {
				return &infos[i], nil
			}
		}
		if len(infos) > 0 {
			return &infos[0], nil
		}
		return nil, errors.Newf("no audio devices found").
			Component(Component).
			Category(errors.CategoryNotFound).
			Build()
	}

	for i := range infos {
		if infos[i].Name() == query {
			return &infos[i], nil
		}
	}
	for i := range infos {
		decodedID, err := hexToASCII(infos[i].ID.String())
		if err == nil && decodedID == query {
			return &infos[i], nil
		}
	}
	for i := range infos {
		if strings.Contains(infos[i].Name(), query) {
			return &infos[i], nil
		}
	}

	return nil, errors.Newf("no matching audio device").
		Component(Component).
		Category(errors.CategoryNotFound).
		Context("device", query).
		Context("available_devices", len(infos)).
		Build()
}

// hexToASCII decodes the hex form miniaudio uses for device identifiers.
func hexToASCII(hexStr string) (string, error) {
	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// isHardwareDevice reports whether the decoded ID names a physical
// endpoint. On Linux these carry the ALSA ":card,device" form.
func isHardwareDevice(decodedID string) bool {
	if runtime.GOOS == "linux" {
		return strings.Contains(decodedID, ":") && strings.Contains(decodedID, ",")
	}
	return true
}

// HardwareDevices filters the enumeration down to physical endpoints.
func HardwareDevices(dir Direction) ([]DeviceInfo, error) {
	devices, err := EnumerateDevices(dir)
	if err != nil {
		return nil, err
	}

	hardware := make([]DeviceInfo, 0, len(devices))
	for _, device := range devices {
		if isHardwareDevice(device.ID) {
			hardware = append(hardware, device)
		}
	}
	return hardware, nil
}

// DefaultDevice returns the platform default endpoint for the direction.
func DefaultDevice(dir Direction) (*DeviceInfo, error) {
	devices, err := EnumerateDevices(dir)
	if err != nil {
		return nil, err
	}

	for i := range devices {
		if devices[i].IsDefault {
			return &devices[i], nil
		}
	}
	if len(devices) > 0 {
		return &devices[0], nil
	}

	return nil, errors.Newf("no audio devices found").
		Component(Component).
		Category(errors.CategoryNotFound).
		Context("direction", dir.String()).
		Build()
}
