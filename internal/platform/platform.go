// Package platform determines the effective platform descriptor for each
// request. In local mode the descriptor is computed once from the host; in
// remote mode the caller must supply one per request.
package platform

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/caldera-labs/resolvd/internal/model"
)

// Mode selects how platform descriptors are obtained.
type Mode string

const (
	// ModeLocal derives the descriptor from the host running the service.
	ModeLocal Mode = "local"
	// ModeRemote requires the caller to supply a descriptor per request.
	ModeRemote Mode = "remote"
)

// ParseMode validates a mode string. Empty input returns ok=false with no
// error so callers can fall back to a default.
func ParseMode(s string) (Mode, bool, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", false, nil
	case ModeLocal:
		return ModeLocal, true, nil
	case ModeRemote:
		return ModeRemote, true, nil
	default:
		return "", false, model.Errf(model.KindValidation, "unknown platform mode %q (expected local or remote)", s)
	}
}

// Detect builds the host platform descriptor. Called once at startup.
func Detect() model.PlatformDescriptor {
	return model.PlatformDescriptor{
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
		Platform:       fmt.Sprintf("%s-%s", runtime.GOOS, runtime.GOARCH),
		RuntimeVersion: runtime.Version(),
	}
}

// Propagator threads a platform descriptor through resolution and execution
// calls. The default mode is process-wide configuration; requests may
// override it where the HTTP surface allows.
type Propagator struct {
	mode Mode
	host model.PlatformDescriptor
}

// New creates a propagator with the given default mode and the detected host
// descriptor.
func New(mode Mode) *Propagator {
	return &Propagator{mode: mode, host: Detect()}
}

// Mode returns the process-wide default mode.
func (p *Propagator) Mode() Mode { return p.mode }

// Host returns the descriptor detected from the host.
func (p *Propagator) Host() model.PlatformDescriptor { return p.host }

// Effective resolves the descriptor for one request. modeOverride is the
// per-request mode (empty = process default); supplied is the caller's
// descriptor, required in remote mode and ignored in local mode. Validation
// failures are reported before any resolver or store work happens.
func (p *Propagator) Effective(modeOverride string, supplied *model.PlatformDescriptor) (model.PlatformDescriptor, error) {
	mode := p.mode
	if override, ok, err := ParseMode(modeOverride); err != nil {
		return model.PlatformDescriptor{}, err
	} else if ok {
		mode = override
	}

	if mode == ModeLocal {
		return p.host, nil
	}

	if supplied == nil {
		return model.PlatformDescriptor{}, model.Errf(model.KindValidation,
			"remote mode requires a platform descriptor on the request")
	}
	if err := supplied.Validate(); err != nil {
		return model.PlatformDescriptor{}, err
	}
	return *supplied, nil
}
