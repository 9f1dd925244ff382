package camera

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"syscall"
)

// DeviceAcquirer opens the best device offered by a list of drivers. Drivers
// are consulted in order; within the candidate list devices matching the
// requested facing mode come first, then devices of unknown facing, then the rest.
type DeviceAcquirer struct {
	drivers []Driver
	logger  *slog.Logger
}

// NewAcquirer returns an acquirer over drivers.
func NewAcquirer(logger *slog.Logger, drivers ...Driver) *DeviceAcquirer {
	return &DeviceAcquirer{drivers: drivers, logger: logger}
}

type candidate struct {
	driver Driver
	device Device
}

// Acquire opens the first candidate that succeeds. Permission failures are
// reported as ErrPermissionDenied even when later candidates are merely absent.
func (a *DeviceAcquirer) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	var cands []candidate
	var errs []error
	for _, d := range a.drivers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		devs, err := d.Devices(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			continue
		}
		for _, dev := range devs {
			if c.Device != "" && dev.ID != c.Device {
				continue
			}
			if dev.Facing == FacingAny {
				dev.Facing = GuessFacing(dev.Label)
			}
			cands = append(cands, candidate{driver: d, device: dev})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return facingRank(cands[i].device.Facing, c.FacingMode) < facingRank(cands[j].device.Facing, c.FacingMode)
	})

	for _, cand := range cands {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := cand.driver.Open(ctx, cand.device, c)
		if err == nil {
			if a.logger != nil {
				a.logger.Info("camera opened", "driver", cand.driver.Name(), "device", cand.device.ID, "label", cand.device.Label, "facing", string(cand.device.Facing))
			}
			return s, nil
		}
		if a.logger != nil {
			a.logger.Warn("camera open failed", "driver", cand.driver.Name(), "device", cand.device.ID, "error", err)
		}
		errs = append(errs, fmt.Errorf("%s %s: %w", cand.driver.Name(), cand.device.ID, err))
	}

	for _, err := range errs {
		if errors.Is(err, ErrPermissionDenied) {
			return nil, errors.Join(errs...)
		}
	}
	if len(errs) == 0 {
		return nil, ErrNoDevice
	}
	return nil, fmt.Errorf("%w: %w", ErrNoDevice, errors.Join(errs...))
}

// facingRank orders devices for a requested facing mode; lower is better.
func facingRank(have, want FacingMode) int {
	switch {
	case want == FacingAny || have == want:
		return 0
	case have == FacingAny:
		return 1
	default:
		return 2
	}
}

// GuessFacing infers a facing mode from a device label. Desktop drivers rarely
// report direction, but phone and tablet cameras usually name it.
func GuessFacing(label string) FacingMode {
	l := strings.ToLower(label)
	for _, k := range []string{"back", "rear", "environment", "world"} {
		if strings.Contains(l, k) {
			return FacingEnvironment
		}
	}
	for _, k := range []string{"front", "user", "facetime", "selfie"} {
		if strings.Contains(l, k) {
			return FacingUser
		}
	}
	return FacingAny
}

// classifyOpenError maps OS-level failures to the package sentinels.
func classifyOpenError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENODEV) || errors.Is(err, syscall.ENOENT) {
		return fmt.Errorf("%w: %w", ErrNoDevice, err)
	}
	return err
}
