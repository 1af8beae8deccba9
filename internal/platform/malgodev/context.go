package malgodev

import (
	"runtime"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/pcmflow/pcmflow/internal/errors"
	"github.com/pcmflow/pcmflow/internal/logging"
)

// The miniaudio context is expensive to initialize and safe to share, so
// all backends and device enumeration in the process use one refcounted
// instance. It is torn down when the last user releases it.
var (
	ctxMu   sync.Mutex
	ctx     *malgo.AllocatedContext
	ctxRefs int
)

// backendForPlatform returns the native audio backend for the current
// operating system.
func backendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, errors.Newf("unsupported operating system").
			Component(Component).
			Category(errors.CategoryAudio).
			Context("os", runtime.GOOS).
			Build()
	}
}

// acquireContext returns the shared miniaudio context, initializing it on
// first use. Every successful call must be paired with releaseContext.
func acquireContext() (*malgo.AllocatedContext, error) {
	ctxMu.Lock()
	defer ctxMu.Unlock()

	if ctx != nil {
		ctxRefs++
		return ctx, nil
	}

	backend, err := backendForPlatform()
	if err != nil {
		return nil, err
	}

	logger := logging.ForService(Component)
	allocated, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, func(message string) {
		if logger != nil {
			logger.Debug("miniaudio", "message", message)
		}
	})
	if err != nil {
		return nil, errors.New(err).
			Component(Component).
			Category(errors.CategoryAudio).
			Context("operation", "init_context").
			Context("backend", runtime.GOOS).
			Build()
	}

	ctx = allocated
	ctxRefs = 1
	return ctx, nil
}

// releaseContext drops one reference and uninitializes the shared context
// when nobody is left using it.
func releaseContext() {
	ctxMu.Lock()
	defer ctxMu.Unlock()

	if ctx == nil {
		return
	}
	ctxRefs--
	if ctxRefs > 0 {
		return
	}

	_ = ctx.Uninit()
	ctx.Free()
	ctx = nil
	ctxRefs = 0
}
