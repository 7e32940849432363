package camera

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ptz-bridge/internal/config"
	"ptz-bridge/internal/ptz"
)

// ErrUnknownCamera is returned for a name that is not registered
var ErrUnknownCamera = errors.New("camera: unknown camera")

// Registry holds the cameras in configuration order
type Registry struct {
	mu      sync.RWMutex
	cameras map[string]*Camera
	order   []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{cameras: make(map[string]*Camera)}
}

// OpenAll opens every configured camera concurrently. If any fails, the ones
// already opened are closed and the first error is returned.
func OpenAll(ctx context.Context, cams []config.Camera, log *zap.Logger) (*Registry, error) {
	ctrls := make([]ptz.Controller, len(cams))

	g, gctx := errgroup.WithContext(ctx)
	for i, cfg := range cams {
		i, cfg := i, cfg
		g.Go(func() error {
			ctrl, err := Open(gctx, cfg, log)
			if err != nil {
				return errors.Wrapf(err, "camera %q", cfg.Name)
			}
			ctrls[i] = ctrl
			log.Info("camera opened",
				zap.String("camera", cfg.Name),
				zap.String("protocol", cfg.Protocol),
				zap.String("address", cfg.Address))
			return nil
		})
	}

	r := NewRegistry()
	err := g.Wait()
	for i, ctrl := range ctrls {
		if ctrl == nil {
			continue
		}
		if err != nil {
			ctrl.Close()
			continue
		}
		if addErr := r.Add(cams[i].Name, cams[i].StreamURL, ctrl); addErr != nil {
			err = addErr
		}
	}
	if err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Add registers ctrl under name. streamURL may be empty.
func (r *Registry) Add(name, streamURL string, ctrl ptz.Controller) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cameras[name]; ok {
		return errors.Errorf("camera: %q already registered", name)
	}
	r.cameras[name] = &Camera{name: name, stream: streamURL, ctrl: ctrl}
	r.order = append(r.order, name)
	return nil
}

// Get returns the camera called name
func (r *Registry) Get(name string) (*Camera, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.cameras[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCamera, "%q", name)
	}
	return c, nil
}

// Cameras returns the registered cameras in registration order
func (r *Registry) Cameras() []*Camera {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cams := make([]*Camera, 0, len(r.order))
	for _, name := range r.order {
		cams = append(cams, r.cameras[name])
	}
	return cams
}

// List describes the registered cameras in registration order
func (r *Registry) List() []Info {
	cams := r.Cameras()
	infos := make([]Info, 0, len(cams))
	for _, c := range cams {
		infos = append(infos, c.Info())
	}
	return infos
}

// Default returns the first registered camera, or nil when empty
func (r *Registry) Default() *Camera {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return nil
	}
	return r.cameras[r.order[0]]
}

// Close closes every camera and empties the registry
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for _, name := range r.order {
		if err := r.cameras[name].Close(); err != nil && first == nil {
			first = err
		}
	}
	r.cameras = make(map[string]*Camera)
	r.order = nil
	return first
}
