//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/silhouette"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// errNoHAL is returned when a device provider does not expose HAL objects.
var errNoHAL = errors.New("gpu: provider does not expose HAL types")

// device is an open HAL device and its queue. A device either belongs to
// one evaluator or is borrowed from a provider; borrowed devices are never
// destroyed.
type device struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	name     string
	external bool
}

// openDevice creates an instance and opens the first discrete or integrated
// GPU, falling back to the first adapter.
func openDevice() (*device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", silhouette.ErrNoGPU)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %v", silhouette.ErrNoGPU, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no GPU adapters found", silhouette.ErrNoGPU)
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open device: %v", silhouette.ErrNoGPU, err)
	}

	slogger().Info("gpu: device opened", "adapter", selected.Info.Name)
	return &device{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		name:     selected.Info.Name,
	}, nil
}

// deviceFromProvider borrows the HAL device and queue of provider. The
// provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue.
func deviceFromProvider(provider any) (*device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, errNoHAL
	}
	dev, ok := hp.HalDevice().(hal.Device)
	if !ok || dev == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", errNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", errNoHAL)
	}
	return &device{
		device:   dev,
		queue:    queue,
		name:     "shared",
		external: true,
	}, nil
}

// destroy releases the device and instance unless they are borrowed.
func (d *device) destroy() {
	if !d.external {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
}

// defaultProvider is the device provider used by evaluators created without
// silhouette.WithDeviceProvider.
var defaultProvider atomic.Pointer[any]

// SetDefaultProvider sets the device provider for evaluators created without
// an explicit one. It fails if provider does not expose HAL types. Pass nil
// to make new evaluators open their own device.
func SetDefaultProvider(provider any) error {
	if provider == nil {
		defaultProvider.Store(nil)
		return nil
	}
	if _, err := deviceFromProvider(provider); err != nil {
		return err
	}
	defaultProvider.Store(&provider)
	return nil
}

// acquireDevice picks the device for a new evaluator: the provider given in
// options, then the default provider, then a device of its own.
func acquireDevice(opts silhouette.Options) (*device, error) {
	var provider any
	if opts.DeviceProvider != nil {
		provider = opts.DeviceProvider
	} else if p := defaultProvider.Load(); p != nil {
		provider = *p
	}

	if provider != nil {
		d, err := deviceFromProvider(provider)
		if err == nil {
			slogger().Info("gpu: using shared device")
			return d, nil
		}
		slogger().Warn("gpu: device provider unusable, opening own device", "err", err)
	}
	return openDevice()
}
