package codec

import (
	"encoding/base64"
	"encoding/hex"
	"log/slog"
	"sync"

	"github.com/dop251/goja"
)

// VMPool keeps decoder runtimes for reuse.
type VMPool struct {
	pool   chan *goja.Runtime
	size   int
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
}

func NewVMPool(size int, logger *slog.Logger) *VMPool {
	if size <= 0 {
		size = 4
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &VMPool{
		pool:   make(chan *goja.Runtime, size),
		size:   size,
		logger: logger,
	}
}

// Get returns a pooled VM or a fresh one when the pool is empty.
func (p *VMPool) Get() *goja.Runtime {
	select {
	case vm, ok := <-p.pool:
		if ok {
			return vm
		}
	default:
	}
	return p.createVM()
}

// Put hands a VM back. Interrupted VMs must be discarded by the caller instead.
func (p *VMPool) Put(vm *goja.Runtime) {
	if vm == nil {
		return
	}

	p.clearVM(vm)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.pool <- vm:
	default:
	}
}

func (p *VMPool) createVM() *goja.Runtime {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		args := make([]any, 0, len(call.Arguments))
		for _, a := range call.Arguments {
			args = append(args, a.String())
		}
		p.logger.Debug("script log", "component", "codec", "args", args)
		return goja.Undefined()
	})
	_ = vm.Set("console", console)

	_ = vm.Set("hexToBytes", func(s string) []byte {
		b, err := hex.DecodeString(s)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return b
	})
	_ = vm.Set("base64ToBytes", func(s string) []byte {
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return b
	})

	return vm
}

// clearVM drops the globals a decoder script defines so the next script starts clean.
func (p *VMPool) clearVM(vm *goja.Runtime) {
	vm.ClearInterrupt()
	_ = vm.Set("Decode", goja.Undefined())
	_ = vm.Set("Decoder", goja.Undefined())
}

func (p *VMPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true

	close(p.pool)
	for range p.pool {
	}
}

func (p *VMPool) Size() int {
	return p.size
}

// Available is the number of idle VMs in the pool.
func (p *VMPool) Available() int {
	return len(p.pool)
}
