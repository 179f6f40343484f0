package codec

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dop251/goja"
)

var (
	// ErrTimeout is returned when a script runs longer than the executor timeout.
	ErrTimeout = errors.New("codec execution timeout")
	// ErrInvalidScript is returned when the script does not compile or throws at load.
	ErrInvalidScript = errors.New("invalid JavaScript code")
	// ErrDecodeFunctionNotFound is returned when the script defines no Decode function.
	ErrDecodeFunctionNotFound = errors.New("Decode function not found")
	// ErrInvalidReturnType is returned when Decode returns something other than an object.
	ErrInvalidReturnType = errors.New("invalid return type from codec")
)

// Executor runs decoder scripts on pooled goja runtimes.
type Executor struct {
	vmPool  *VMPool
	timeout time.Duration
	logger  *slog.Logger
	metrics *ExecutorMetrics
}

type ExecutorMetrics struct {
	TotalExecutions uint64
	TotalErrors     uint64
	TotalTimeouts   uint64
	mu              sync.RWMutex
}

type ExecutorConfig struct {
	MaxVMs  int
	Timeout time.Duration
	Logger  *slog.Logger
}

func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		MaxVMs:  4,
		Timeout: 100 * time.Millisecond,
	}
}

func NewExecutor(config *ExecutorConfig) *Executor {
	if config == nil {
		config = DefaultExecutorConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultExecutorConfig().Timeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		vmPool:  NewVMPool(config.MaxVMs, logger),
		timeout: config.Timeout,
		logger:  logger,
		metrics: &ExecutorMetrics{},
	}
}

// Decode loads script and calls Decode(fPort, bytes), returning the object it
// produces. A script still running when the timeout fires is interrupted and its
// runtime is thrown away.
func (e *Executor) Decode(script string, fPort uint8, bytes []byte) (map[string]interface{}, error) {
	e.count(func(m *ExecutorMetrics) { m.TotalExecutions++ })

	vm := e.vmPool.Get()
	timer := time.AfterFunc(e.timeout, func() {
		vm.Interrupt(ErrTimeout)
	})

	out, err := e.decodeInVM(vm, script, fPort, bytes)
	timer.Stop()

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		e.count(func(m *ExecutorMetrics) { m.TotalTimeouts++ })
		e.logger.Warn("decoder interrupted", "component", "codec", "timeout", e.timeout)
		return nil, ErrTimeout
	}
	e.vmPool.Put(vm)

	if err != nil {
		e.count(func(m *ExecutorMetrics) { m.TotalErrors++ })
		return nil, err
	}
	return out, nil
}

func (e *Executor) decodeInVM(vm *goja.Runtime, script string, fPort uint8, bytes []byte) (map[string]interface{}, error) {
	if _, err := vm.RunString(script); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}

	decodeFunc, ok := goja.AssertFunction(vm.Get("Decode"))
	if !ok {
		return nil, ErrDecodeFunctionNotFound
	}

	jsBytes := make([]interface{}, len(bytes))
	for i, b := range bytes {
		jsBytes[i] = int64(b)
	}

	result, err := decodeFunc(goja.Undefined(), vm.ToValue(fPort), vm.NewArray(jsBytes...))
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, err
		}
		return nil, fmt.Errorf("decode execution error: %w", err)
	}

	exported := result.Export()
	if exported == nil {
		return map[string]interface{}{}, nil
	}
	obj, ok := exported.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", ErrInvalidReturnType, exported)
	}
	return obj, nil
}

func (e *Executor) count(f func(*ExecutorMetrics)) {
	e.metrics.mu.Lock()
	f(e.metrics)
	e.metrics.mu.Unlock()
}

// GetMetrics returns a snapshot of the counters.
func (e *Executor) GetMetrics() ExecutorMetrics {
	e.metrics.mu.RLock()
	defer e.metrics.mu.RUnlock()
	return ExecutorMetrics{
		TotalExecutions: e.metrics.TotalExecutions,
		TotalErrors:     e.metrics.TotalErrors,
		TotalTimeouts:   e.metrics.TotalTimeouts,
	}
}

func (e *Executor) ResetMetrics() {
	e.count(func(m *ExecutorMetrics) {
		m.TotalExecutions = 0
		m.TotalErrors = 0
		m.TotalTimeouts = 0
	})
}

func (e *Executor) Close() {
	if e.vmPool != nil {
		e.vmPool.Close()
	}
}
