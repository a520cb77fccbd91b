package controller

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-flexgui/flexmsg"
	"github.com/arloliu/go-flexgui/logger"
)

// DefaultPort is the TCP port the controller listens on.
const DefaultPort = 9876

// NotificationHandler receives the asynchronous notifications of a session.
// It runs on the receive goroutine and must not block.
type NotificationHandler func(note *flexmsg.Notification)

// ConnectionConfig represents the configuration parameters of a controller connection.
// The same configuration is used by the monitors a session opens.
type ConnectionConfig struct {
	mu sync.RWMutex

	// host specifies the host of the controller.
	host string

	// port specifies the TCP port number of the controller.
	port int

	// replyTimeout bounds the wait for the reply of a read, write or command.
	// Defaults to 5 seconds.
	replyTimeout time.Duration

	// frameTimeout bounds the arrival of an envelope payload once its header
	// has been read. Defaults to 5 seconds.
	frameTimeout time.Duration

	// writeTimeout bounds the write of one envelope to the socket.
	// Defaults to 5 seconds.
	writeTimeout time.Duration

	// connectTimeout bounds the TCP connection establishment.
	// Defaults to 3 seconds.
	connectTimeout time.Duration

	// closeTimeout bounds the wait for the connection goroutines on Close.
	// Defaults to 3 seconds.
	closeTimeout time.Duration

	// motorPulseDelay is the pause between the two selectMotorOn commands of StartMotor.
	// Defaults to 50 milliseconds.
	motorPulseDelay time.Duration

	// monitorQueueSize defines the number of pushed values buffered between a
	// monitor connection and its callback. Defaults to 10.
	monitorQueueSize int

	// notificationHandler is invoked for every notification of a session.
	notificationHandler NotificationHandler

	// logger provides a logger instance for connection events and errors.
	logger logger.Logger
}

// NewConnectionConfig creates a new connection configuration with the given host, port number, and optional functional options.
//
// The port parameter may be 0 to use DefaultPort.
//
// Returns a pointer to the initialized ConnectionConfig and an error if any option failed to apply.
func NewConnectionConfig(host string, port int, opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		port:             DefaultPort,
		replyTimeout:     5 * time.Second,
		frameTimeout:     5 * time.Second,
		writeTimeout:     5 * time.Second,
		connectTimeout:   3 * time.Second,
		closeTimeout:     3 * time.Second,
		motorPulseDelay:  50 * time.Millisecond,
		monitorQueueSize: 10,
		logger:           logger.GetLogger(),
	}

	if err := withRemoteHost(host).apply(cfg); err != nil {
		return cfg, err
	}

	if port != 0 {
		if err := withPort(port).apply(cfg); err != nil {
			return cfg, err
		}
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Address returns the host:port of the controller.
func (cfg *ConnectionConfig) Address() string {
	return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))
}

func (cfg *ConnectionConfig) ReplyTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.replyTimeout
}

func (cfg *ConnectionConfig) FrameTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.frameTimeout
}

func (cfg *ConnectionConfig) WriteTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.writeTimeout
}

func (cfg *ConnectionConfig) ConnectTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.connectTimeout
}

func (cfg *ConnectionConfig) CloseTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.closeTimeout
}

func (cfg *ConnectionConfig) MotorPulseDelay() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.motorPulseDelay
}

func (cfg *ConnectionConfig) notificationCallback() NotificationHandler {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.notificationHandler
}

// ConnOption represents a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc struct {
	name      string
	runtime   bool
	applyFunc func(*ConnectionConfig) error
}

func (c *connOptFunc) apply(cfg *ConnectionConfig) error {
	if cfg == nil {
		return ErrConnConfigNil
	}

	if c.runtime {
		cfg.mu.Lock()
		defer cfg.mu.Unlock()
	}

	return c.applyFunc(cfg)
}

func newConnOptFunc(name string, runtime bool, f func(*ConnectionConfig) error) *connOptFunc {
	return &connOptFunc{
		name:      name,
		runtime:   runtime,
		applyFunc: f,
	}
}

// withRemoteHost sets the host of the controller.
// An error is returned if host is neither an IP address nor a resolvable name.
func withRemoteHost(host string) ConnOption {
	return newConnOptFunc("withRemoteHost", false, func(cfg *ConnectionConfig) error {
		if ip := net.ParseIP(host); ip != nil {
			cfg.host = host
			return nil
		}

		host = strings.TrimPrefix(host, ".")
		host = strings.TrimSuffix(host, ".")
		if host == "" {
			return errors.New("invalid host")
		}
		if _, err := net.LookupHost(host); err == nil {
			cfg.host = host
			return nil
		}

		return errors.New("invalid host")
	})
}

// withPort sets the TCP port number of the controller.
// An error is returned if the port number is out of the valid range (1-65535).
func withPort(port int) ConnOption {
	return newConnOptFunc("withPort", false, func(cfg *ConnectionConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port is out of range [1, 65535]")
		}
		cfg.port = port

		return nil
	})
}

// WithReplyTimeout sets the time a read, write or command waits for its reply.
// An error is returned if the timeout is outside the valid range (0.01-120 seconds).
//
// The default value is 5 seconds.
//
// This option can be changed at runtime.
func WithReplyTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithReplyTimeout", true, func(cfg *ConnectionConfig) error {
		if val < 10*time.Millisecond || val > 120*time.Second {
			return errors.New("reply timeout out of range [0.01, 120]")
		}
		cfg.replyTimeout = val

		return nil
	})
}

// WithFrameTimeout sets the time allowed for an envelope payload to arrive
// after its header. An error is returned if the timeout is outside the valid
// range (0.01-120 seconds).
//
// The default value is 5 seconds.
//
// This option can't be changed at runtime.
func WithFrameTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithFrameTimeout", false, func(cfg *ConnectionConfig) error {
		if val < 10*time.Millisecond || val > 120*time.Second {
			return errors.New("frame timeout out of range [0.01, 120]")
		}
		cfg.frameTimeout = val

		return nil
	})
}

// WithWriteTimeout sets the time allowed to write one envelope.
// An error is returned if the timeout is outside the valid range (0.01-120 seconds).
//
// The default value is 5 seconds.
//
// This option can be changed at runtime.
func WithWriteTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithWriteTimeout", true, func(cfg *ConnectionConfig) error {
		if val < 10*time.Millisecond || val > 120*time.Second {
			return errors.New("write timeout out of range [0.01, 120]")
		}
		cfg.writeTimeout = val

		return nil
	})
}

// WithConnectTimeout sets the timeout for establishing a connection.
// An error is returned if the timeout is outside the valid range (0.1-30 seconds).
//
// The default value is 3 seconds.
//
// This option can be changed at runtime; it applies to monitors opened afterwards.
func WithConnectTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithConnectTimeout", true, func(cfg *ConnectionConfig) error {
		if val < 100*time.Millisecond || val > 30*time.Second {
			return errors.New("connect timeout out of range [0.1, 30]")
		}
		cfg.connectTimeout = val

		return nil
	})
}

// WithCloseTimeout sets the timeout for closing a connection.
// An error is returned if the timeout is outside the valid range (0.1-30 seconds).
//
// The default value is 3 seconds.
//
// This option can be changed at runtime.
func WithCloseTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithCloseTimeout", true, func(cfg *ConnectionConfig) error {
		if val < 100*time.Millisecond || val > 30*time.Second {
			return errors.New("close timeout out of range [0.1, 30]")
		}
		cfg.closeTimeout = val

		return nil
	})
}

// WithMotorPulseDelay sets the pause between the "on" and "off" selectMotorOn
// commands of StartMotor. An error is returned if the delay is outside the
// valid range (0-5 seconds).
//
// The default value is 50 milliseconds.
//
// This option can be changed at runtime.
func WithMotorPulseDelay(val time.Duration) ConnOption {
	return newConnOptFunc("WithMotorPulseDelay", true, func(cfg *ConnectionConfig) error {
		if val < 0 || val > 5*time.Second {
			return errors.New("motor pulse delay out of range [0, 5]")
		}
		cfg.motorPulseDelay = val

		return nil
	})
}

// WithMonitorQueueSize sets the number of pushed values buffered between a
// monitor connection and its callback. A full queue stops reading from the
// monitor connection until the callback catches up.
//
// The queue size must be within the range of 1 to 1000.
//
// The default value is 10.
//
// This option can't be changed at runtime.
func WithMonitorQueueSize(size int) ConnOption {
	return newConnOptFunc("WithMonitorQueueSize", false, func(cfg *ConnectionConfig) error {
		if size < 1 || size > 1000 {
			return errors.New("the monitor queue size out of range [1, 1000]")
		}
		cfg.monitorQueueSize = size

		return nil
	})
}

// WithNotificationHandler sets the handler of controller notifications.
// Notifications are always logged; the handler is optional.
//
// This option can be changed at runtime.
func WithNotificationHandler(handler NotificationHandler) ConnOption {
	return newConnOptFunc("WithNotificationHandler", true, func(cfg *ConnectionConfig) error {
		cfg.notificationHandler = handler

		return nil
	})
}

// WithLogger sets the logger of the connection.
//
// The default logger is the global logger instance.
//
// This option can't be changed at runtime.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", false, func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
