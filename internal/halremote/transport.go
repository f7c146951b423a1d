package halremote

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"
)

// TransportHandler receives deliveries from the transport's receive
// loops. Implementations must be safe to call from transport
// goroutines; the component serializes the calls onto its event loop.
type TransportHandler interface {
	// CommandMessage delivers a reply on the command channel. Command
	// replies carry a single payload frame.
	CommandMessage(frames [][]byte)
	// UpdateMessage delivers a broadcast on the update channel. Update
	// messages carry two frames: topic and payload.
	UpdateMessage(frames [][]byte)
	// TransportError reports a socket-level failure.
	TransportError(err error)
}

// Transport wires the component to the two halrcmd/halrcomp sockets.
type Transport interface {
	SetIdentity(id string)
	SetHandler(h TransportHandler)
	Connect(cmdURI, updateURI string) error
	SendCommand(data []byte) error
	Subscribe(topic string) error
	Unsubscribe(topic string) error
	Close() error
}

// zmqTransport implements Transport on ZeroMQ: a DEALER socket for the
// command channel, identified by a stable client identity, and a SUB
// socket for the update channel.
type zmqTransport struct {
	logger   *zap.Logger
	identity string
	handler  TransportHandler

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	cmd       zmq4.Socket
	sub       zmq4.Socket
	connected bool
	wg        sync.WaitGroup
}

// NewZmqTransport creates a disconnected transport.
func NewZmqTransport(logger *zap.Logger) Transport {
	return &zmqTransport{logger: logger}
}

func (t *zmqTransport) SetIdentity(id string) {
	t.identity = id
}

func (t *zmqTransport) SetHandler(h TransportHandler) {
	t.handler = h
}

// Connect dials both endpoints and starts the receive loops.
func (t *zmqTransport) Connect(cmdURI, updateURI string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connected {
		return fmt.Errorf("transport already connected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := zmq4.NewDealer(ctx, zmq4.WithID(zmq4.SocketIdentity(t.identity)))
	sub := zmq4.NewSub(ctx)

	if err := cmd.Dial(cmdURI); err != nil {
		cancel()
		cmd.Close()
		sub.Close()
		return fmt.Errorf("dial command socket %s: %w", cmdURI, err)
	}
	if err := sub.Dial(updateURI); err != nil {
		cancel()
		cmd.Close()
		sub.Close()
		return fmt.Errorf("dial update socket %s: %w", updateURI, err)
	}

	t.ctx = ctx
	t.cancel = cancel
	t.cmd = cmd
	t.sub = sub
	t.connected = true

	t.wg.Add(2)
	go t.recvLoop(cmd, t.handler.CommandMessage)
	go t.recvLoop(sub, t.handler.UpdateMessage)

	t.logger.Debug("sockets connected",
		zap.String("halrcmd_uri", cmdURI),
		zap.String("halrcomp_uri", updateURI),
		zap.String("identity", t.identity))

	return nil
}

func (t *zmqTransport) recvLoop(sock zmq4.Socket, deliver func([][]byte)) {
	defer t.wg.Done()

	for {
		msg, err := sock.Recv()
		if err != nil {
			select {
			case <-t.ctx.Done():
				// closed by us
			default:
				t.handler.TransportError(fmt.Errorf("socket receive: %w", err))
			}
			return
		}
		deliver(msg.Frames)
	}
}

func (t *zmqTransport) SendCommand(data []byte) error {
	t.mu.Lock()
	sock := t.cmd
	connected := t.connected
	t.mu.Unlock()

	if !connected {
		return fmt.Errorf("transport not connected")
	}
	if err := sock.Send(zmq4.NewMsg(data)); err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	return nil
}

func (t *zmqTransport) Subscribe(topic string) error {
	t.mu.Lock()
	sock := t.sub
	connected := t.connected
	t.mu.Unlock()

	if !connected {
		return fmt.Errorf("transport not connected")
	}
	if err := sock.SetOption(zmq4.OptionSubscribe, topic); err != nil {
		return fmt.Errorf("subscribe %q: %w", topic, err)
	}
	return nil
}

func (t *zmqTransport) Unsubscribe(topic string) error {
	t.mu.Lock()
	sock := t.sub
	connected := t.connected
	t.mu.Unlock()

	if !connected {
		return fmt.Errorf("transport not connected")
	}
	if err := sock.SetOption(zmq4.OptionUnsubscribe, topic); err != nil {
		return fmt.Errorf("unsubscribe %q: %w", topic, err)
	}
	return nil
}

// Close tears down both sockets; idempotent.
func (t *zmqTransport) Close() error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil
	}
	t.connected = false
	t.cancel()
	cmdErr := t.cmd.Close()
	subErr := t.sub.Close()
	t.cmd = nil
	t.sub = nil
	t.mu.Unlock()

	t.wg.Wait()

	if cmdErr != nil {
		return cmdErr
	}
	return subErr
}
