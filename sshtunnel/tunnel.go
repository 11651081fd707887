// Package sshtunnel forwards a local port to a database host through an SSH server.
package sshtunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"

	"github.com/keboola/db-extractor-common-sub000/core"
)

const (
	DefaultSSHPort = 22
	dialTimeout    = 30 * time.Second
)

type Config struct {
	Host string
	Port int
	User string
	// PrivateKey is a PEM encoded private key
	PrivateKey string

	// LocalPort is the forwarded local port, a free port is picked when 0
	LocalPort  int
	RemoteHost string
	RemotePort int
}

func (c *Config) validate() error {
	switch {
	case c.Host == "":
		return errors.New("SSH host is not set")
	case c.User == "":
		return errors.New("SSH user is not set")
	case c.PrivateKey == "":
		return errors.New("SSH private key is not set")
	case c.RemoteHost == "" || c.RemotePort == 0:
		return errors.New("SSH remote host and port are required")
	}
	return nil
}

// Tunnel is an open port forward. Every accepted local connection is piped to the remote
// address over the SSH connection.
type Tunnel struct {
	client   *ssh.Client
	listener net.Listener
	remote   string
	log      logrus.FieldLogger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

type Option func(*options)

type options struct {
	policy *core.RetryPolicy
	log    logrus.FieldLogger
	sleep  func(context.Context, time.Duration) error
}

// WithRetryPolicy overrides the policy of establishing the SSH connection.
func WithRetryPolicy(policy *core.RetryPolicy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

// Open connects to the SSH server and starts forwarding. Failed SSH connections are retried,
// the final failure is a *core.UserError.
func Open(ctx context.Context, cfg *Config, opts ...Option) (*Tunnel, error) {
	o := &options{
		policy: core.DefaultConnectRetryPolicy(),
		log:    logrus.StandardLogger(),
		sleep:  sleep,
	}
	for _, opt := range opts {
		opt(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, core.NewUserError("Unable to open SSH tunnel: %w", err)
	}

	signer, err := ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
	if err != nil {
		return nil, core.NewUserError("Unable to open SSH tunnel: invalid private key: %w", err)
	}

	port := cfg.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	clientConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}

	var client *ssh.Client
	for attempt := 1; ; attempt++ {
		client, err = ssh.Dial("tcp", addr, clientConfig)
		if err == nil {
			break
		}
		if attempt >= o.policy.Attempts() {
			return nil, core.NewUserError("Unable to open SSH tunnel: %w Tried %d times.", err, attempt)
		}

		delay := o.policy.BackoffDelay(attempt)
		o.log.Warnf("SSH connection to %s failed: %s. Retrying in %s [%dx]", addr, err, delay, attempt)
		if serr := o.sleep(ctx, delay); serr != nil {
			return nil, core.NewUserError("Unable to open SSH tunnel: %w", err)
		}
	}

	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.LocalPort)))
	if err != nil {
		_ = client.Close()
		return nil, core.NewApplicationError("Unable to open SSH tunnel: local port: %w", err)
	}

	t := &Tunnel{
		client:   client,
		listener: listener,
		remote:   net.JoinHostPort(cfg.RemoteHost, strconv.Itoa(cfg.RemotePort)),
		log:      o.log,
	}

	t.wg.Add(1)
	go t.accept()

	o.log.Infof("SSH tunnel %s -> %s -> %s open", listener.Addr(), addr, t.remote)
	return t, nil
}

// Endpoint returns the local host and port to connect to instead of the remote address.
func (t *Tunnel) Endpoint() (string, int) {
	addr := t.listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func (t *Tunnel) accept() {
	defer t.wg.Done()

	for {
		local, err := t.listener.Accept()
		if err != nil {
			// listener closed
			return
		}

		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			if err := t.forward(local); err != nil {
				t.log.Debugf("ssh tunnel: %s", err)
			}
		}()
	}
}

// forward pipes both directions until one side closes.
func (t *Tunnel) forward(local net.Conn) error {
	defer local.Close()

	remote, err := t.client.Dial("tcp", t.remote)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.remote, err)
	}
	defer remote.Close()

	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(remote, local)
		_ = remote.Close()
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(local, remote)
		_ = local.Close()
		return err
	})

	err = g.Wait()
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Close stops forwarding and closes the SSH connection.
func (t *Tunnel) Close() error {
	var err error
	t.closeOnce.Do(func() {
		lerr := t.listener.Close()
		cerr := t.client.Close()
		t.wg.Wait()
		err = errors.Join(lerr, cerr)
	})
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
