// Package sshtunnel reaches a relational store that is only exposed behind an
// SSH bastion. Connections are forwarded per dial over one SSH session; no
// local port is opened.
package sshtunnel

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

type Config struct {
	Host           string
	Port           int
	User           string
	PrivateKeyPath string
	// KnownHostsPath pins the bastion key. Empty disables host key checking.
	KnownHostsPath string
	Timeout        time.Duration
}

func (c Config) Enabled() bool { return strings.TrimSpace(c.Host) != "" }

type Tunnel struct {
	log    *logger.Logger
	client *ssh.Client
}

func Open(ctx context.Context, log *logger.Logger, cfg Config) (*Tunnel, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("sshtunnel: host required")
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	signer, err := loadSigner(cfg.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	l := log.With("component", "SSHTunnel", "bastion", cfg.Host)
	hostKeys := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsPath != "" {
		hostKeys, err = knownhosts.New(cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("sshtunnel: known_hosts: %w", err)
		}
	} else {
		l.Warn("SSH host key checking disabled; set SSH_TUNNEL_KNOWN_HOSTS to pin the bastion")
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dialer := net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("sshtunnel: dial %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         cfg.Timeout,
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sshtunnel: handshake: %w", err)
	}
	l.Info("SSH tunnel established", "user", cfg.User)
	return &Tunnel{log: l, client: ssh.NewClient(sshConn, chans, reqs)}, nil
}

// DialContext opens a forwarded TCP connection to addr as seen from the bastion.
func (t *Tunnel) DialContext(ctx context.Context, addr string) (net.Conn, error) {
	return t.client.DialContext(ctx, "tcp", addr)
}

// RegisterMySQL makes DSNs of the form user:pass@<network>(host:3306)/db dial
// through the tunnel.
func (t *Tunnel) RegisterMySQL(network string) {
	mysql.RegisterDialContext(network, func(ctx context.Context, addr string) (net.Conn, error) {
		return t.DialContext(ctx, addr)
	})
}

func (t *Tunnel) Close() error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Close()
}

func loadSigner(path string) (ssh.Signer, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sshtunnel: private key path required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sshtunnel: read key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("sshtunnel: parse key: %w", err)
	}
	return signer, nil
}
