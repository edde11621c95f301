// Package krb is the Kerberos credential broker: it lazily ensures a
// non-expired ticket is present before a tool that needs one (lookaside
// cache upload/download, dist-git push over GSSAPI) runs, acquiring a fresh
// one from a keytab when the cache is empty or stale.
package krb

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// KerberosError wraps any failure in ensuring a ticket, so callers can
// distinguish "credential broker failed" from other tool/transport errors
// with a single errors.As check.
type KerberosError struct {
	Op  string
	Err error
}

func (e *KerberosError) Error() string { return fmt.Sprintf("kerberos %s: %v", e.Op, e.Err) }
func (e *KerberosError) Unwrap() error { return e.Err }

// Broker ensures a Kerberos ticket is available, acquiring one from a
// keytab on demand. It holds no ticket state itself — klist/kinit and the
// ccache file are the source of truth — so it is safe to share across
// goroutines.
type Broker struct {
	Principal  string
	KeytabPath string
	CachePath  string // value for KRB5CCNAME; empty uses the process default

	// Runner executes the klist/kinit commands; overridden in tests.
	Runner CommandRunner
}

// CommandRunner abstracts subprocess execution for tests.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout string, err error)
}

type execRunner struct{ env []string }

func (r execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), r.env...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// NewBroker builds a Broker using real subprocess calls, with CachePath
// exported to the environment of every command it runs.
func NewBroker(principal, keytabPath, cachePath string) *Broker {
	var env []string
	if cachePath != "" {
		env = append(env, "KRB5CCNAME="+cachePath)
	}
	return &Broker{
		Principal:  principal,
		KeytabPath: keytabPath,
		CachePath:  cachePath,
		Runner:     execRunner{env: env},
	}
}

var validUntilRegex = regexp.MustCompile(`(?m)^\s*Valid starting.*expires\s+(.+)$`)

// EnsureTicket returns the principal once a non-expired ticket is confirmed
// present, acquiring a fresh one from the keytab if klist shows none or an
// expired one.
func (b *Broker) EnsureTicket(ctx context.Context) (string, error) {
	if ok, err := b.hasValidTicket(ctx); err != nil {
		return "", &KerberosError{Op: "klist", Err: err}
	} else if ok {
		return b.Principal, nil
	}

	if b.KeytabPath == "" {
		return "", &KerberosError{Op: "kinit", Err: fmt.Errorf("no valid ticket and no keytab configured for %s", b.Principal)}
	}

	if _, err := b.Runner.Run(ctx, "kinit", "-k", "-t", b.KeytabPath, b.Principal); err != nil {
		return "", &KerberosError{Op: "kinit", Err: err}
	}

	if ok, err := b.hasValidTicket(ctx); err != nil {
		return "", &KerberosError{Op: "klist", Err: err}
	} else if !ok {
		return "", &KerberosError{Op: "kinit", Err: fmt.Errorf("ticket still missing after kinit for %s", b.Principal)}
	}
	return b.Principal, nil
}

// hasValidTicket shells out to klist and looks for a non-expired credential
// for b.Principal. A missing cache or parse failure is treated as "no
// ticket" rather than an error, since both are the expected state on first
// run.
func (b *Broker) hasValidTicket(ctx context.Context) (bool, error) {
	out, err := b.Runner.Run(ctx, "klist")
	if err != nil {
		return false, nil
	}
	if !strings.Contains(out, b.Principal) {
		return false, nil
	}
	m := validUntilRegex.FindStringSubmatch(out)
	if m == nil {
		return false, nil
	}
	expires, err := time.Parse("01/02/06 15:04:05", strings.TrimSpace(m[1]))
	if err != nil {
		return false, nil
	}
	return time.Now().Before(expires), nil
}
