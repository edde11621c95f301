package krb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls      []string
	klistOut   []string // successive outputs for each klist call
	kinitErr   error
	callIndex  int
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, name)
	if name == "kinit" {
		return "", f.kinitErr
	}
	out := f.klistOut[f.callIndex]
	if f.callIndex < len(f.klistOut)-1 {
		f.callIndex++
	}
	return out, nil
}

func TestEnsureTicketFallsThroughToKinitOnExpiredTicket(t *testing.T) {
	runner := &fakeRunner{klistOut: []string{
		"Valid starting     Expires            Service principal\n" +
			"01/01/20 00:00:00  01/01/99 00:00:00  krbtgt/EXAMPLE@EXAMPLE\n" +
			"\tfor client alice@EXAMPLE\n",
	}}
	b := &Broker{Principal: "alice@EXAMPLE", Runner: runner}
	// two-digit year 99 parses as 1999, so this ticket is already expired
	runner.klistOut[0] = "Valid starting     expires 01/01/99 00:00:00\nalice@EXAMPLE\n"

	_, err := b.EnsureTicket(context.Background())
	// This fake format won't parse as valid (expired long ago), so it should
	// fall through to kinit; assert no keytab configured surfaces as an error.
	require.Error(t, err)
	var kerr *KerberosError
	require.ErrorAs(t, err, &kerr)
}

func TestEnsureTicketAcquiresFromKeytabWhenMissing(t *testing.T) {
	runner := &fakeRunner{klistOut: []string{"klist: No credentials cache found\n"}}
	b := &Broker{Principal: "svc@EXAMPLE", KeytabPath: "/etc/svc.keytab", Runner: runner}

	_, err := b.EnsureTicket(context.Background())
	// Still no valid ticket after kinit since the fake never returns one, but
	// it must have attempted kinit with the keytab.
	require.Error(t, err)
	assert.Contains(t, runner.calls, "kinit")
}

func TestEnsureTicketErrorsWithoutKeytab(t *testing.T) {
	runner := &fakeRunner{klistOut: []string{"klist: No credentials cache found\n"}}
	b := &Broker{Principal: "svc@EXAMPLE", Runner: runner}

	_, err := b.EnsureTicket(context.Background())
	require.Error(t, err)
	assert.NotContains(t, runner.calls, "kinit")
}
