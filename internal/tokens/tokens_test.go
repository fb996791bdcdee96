package tokens

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/deptconnect/portal/pkg/errs"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-32-bytes-should-be-long-enough"

func seg(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func TestIssueAndParse(t *testing.T) {
	raw, issued, err := Issue(secret, "user-123", "test@example.com", "", 2*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, issued.SessionID)

	claims, err := Parse(secret, raw)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.IdentityID())
	require.Equal(t, "test@example.com", claims.Email)
	require.Equal(t, issued.SessionID, claims.SessionID)
	require.InDelta(t, float64(2*time.Minute), float64(claims.Remaining()), float64(5*time.Second))
}

func TestIssueKeepsSessionID(t *testing.T) {
	_, c, err := Issue(secret, "u", "u@x.test", "sess-1", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "sess-1", c.SessionID)
}

func TestParse_Expired(t *testing.T) {
	raw, _, err := Issue(secret, "u2", "x@x", "", -time.Second)
	require.NoError(t, err)
	_, err = Parse(secret, raw)
	require.Error(t, err)
	require.Equal(t, errs.CodeInvalidToken, errs.CodeOf(err))
	require.Contains(t, errs.Message(err), "expired")
}

func TestParse_WrongSecretFails(t *testing.T) {
	raw, _, err := Issue(secret, "u3", "bob@example.com", "", 2*time.Minute)
	require.NoError(t, err)
	_, err = Parse("different-secret-xxxxxxxxxxxxxxxx", raw)
	require.Equal(t, errs.CodeInvalidToken, errs.CodeOf(err))
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse(secret, "not.a.jwt")
	require.True(t, errs.IsAuth(err))
}

// Rejected when alg=none (unsigned token)
func TestParse_AlgNoneRejected(t *testing.T) {
	headerEnc := seg([]byte(`{"alg":"none"}`))
	payloadEnc := seg([]byte(`{"sub":"u-none","iss":"deptconnect-portal","exp":9999999999}`))
	_, err := Parse(secret, headerEnc+"."+payloadEnc+".")
	require.Error(t, err)
}

// Tampering with payload must fail signature verification
func TestParse_TamperedPayload(t *testing.T) {
	raw, _, err := Issue(secret, "user-t", "t@example.com", "", 5*time.Minute)
	require.NoError(t, err)
	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	payload, err := jwt.NewParser().DecodeSegment(parts[1])
	require.NoError(t, err)
	parts[1] = seg([]byte(strings.Replace(string(payload), "user-t", "attacker", 1)))
	_, err = Parse(secret, strings.Join(parts, "."))
	require.Error(t, err)
}
