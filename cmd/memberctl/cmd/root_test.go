package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexlup06-authgate/memberauth-go/internal/testutil"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func resetFlags() {
	loginEmail, loginPassword = "", ""
	registerEmail, registerPassword, registerFirstName, registerLastName = "", "", "", ""
	whoamiRemote = false
	enquiryData, enquiryFile = "", ""
	portalAddr = ""
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func setupCLI(t *testing.T) *testutil.FakeAuth {
	t.Helper()

	fake := testutil.NewFakeAuth(t)
	fake.AddUser("member@example.com", "correct-horse")

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("MEMBER_API_BASE", fake.URL())
	t.Setenv("MEMBER_STORAGE", "bbolt")
	t.Setenv("MEMBER_BOLT_PATH", filepath.Join(dir, "session.db"))
	t.Setenv("LOG_LEVEL", "error")

	return fake
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestLoginWhoamiStatusLogout(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "", "login", "--email", "member@example.com", "--password", "correct-horse")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as member@example.com")

	out, err = runCLI(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "email: member@example.com")

	out, err = runCLI(t, "", "whoami", "--remote")
	require.NoError(t, err)
	assert.Contains(t, out, "email: member@example.com")

	out, err = runCLI(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "state: authed")

	out, err = runCLI(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	_, err = runCLI(t, "", "whoami")
	require.EqualError(t, err, "not signed in")

	out, err = runCLI(t, "", "status", "/member?tab=golf")
	require.NoError(t, err)
	assert.Contains(t, out, "state: guest")
	assert.Contains(t, out, "redirect: /?return_to=%2Fmember%3Ftab%3Dgolf")
}

func TestLogin_PasswordFromStdin(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "correct-horse\n", "login", "--email", "member@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as member@example.com")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	setupCLI(t)

	_, err := runCLI(t, "", "login", "--email", "member@example.com", "--password", "wrong")
	require.EqualError(t, err, "Invalid email or password")
}

func TestRegister(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "", "register", "--email", "new@example.com", "--password", "long-enough-pw", "--first-name", "Jane")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered and signed in as new@example.com")
}

func TestRegister_FieldErrors(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "", "register", "--email", "nope", "--password", "short")
	require.EqualError(t, err, "value is not a valid email address, password must be at least 8 characters")
	assert.Contains(t, out, "email: value is not a valid email address")
	assert.Contains(t, out, "password: password must be at least 8 characters")
}

func TestEnquiryKinds(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "", "enquiry", "kinds")
	require.NoError(t, err)
	assert.Contains(t, out, "/enquiries/special-events")
	assert.Contains(t, out, "/enquiries/shopping-unique-items")
}

func TestEnquirySubmit(t *testing.T) {
	fake := setupCLI(t)

	_, err := runCLI(t, "", "login", "--email", "member@example.com", "--password", "correct-horse")
	require.NoError(t, err)

	out, err := runCLI(t, "", "enquiry", "submit", "golf", "--data", `{"players":4}`)
	require.NoError(t, err)
	assert.Contains(t, out, ": received")

	out, err = runCLI(t, `{"resort":"Zermatt"}`, "enquiry", "submit", "ski", "--file", "-")
	require.NoError(t, err)
	assert.Contains(t, out, ": received")
	assert.Equal(t, int64(2), fake.Enquiries.Load())
}

func TestEnquirySubmit_RequiresPayload(t *testing.T) {
	setupCLI(t)

	_, err := runCLI(t, "", "enquiry", "submit", "golf")
	require.EqualError(t, err, "one of --data or --file is required")
}

func TestPasswordFrom(t *testing.T) {
	pw, err := passwordFrom(strings.NewReader("ignored\n"), "flag-pw")
	require.NoError(t, err)
	assert.Equal(t, "flag-pw", pw)

	pw, err = passwordFrom(strings.NewReader("typed\r\n"), "")
	require.NoError(t, err)
	assert.Equal(t, "typed", pw)

	pw, err = passwordFrom(strings.NewReader("no-newline"), "")
	require.NoError(t, err)
	assert.Equal(t, "no-newline", pw)

	_, err = passwordFrom(strings.NewReader(""), "")
	require.Error(t, err)
}
