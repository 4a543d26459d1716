package permission

// Bypass validates the pairing of --dangerously-skip-permissions with
// --allow-dangerously-skip-permissions. The bypass flag requires the allow
// flag as a safety measure, matching the real CLI.
type Bypass struct {
	// AllowBypass mirrors --allow-dangerously-skip-permissions.
	AllowBypass bool
	// Requested mirrors --dangerously-skip-permissions.
	Requested bool
}

// Active reports whether every permission check is skipped.
func (b Bypass) Active() bool { return b.Requested && b.AllowBypass }

// NotAllowed reports the error condition of a bypass request without the
// allow flag.
func (b Bypass) NotAllowed() bool { return b.Requested && !b.AllowBypass }

// BypassNotAllowedMessage is printed when bypass is requested without the
// allow flag.
const BypassNotAllowedMessage = "Error: --dangerously-skip-permissions requires --allow-dangerously-skip-permissions to be set.\n" +
	"This is a safety measure. Only use this in sandboxed environments with no internet access."
