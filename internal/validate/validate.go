package validate

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// HostClass identifies which accepted host form a panel address uses.
type HostClass int

const (
	HostInvalid HostClass = iota
	HostLocalhost
	HostIPv4
	HostIPv6
	HostDomain
)

func (c HostClass) String() string {
	switch c {
	case HostLocalhost:
		return "localhost"
	case HostIPv4:
		return "ipv4"
	case HostIPv6:
		return "ipv6"
	case HostDomain:
		return "domain"
	default:
		return "invalid"
	}
}

// Rule names the panel address check that failed.
type Rule string

const (
	RuleScheme Rule = "scheme"
	RuleParse  Rule = "parse"
	RuleHost   Rule = "host"
	RuleClass  Rule = "host-class"
)

// ValidationError reports a panel address rejected by local format rules.
// It is surfaced to the user and never forwarded to the native host.
type ValidationError struct {
	Address string
	Rule    Rule
	Detail  string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("invalid panel address %q (%s)", e.Address, e.Rule)
	}
	return fmt.Sprintf("invalid panel address %q (%s): %s", e.Address, e.Rule, e.Detail)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// domainRe matches alphanumeric labels of 1-63 chars with internal hyphens,
// at least one dot, and an alphabetic TLD of 2+ chars.
var domainRe = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)

var ipv4Re = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})$`)

// PanelAddress reports whether candidate is an acceptable panel address.
func PanelAddress(candidate string) bool {
	return CheckPanelAddress(candidate) == nil
}

// CheckPanelAddress applies the panel address rules in order and returns a
// *ValidationError naming the first rule that failed.
func CheckPanelAddress(candidate string) error {
	_, err := Classify(candidate)
	return err
}

// Classify validates candidate like CheckPanelAddress and also reports which
// host class it matched.
func Classify(candidate string) (HostClass, error) {
	if !strings.HasPrefix(candidate, "http://") && !strings.HasPrefix(candidate, "https://") {
		return HostInvalid, &ValidationError{Address: candidate, Rule: RuleScheme, Detail: "must start with http:// or https://"}
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return HostInvalid, &ValidationError{Address: candidate, Rule: RuleParse, Detail: err.Error()}
	}

	if u.Host == "" || u.Hostname() == "" {
		return HostInvalid, &ValidationError{Address: candidate, Rule: RuleHost, Detail: "missing host"}
	}

	if port := u.Port(); port != "" {
		if n, err := strconv.Atoi(port); err != nil || n > 65535 {
			return HostInvalid, &ValidationError{Address: candidate, Rule: RuleParse, Detail: fmt.Sprintf("port %s out of range", port)}
		}
	}

	host := u.Hostname()
	if strings.HasPrefix(u.Host, "[") {
		host = "[" + host + "]"
	}
	class := ClassifyHost(host)
	if class == HostInvalid {
		return HostInvalid, &ValidationError{Address: candidate, Rule: RuleClass, Detail: fmt.Sprintf("unsupported host %q", u.Hostname())}
	}
	return class, nil
}

// ClassifyHost returns the first host class host matches. IPv6 literals must
// be bracketed.
func ClassifyHost(host string) HostClass {
	switch {
	case host == "localhost":
		return HostLocalhost
	case isIPv4(host):
		return HostIPv4
	case isBracketedIPv6(host):
		return HostIPv6
	case len(host) <= 253 && domainRe.MatchString(host):
		return HostDomain
	default:
		return HostInvalid
	}
}

func isIPv4(host string) bool {
	m := ipv4Re.FindStringSubmatch(host)
	if m == nil {
		return false
	}
	for _, octet := range m[1:] {
		n, err := strconv.Atoi(octet)
		if err != nil || n > 255 {
			return false
		}
	}
	return true
}

func isBracketedIPv6(host string) bool {
	if len(host) < 3 || host[0] != '[' || host[len(host)-1] != ']' {
		return false
	}
	inner := host[1 : len(host)-1]
	if zone := strings.IndexByte(inner, '%'); zone >= 0 {
		inner = inner[:zone]
	}
	ip := net.ParseIP(inner)
	return ip != nil && strings.Contains(inner, ":")
}

// HTTPURL ensures the URL uses http or https scheme and has a non-empty host.
// It is used for configured default origins, which are not subject to the
// stricter panel address host rules.
func HTTPURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		// OK
	case "":
		return fmt.Errorf("URL missing scheme: %s", rawURL)
	default:
		return fmt.Errorf("URL scheme %q not allowed (only http/https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL missing host: %s", rawURL)
	}
	return nil
}
