package tenancy

import "strings"

// SubdomainCandidate derives a tenant identifier candidate from a request
// host name. Returns empty string when the host yields no candidate.
//
// The port is stripped first. Literal IP addresses never yield a
// candidate. With a configured base domain, the candidate is the label
// immediately before the base domain; the bare base domain and the label
// "www" are rejected, as is any host not under the base domain. Without
// a base domain, the candidate is the first label of a host with at
// least two labels, again rejecting "www".
func SubdomainCandidate(host, baseDomain string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return ""
	}

	// Strip the port. Bracketed IPv6 hosts keep their colons and are
	// rejected below as IP addresses.
	if i := strings.Index(host, ":"); i >= 0 && !strings.Contains(host, "]") {
		host = host[:i]
	}

	if isIPAddress(host) {
		return ""
	}

	if baseDomain != "" {
		baseDomain = strings.ToLower(baseDomain)
		if host == baseDomain {
			return ""
		}
		if !strings.HasSuffix(host, "."+baseDomain) {
			return ""
		}
		sub := strings.TrimSuffix(host, "."+baseDomain)
		labels := splitLabels(sub)
		if len(labels) == 0 {
			return ""
		}
		candidate := labels[len(labels)-1]
		if candidate == "www" {
			return ""
		}
		return candidate
	}

	labels := splitLabels(host)
	if len(labels) < 2 {
		return ""
	}
	if labels[0] == "www" {
		return ""
	}
	return labels[0]
}

// isIPAddress reports whether the host is an IPv4 dotted quad or contains
// a colon (IPv6).
func isIPAddress(host string) bool {
	if strings.Contains(host, ":") {
		return true
	}
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if len(p) == 0 || len(p) > 3 {
			return false
		}
		for _, c := range p {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}

func splitLabels(s string) []string {
	var labels []string
	for _, l := range strings.Split(s, ".") {
		if l != "" {
			labels = append(labels, l)
		}
	}
	return labels
}
