package helpers

import (
	"errors"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
)

var trackingQueryParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"utm_id":       {},
	"gclid":        {},
	"fbclid":       {},
	"msclkid":      {},
}

// CanonicalURL normalises a resource link: lowercased scheme and host, default
// ports and fragments removed, tracking parameters dropped and the remaining
// query sorted. Schemeless input defaults to https. tel: and mailto: links are
// returned trimmed but otherwise untouched.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "tel:") || strings.HasPrefix(lower, "mailto:") {
		return raw, nil
	}

	parsed, err := parseURLPreserveHost(raw)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return "", errors.New("url missing host")
	}
	if h, port, ok := strings.Cut(host, ":"); ok {
		if (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443") {
			host = h
		}
	}
	parsed.Host = host

	if parsed.Path == "" {
		parsed.Path = "/"
	}
	clean := path.Clean(parsed.Path)
	if clean == "." {
		clean = "/"
	}
	if clean != "/" && strings.HasSuffix(parsed.Path, "/") {
		clean += "/"
	}
	parsed.Path = clean
	parsed.RawPath = ""
	parsed.Fragment = ""

	query := parsed.Query()
	for key := range query {
		if _, drop := trackingQueryParams[strings.ToLower(key)]; drop {
			query.Del(key)
		}
	}
	if len(query) == 0 {
		parsed.RawQuery = ""
	} else {
		keys := make([]string, 0, len(query))
		for key := range query {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, key := range keys {
			values := append([]string(nil), query[key]...)
			sort.Strings(values)
			for _, value := range values {
				if b.Len() > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(key))
				if value != "" {
					b.WriteByte('=')
					b.WriteString(url.QueryEscape(value))
				}
			}
		}
		parsed.RawQuery = b.String()
	}
	return parsed.String(), nil
}

// Host returns the lowercased host of raw without a leading "www.", or "" when raw has none.
func Host(raw string) string {
	parsed, err := parseURLPreserveHost(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

var digitsRe = regexp.MustCompile(`\d+`)

// TelURL derives a tel: link from a free-text contact such as "(309) 676-6416"
// or "Dial 2-1-1". It returns "" when no usable number is present.
func TelURL(contact string) string {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return ""
	}
	digits := strings.Join(digitsRe.FindAllString(contact, -1), "")
	switch {
	case digits == "211":
		return "tel:211"
	case len(digits) == 10:
		return "tel:" + digits[:3] + "-" + digits[3:6] + "-" + digits[6:]
	case len(digits) == 11 && digits[0] == '1':
		return "tel:" + digits[1:4] + "-" + digits[4:7] + "-" + digits[7:]
	case len(digits) >= 7:
		return "tel:" + digits
	default:
		return ""
	}
}

// parseURLPreserveHost attempts to parse raw into a url.URL, handling schemeless URLs.
func parseURLPreserveHost(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" && parsed.Host == "" {
		if strings.HasPrefix(raw, "//") {
			return url.Parse("https:" + raw)
		}
		return url.Parse("https://" + raw)
	}
	return parsed, nil
}
