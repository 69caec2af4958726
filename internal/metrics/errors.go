package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
	"unicode"
)

// ErrorLabel returns a short human-friendly label for a failed attempt,
// grouping transport errors by cause and HTTP failures by status code.
func ErrorLabel(err error, status int) string {
	if err == nil {
		if status > 0 {
			return fmt.Sprintf("HTTP %d", status)
		}
		return "Unknown error"
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "Connection refused"
	case errors.Is(err, syscall.ECONNRESET):
		return "Connection reset"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "Timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "DNS lookup failed"
	}
	if status > 0 {
		return fmt.Sprintf("HTTP %d", status)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	return friendlyTypeName(fmt.Sprintf("%T", err))
}

// friendlyTypeName turns "*net.OpError" into "Op Error (net)".
func friendlyTypeName(typeName string) string {
	cleaned := strings.TrimPrefix(strings.TrimSpace(typeName), "*")
	if cleaned == "" {
		return "Unknown error"
	}
	if idx := strings.LastIndex(cleaned, "/"); idx != -1 {
		cleaned = cleaned[idx+1:]
	}

	pkg, name := "", cleaned
	if idx := strings.Index(name, "."); idx != -1 {
		pkg, name = name[:idx], name[idx+1:]
	}

	pretty := splitCamel(name)
	if pretty == "" {
		pretty = name
	}
	if pkg != "" && pkg != "main" && pkg != "errors" {
		return fmt.Sprintf("%s (%s)", pretty, pkg)
	}
	return pretty
}

func splitCamel(name string) string {
	var words []string
	var current []rune
	runes := []rune(name)

	flush := func() {
		if len(current) == 0 {
			return
		}
		word := string(current)
		if strings.ToUpper(word) != word {
			lower := []rune(strings.ToLower(word))
			lower[0] = unicode.ToUpper(lower[0])
			word = string(lower)
		}
		words = append(words, word)
		current = current[:0]
	}

	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsUpper(r) && (unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower)) {
				flush()
			}
		}
		current = append(current, r)
	}
	flush()
	return strings.Join(words, " ")
}
