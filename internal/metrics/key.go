package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// TagScenario is added to every sample and carries the scenario name.
const TagScenario = "scenario"

// TagCheck names the check a checks sample belongs to.
const TagCheck = "check"

// Key identifies a metric series: a metric name plus a tag set.
type Key struct {
	Name string
	Tags map[string]string
}

// NewKey builds a Key, copying tags.
func NewKey(name string, tags map[string]string) Key {
	k := Key{Name: name}
	if len(tags) > 0 {
		k.Tags = make(map[string]string, len(tags))
		for t, v := range tags {
			k.Tags[t] = v
		}
	}
	return k
}

// String renders the key as name{k:v,...} with tags sorted by name.
func (k Key) String() string {
	if len(k.Tags) == 0 {
		return k.Name
	}
	names := make([]string, 0, len(k.Tags))
	for t := range k.Tags {
		names = append(names, t)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(k.Name)
	sb.WriteByte('{')
	for i, t := range names {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(t)
		sb.WriteByte(':')
		sb.WriteString(k.Tags[t])
	}
	sb.WriteByte('}')
	return sb.String()
}

// Matches reports whether every tag of k is present with the same value in tags.
func (k Key) Matches(tags map[string]string) bool {
	for t, v := range k.Tags {
		if tags[t] != v {
			return false
		}
	}
	return true
}

// ParseKey parses "name" or "name{k:v,k2:v2}".
func ParseKey(raw string) (Key, error) {
	raw = strings.TrimSpace(raw)
	open := strings.IndexByte(raw, '{')
	if open < 0 {
		if raw == "" || strings.ContainsAny(raw, "}:, ") {
			return Key{}, fmt.Errorf("invalid metric key %q", raw)
		}
		return Key{Name: raw}, nil
	}
	if !strings.HasSuffix(raw, "}") {
		return Key{}, fmt.Errorf("invalid metric key %q: missing closing brace", raw)
	}
	name := strings.TrimSpace(raw[:open])
	if name == "" {
		return Key{}, fmt.Errorf("invalid metric key %q: empty metric name", raw)
	}
	body := strings.TrimSpace(raw[open+1 : len(raw)-1])
	key := Key{Name: name}
	if body == "" {
		return key, nil
	}
	key.Tags = map[string]string{}
	for _, pair := range strings.Split(body, ",") {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return Key{}, fmt.Errorf("invalid tag %q in metric key %q", pair, raw)
		}
		t := strings.TrimSpace(parts[0])
		v := strings.TrimSpace(parts[1])
		if t == "" {
			return Key{}, fmt.Errorf("empty tag name in metric key %q", raw)
		}
		key.Tags[t] = v
	}
	return key, nil
}
