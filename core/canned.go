package core

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// CannedQuery is a preconfigured follow-up search link, keyed by alert type.
// The href may contain <%- alert.field %> placeholders that are interpolated
// with the alert's data before display.
type CannedQuery struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Href  string `json:"href"`
}

var cannedPlaceholder = regexp.MustCompile(`<%-([^%]*)%>`)

// InterpolateHref substitutes <%- alert.field %> placeholders in a canned
// query link with values from the record. Unresolvable placeholders are left
// as-is.
func (c *CannedQuery) InterpolateHref(record *AlertRecord) string {
	return cannedPlaceholder.ReplaceAllStringFunc(c.Href, func(chunk string) string {
		fieldRef := cannedPlaceholder.FindStringSubmatch(chunk)[1]
		if value, ok := dereferenceField(record, fieldRef); ok {
			return value
		}
		return chunk
	})
}

// dereferenceField resolves a dotted "alert.x" or "alert.data.x" reference
// against the record.
func dereferenceField(record *AlertRecord, fieldRef string) (string, bool) {
	elements := strings.Split(strings.TrimSpace(fieldRef), ".")
	for i, e := range elements {
		elements[i] = strings.TrimSpace(e)
	}
	if len(elements) < 2 || elements[0] != "alert" {
		return "", false
	}
	switch elements[1] {
	case "type":
		return record.Type, true
	case "entity":
		return record.Entity, true
	case "severity":
		return record.Severity, true
	case "status":
		return string(record.Status), true
	case "analyst":
		return record.AnalystName(), true
	case "sid":
		return record.SID, true
	case "data":
		if len(elements) < 3 {
			return "", false
		}
		value := interface{}(record.Data)
		for _, e := range elements[2:] {
			m, ok := value.(map[string]interface{})
			if !ok {
				return "", false
			}
			if value, ok = m[e]; !ok {
				return "", false
			}
		}
		return stringifyScalar(value)
	}
	return "", false
}

// stringifyScalar renders a decoded JSON leaf value for link interpolation.
// Objects and arrays do not interpolate.
func stringifyScalar(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case nil:
		return "", true
	}
	return "", false
}

// RelativizeLink strips the scheme and host from a results link so that, on a
// search cluster behind a load balancer, the link points at the balancer
// instead of an individual search head.
func RelativizeLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	result := u.Path
	if u.RawQuery != "" {
		result += "?" + u.RawQuery
	}
	return result
}
