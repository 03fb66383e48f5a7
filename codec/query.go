package codec

import (
	"net/url"
	"strings"

	"github.com/TrippyLeaf/solana-pay/types"
)

type param struct {
	key   string
	value string
}

// query is an ordered multi-map. url.Values would lose the relative order
// of distinct keys, and repeated references must keep theirs.
type query []param

func (q *query) add(key, value string) {
	*q = append(*q, param{key: key, value: value})
}

// get returns the first value for key.
func (q query) get(key string) (string, bool) {
	for _, p := range q {
		if p.key == key {
			return p.value, true
		}
	}
	return "", false
}

func (q query) getAll(key string) []string {
	var out []string
	for _, p := range q {
		if p.key == key {
			out = append(out, p.value)
		}
	}
	return out
}

func (q query) encode() string {
	if len(q) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, p := range q {
		if i == 0 {
			sb.WriteByte('?')
		} else {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.value))
	}
	return sb.String()
}

func parseQuery(raw string) (query, error) {
	var q query
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, types.WrapError(types.ErrCodeMalformedDescriptor, err, "query key invalid")
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, types.WrapError(types.ErrCodeMalformedDescriptor, err, "query value for %s invalid", key)
		}
		q.add(key, value)
	}
	return q, nil
}
