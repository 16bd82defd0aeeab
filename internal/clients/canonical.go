package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Params is the parameter set of one exchange request before signing.
// Values may be scalars, decimals, nested maps or sequences; nil values are dropped.
type Params map[string]any

// Set stores v under key and returns p for chaining.
func (p Params) Set(key string, v any) Params {
	p[key] = v
	return p
}

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}

	return out
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// canonicalize reduces params to a flat map of strings, dropping nil values.
// Nested maps become compact JSON with sorted keys, sequences become a JSON list of strings.
func canonicalize(params Params) (map[string]string, error) {
	out := make(map[string]string, len(params))
	for key, value := range params {
		if isNil(value) {
			continue
		}

		s, err := canonicalValue(value)
		if err != nil {
			return nil, errors.Wrapf(err, "canonicalize %q", key)
		}
		out[key] = s
	}

	return out, nil
}

func canonicalValue(value any) (string, error) {
	switch v := value.(type) {
	case Params:
		return canonicalNested(v)
	case map[string]any:
		return canonicalNested(v)
	case map[string]string:
		nested := make(Params, len(v))
		for k, s := range v {
			nested[k] = s
		}
		return canonicalNested(nested)
	case []any:
		return canonicalList(v)
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return canonicalList(items)
	case []map[string]any:
		items := make([]any, len(v))
		for i, m := range v {
			items[i] = m
		}
		return canonicalList(items)
	default:
		return scalarString(v)
	}
}

func canonicalNested(m map[string]any) (string, error) {
	flat, err := canonicalize(m)
	if err != nil {
		return "", err
	}

	return encodeJSON(flat)
}

func canonicalList(items []any) (string, error) {
	out := make([]string, 0, len(items))
	for i, item := range items {
		switch nested := item.(type) {
		case Params:
			s, err := canonicalNested(nested)
			if err != nil {
				return "", errors.Wrapf(err, "item %d", i)
			}
			out = append(out, s)
		case map[string]any:
			s, err := canonicalNested(nested)
			if err != nil {
				return "", errors.Wrapf(err, "item %d", i)
			}
			out = append(out, s)
		default:
			s, err := scalarString(item)
			if err != nil {
				return "", errors.Wrapf(err, "item %d", i)
			}
			out = append(out, s)
		}
	}

	return encodeJSON(out)
}

// scalarString renders a scalar in the same form it is sent on the wire.
func scalarString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case decimal.Decimal:
		return v.String(), nil
	case *decimal.Decimal:
		return v.String(), nil
	case decimal.NullDecimal:
		return v.Decimal.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case json.Number:
		return v.String(), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", errors.Errorf("unsupported parameter type %T", value)
	}
}

func isNil(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case *decimal.Decimal:
		return v == nil
	case decimal.NullDecimal:
		return !v.Valid
	}

	return false
}

// encodeJSON produces the canonical JSON form: sorted keys, no HTML escaping,
// non-ASCII escaped as \uXXXX, and no space characters anywhere.
func encodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", errors.Wrap(err, "encode canonical json")
	}

	out := strings.TrimSuffix(buf.String(), "\n")
	out = escapeNonASCII(out)
	out = strings.ReplaceAll(out, " ", "")
	// the venue's verifier normalises single quotes the same way
	out = strings.ReplaceAll(out, "'", `"`)

	return out, nil
}

func escapeNonASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		if r < 0x80 {
			b.WriteRune(r)
			continue
		}

		if r > 0xFFFF {
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&b, `\u%04x\u%04x`, hi, lo)
			continue
		}
		fmt.Fprintf(&b, `\u%04x`, r)
	}

	return b.String()
}
