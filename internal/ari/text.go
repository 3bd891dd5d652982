package ari

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dtn-amp/agent/internal/amperr"
)

// TextCapable gates the text-form codec behind a build flag, per spec
// section 4.3: a build without the text parser must fail text-form
// operations with a build-capability error rather than silently falling
// back to CBOR.
var TextCapable = true

func requireTextCapability() error {
	if !TextCapable {
		return amperr.New(amperr.KindBuildCapability, "text-form ARI codec not available in this build")
	}
	return nil
}

// FormatText renders a in the ari:/... textual form described in spec
// section 4.3. The AC and AM containers use a notation derived from, but
// not required to equal, any wire grammar; it exists for startup files,
// logs, and test vectors, not for interop. TBL, EXECSET, and RPTSET have
// no text form and fail with a build-capability error.
func FormatText(a ARI) (string, error) {
	if err := requireTextCapability(); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("ari:")
	if err := formatBody(&b, a); err != nil {
		return "", err
	}
	return b.String(), nil
}

func formatBody(b *strings.Builder, a ARI) error {
	switch a.Kind {
	case KindUndefined:
		b.WriteString("/undefined")
		return nil
	case KindObjectRef:
		return formatRef(b, a.Ref)
	case KindLiteral:
		return formatLiteral(b, a.Lit)
	}
	return amperr.New(amperr.KindInternal, "unreachable ARI kind in text formatter")
}

func formatIdent(b *strings.Builder, id Ident) {
	if id.IsInt {
		fmt.Fprintf(b, "%d", id.IntID)
	} else {
		b.WriteString(id.Name)
	}
}

func formatRef(b *strings.Builder, p *ObjectPath) error {
	b.WriteString("//")
	formatIdent(b, p.Org)
	b.WriteByte('/')
	formatIdent(b, p.Model)
	b.WriteByte('/')
	b.WriteString(p.Type.String())
	b.WriteByte('/')
	formatIdent(b, p.Obj)
	if p.Params != nil {
		b.WriteByte('(')
		for i, pr := range p.Params.Pairs {
			if i > 0 {
				b.WriteByte(',')
			}
			if pr.Key.Kind == KindLiteral && pr.Key.Lit.Type == LitTextstr {
				b.WriteString(pr.Key.Lit.Text)
				b.WriteByte('=')
			}
			if err := formatBody(b, pr.Val); err != nil {
				return err
			}
		}
		b.WriteByte(')')
	}
	return nil
}

func formatLiteral(b *strings.Builder, l *Literal) error {
	b.WriteByte('/')
	switch l.Type {
	case LitNull:
		b.WriteString("null")
	case LitBool:
		b.WriteString("bool/")
		b.WriteString(strconv.FormatBool(l.Bool))
	case LitByte:
		b.WriteString("byte/")
		fmt.Fprintf(b, "%d", l.Int64)
	case LitInt:
		b.WriteString("int/")
		fmt.Fprintf(b, "%d", l.Int64)
	case LitVast:
		b.WriteString("vast/")
		fmt.Fprintf(b, "%d", l.Int64)
	case LitUint:
		b.WriteString("uint/")
		fmt.Fprintf(b, "%d", l.Uint64)
	case LitUvast:
		b.WriteString("uvast/")
		fmt.Fprintf(b, "%d", l.Uint64)
	case LitReal32:
		b.WriteString("real32/")
		b.WriteString(strconv.FormatFloat(float64(l.Real32), 'g', -1, 32))
	case LitReal64:
		b.WriteString("real64/")
		b.WriteString(strconv.FormatFloat(l.Real64, 'g', -1, 64))
	case LitTextstr:
		b.WriteString("textstr/")
		b.WriteString(strconv.Quote(l.Text))
	case LitLabel:
		b.WriteString("label/")
		b.WriteString(strconv.Quote(l.Text))
	case LitBytestr:
		b.WriteString("bytestr/h'")
		b.WriteString(hex.EncodeToString(l.Bytes))
		b.WriteByte('\'')
	case LitCBOR:
		b.WriteString("cbor/h'")
		b.WriteString(hex.EncodeToString(l.Bytes))
		b.WriteByte('\'')
	case LitTP:
		b.WriteString("tp/")
		b.WriteString(l.TP.UTC().Format(time.RFC3339Nano))
	case LitTD:
		b.WriteString("td/")
		fmt.Fprintf(b, "%gs", l.TD.Seconds())
	case LitARITYPE:
		b.WriteString("ARITYPE/")
		if l.Type_.Builtin {
			b.WriteString(l.Type_.Lit.String())
		} else {
			return formatRef(b, l.Type_.TypedefAt)
		}
	case LitAC:
		b.WriteString("ac/(")
		for i, it := range l.AC.Items {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := formatBody(b, it); err != nil {
				return err
			}
		}
		b.WriteByte(')')
	case LitAM:
		b.WriteString("am/(")
		for i, p := range l.AM.Pairs {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := formatBody(b, p.Key); err != nil {
				return err
			}
			b.WriteByte('=')
			if err := formatBody(b, p.Val); err != nil {
				return err
			}
		}
		b.WriteByte(')')
	default:
		return amperr.New(amperr.KindBuildCapability, "text form does not support literal type %s", l.Type)
	}
	return nil
}

// ParseText parses the ari:/... textual form produced by FormatText.
func ParseText(s string) (ARI, error) {
	if err := requireTextCapability(); err != nil {
		return ARI{}, err
	}
	const prefix = "ari:"
	if !strings.HasPrefix(s, prefix) {
		return ARI{}, amperr.New(amperr.KindUsage, "text ARI must start with %q", prefix)
	}
	body := s[len(prefix):]
	a, rest, err := parseBody(body)
	if err != nil {
		return ARI{}, err
	}
	if rest != "" {
		return ARI{}, amperr.New(amperr.KindUsage, "unexpected trailing text %q", rest)
	}
	return a, nil
}

func parseBody(s string) (ARI, string, error) {
	if strings.HasPrefix(s, "//") {
		return parseRef(s)
	}
	if !strings.HasPrefix(s, "/") {
		return ARI{}, "", amperr.New(amperr.KindUsage, "malformed ARI text %q", s)
	}
	rest := s[1:]
	if strings.HasPrefix(rest, "undefined") {
		return Undefined(), rest[len("undefined"):], nil
	}
	if strings.HasPrefix(rest, "null") {
		return NullLiteral(), rest[len("null"):], nil
	}
	kind, val, rest, err := splitSegment(rest)
	if err != nil {
		return ARI{}, "", err
	}
	a, err := parseLiteralValue(kind, val)
	return a, rest, err
}

// splitSegment splits "<kind>/<value><rest>" where value is delimited by
// matching parens when present, else runs until the next '/' opening a
// sibling segment is never used (single-level grammar) so we take the
// remainder up to a top-level ',' or ')' belonging to an enclosing
// container, or the end of string.
func splitSegment(s string) (kind, value, rest string, err error) {
	slash := strings.IndexByte(s, '/')
	if slash < 0 {
		return "", "", "", amperr.New(amperr.KindUsage, "expected '/' after type tag in %q", s)
	}
	kind = s[:slash]
	remainder := s[slash+1:]
	value, rest = scanValue(remainder)
	return kind, value, rest, nil
}

// scanValue reads up to the matching close of a leading '(' / '\'' group,
// or otherwise up to the first unescaped ',' or ')' (container
// separators) or end of string.
func scanValue(s string) (value, rest string) {
	if s == "" {
		return "", ""
	}
	if s[0] == '"' {
		i := 1
		for i < len(s) {
			if s[i] == '\\' {
				i += 2
				continue
			}
			if s[i] == '"' {
				i++
				break
			}
			i++
		}
		return s[:i], s[i:]
	}
	if strings.HasPrefix(s, "h'") || strings.HasPrefix(s, "b64'") {
		start := strings.IndexByte(s, '\'')
		end := strings.IndexByte(s[start+1:], '\'')
		if end < 0 {
			return s, ""
		}
		full := start + 1 + end + 1
		return s[:full], s[full:]
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return s[:i], s[i:]
			}
			depth--
		case ',':
			if depth == 0 {
				return s[:i], s[i:]
			}
		}
	}
	return s, ""
}

func parseLiteralValue(kind, val string) (ARI, error) {
	switch kind {
	case "null":
		return NullLiteral(), nil
	case "bool":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return ARI{}, amperr.Wrap(amperr.KindUsage, err, "invalid bool literal %q", val)
		}
		return BoolLiteral(b), nil
	case "byte":
		n, err := strconv.ParseUint(val, 0, 8)
		if err != nil {
			return ARI{}, amperr.Wrap(amperr.KindUsage, err, "invalid byte literal %q", val)
		}
		return ByteLiteral(uint8(n)), nil
	case "int":
		n, err := strconv.ParseInt(val, 0, 32)
		if err != nil {
			return ARI{}, amperr.Wrap(amperr.KindUsage, err, "invalid int literal %q", val)
		}
		return IntLiteral(int32(n)), nil
	case "vast":
		n, err := strconv.ParseInt(val, 0, 64)
		if err != nil {
			return ARI{}, amperr.Wrap(amperr.KindUsage, err, "invalid vast literal %q", val)
		}
		return VastLiteral(n), nil
	case "uint":
		n, err := strconv.ParseUint(val, 0, 32)
		if err != nil {
			return ARI{}, amperr.Wrap(amperr.KindUsage, err, "invalid uint literal %q", val)
		}
		return UintLiteral(uint32(n)), nil
	case "uvast":
		n, err := strconv.ParseUint(val, 0, 64)
		if err != nil {
			return ARI{}, amperr.Wrap(amperr.KindUsage, err, "invalid uvast literal %q", val)
		}
		return UvastLiteral(n), nil
	case "real32":
		f, err := strconv.ParseFloat(val, 32)
		if err != nil {
			return ARI{}, amperr.Wrap(amperr.KindUsage, err, "invalid real32 literal %q", val)
		}
		return Real32Literal(float32(f)), nil
	case "real64":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return ARI{}, amperr.Wrap(amperr.KindUsage, err, "invalid real64 literal %q", val)
		}
		return Real64Literal(f), nil
	case "textstr":
		t, err := strconv.Unquote(val)
		if err != nil {
			return ARI{}, amperr.Wrap(amperr.KindUsage, err, "invalid textstr literal %q", val)
		}
		return TextLiteral(t), nil
	case "label":
		t, err := strconv.Unquote(val)
		if err != nil {
			return ARI{}, amperr.Wrap(amperr.KindUsage, err, "invalid label literal %q", val)
		}
		return LabelLiteral(t), nil
	case "bytestr", "cbor":
		b, err := decodeBinary(val)
		if err != nil {
			return ARI{}, err
		}
		if kind == "bytestr" {
			return BytesLiteral(b), nil
		}
		return CBORLiteral(b), nil
	case "tp":
		t, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return ARI{}, amperr.Wrap(amperr.KindUsage, err, "invalid tp literal %q", val)
		}
		return TPLiteral(t), nil
	case "td":
		d, err := parseTD(val)
		if err != nil {
			return ARI{}, err
		}
		return TDLiteral(d), nil
	case "ARITYPE":
		if lt, ok := findLitTypeByName(val); ok {
			return BuiltinTypeLiteral(lt), nil
		}
		if strings.HasPrefix(val, "//") {
			ref, _, err := parseRef(val)
			if err != nil {
				return ARI{}, err
			}
			return TypeLiteral(TypeTag{TypedefAt: ref.Ref}), nil
		}
		return ARI{}, amperr.New(amperr.KindUsage, "unknown ARITYPE name %q", val)
	case "ac":
		items, err := parseCSVList(val, func(s string) (ARI, error) {
			v, _, err := parseBody(s)
			return v, err
		})
		if err != nil {
			return ARI{}, err
		}
		return ACLiteral(items), nil
	case "am":
		m := &AM{}
		if err := parseCSVPairs(val, m); err != nil {
			return ARI{}, err
		}
		return AMLiteral(m), nil
	default:
		return ARI{}, amperr.New(amperr.KindBuildCapability, "text form does not support literal type %q", kind)
	}
}

func parseTD(val string) (time.Duration, error) {
	if strings.HasSuffix(val, "s") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(val, "s"), 64)
		if err == nil {
			return time.Duration(f * float64(time.Second)), nil
		}
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, amperr.Wrap(amperr.KindUsage, err, "invalid td literal %q", val)
	}
	return d, nil
}

func decodeBinary(val string) ([]byte, error) {
	switch {
	case strings.HasPrefix(val, "h'") && strings.HasSuffix(val, "'"):
		b, err := hex.DecodeString(val[2 : len(val)-1])
		if err != nil {
			return nil, amperr.Wrap(amperr.KindUsage, err, "invalid hex binary literal %q", val)
		}
		return b, nil
	case strings.HasPrefix(val, "b64'") && strings.HasSuffix(val, "'"):
		b, err := base64.StdEncoding.DecodeString(val[4 : len(val)-1])
		if err != nil {
			return nil, amperr.Wrap(amperr.KindUsage, err, "invalid base64 binary literal %q", val)
		}
		return b, nil
	default:
		return nil, amperr.New(amperr.KindUsage, "binary literal must be h'...' or b64'...', got %q", val)
	}
}

func findLitTypeByName(name string) (LitType, bool) {
	for t, n := range litTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

func splitTopLevel(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

func parseCSVList(s string, parse func(string) (ARI, error)) ([]ARI, error) {
	parts := splitTopLevel(s)
	items := make([]ARI, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		v, err := parse(p)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func parseCSVPairs(s string, m *AM) error {
	for _, part := range splitTopLevel(s) {
		if part == "" {
			continue
		}
		eq := topLevelIndex(part, '=')
		if eq < 0 {
			return amperr.New(amperr.KindUsage, "malformed am entry %q, expected key=value", part)
		}
		keyText := part[:eq]
		valText := part[eq+1:]
		var key ARI
		if strings.HasPrefix(keyText, "/") || strings.HasPrefix(keyText, "ari:") {
			v, _, err := parseBody(strings.TrimPrefix(keyText, "ari:"))
			if err != nil {
				return err
			}
			key = v
		} else {
			key = TextLiteral(keyText)
		}
		val, _, err := parseBody(valText)
		if err != nil {
			return err
		}
		m.Set(key, val)
	}
	return nil
}

func topLevelIndex(s string, target byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		default:
			if s[i] == target && depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseRef parses "//<org>/<model>/<obj-type>/<obj-id>[(<param>,…)]" and
// returns the remainder of the input string after the reference.
func parseRef(s string) (ARI, string, error) {
	if !strings.HasPrefix(s, "//") {
		return ARI{}, "", amperr.New(amperr.KindUsage, "object reference must start with //, got %q", s)
	}
	rest := s[2:]
	org, rest, err := parseIdentSegment(rest)
	if err != nil {
		return ARI{}, "", err
	}
	model, rest, err := parseIdentSegment(rest)
	if err != nil {
		return ARI{}, "", err
	}
	typRaw, rest, err := takeSegment(rest)
	if err != nil {
		return ARI{}, "", err
	}
	objType, ok := ParseObjType(typRaw)
	if !ok {
		return ARI{}, "", amperr.New(amperr.KindUsage, "unknown object type %q", typRaw)
	}
	objRaw, rest := scanIdentValue(rest)
	obj := identFromText(objRaw)

	p := ObjectPath{Org: org, Model: model, Type: objType, Obj: obj}
	if strings.HasPrefix(rest, "(") {
		close := matchingParen(rest)
		if close < 0 {
			return ARI{}, "", amperr.New(amperr.KindUsage, "unterminated parameter list in %q", rest)
		}
		inner := rest[1:close]
		m := &AM{}
		if err := parseCSVPairs(inner, m); err != nil {
			return ARI{}, "", err
		}
		p.Params = m
		rest = rest[close+1:]
	}
	return ObjRef(p), rest, nil
}

func matchingParen(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func parseIdentSegment(s string) (Ident, string, error) {
	raw, rest, err := takeSegment(s)
	if err != nil {
		return Ident{}, "", err
	}
	return identFromText(raw), rest, nil
}

func takeSegment(s string) (seg, rest string, err error) {
	slash := strings.IndexByte(s, '/')
	if slash < 0 {
		return "", "", amperr.New(amperr.KindUsage, "expected '/' in %q", s)
	}
	return s[:slash], s[slash+1:], nil
}

// scanIdentValue reads an identifier segment that is the final path
// component, stopping at a following '(' (parameter list) or end of
// input, never at a '/' (identifiers may not contain one).
func scanIdentValue(s string) (value, rest string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '(' {
			return s[:i], s[i:]
		}
	}
	return s, ""
}

func identFromText(s string) Ident {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntIdent(n)
	}
	return NameIdent(s)
}
