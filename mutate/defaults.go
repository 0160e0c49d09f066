package mutate

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/polyquery/accessgraph/model"
	"github.com/polyquery/accessgraph/privacy"
	"github.com/polyquery/accessgraph/schema/expr"
)

// evaluateDefault resolves a field's declared default, if any, for a row
// about to be inserted. viewer supplies auth()-rooted generator arguments
// (e.g. a tenant-scoped default); it may be nil when no generator in the
// model references auth().
func evaluateDefault(f *model.FieldDef, viewer privacy.Viewer) (any, bool, error) {
	if f.Default == nil {
		return nil, false, nil
	}
	if !f.Default.IsGenerator() {
		return f.Default.Literal, true, nil
	}
	v, err := evaluateGenerator(*f.Default.Generator, viewer)
	if err != nil {
		return nil, false, fmt.Errorf("mutate: default for %s: %w", f.Name, err)
	}
	return v, true, nil
}

func evaluateGenerator(e expr.Expr, viewer privacy.Viewer) (any, error) {
	switch {
	case expr.IsCall(e, "cuid"):
		return newCUID(), nil
	case expr.IsCall(e, "uuid"):
		return uuid.New().String(), nil
	case expr.IsCall(e, "nanoid"):
		n := 21
		if len(e.Args) == 1 && e.Args[0].Kind == expr.KindLiteral {
			if lit, ok := e.Args[0].Literal.(int); ok && lit > 0 {
				n = lit
			}
		}
		return newNanoID(n), nil
	case expr.IsCall(e, "ulid"):
		return newULID(), nil
	case expr.IsCall(e, "now"):
		return time.Now().UTC(), nil
	case e.Kind == expr.KindMember && expr.IsAuthCall(*e.Base):
		return resolveAuthMember(e.Member, viewer)
	}
	return nil, fmt.Errorf("unsupported generator expression")
}

func resolveAuthMember(member string, viewer privacy.Viewer) (any, error) {
	if viewer == nil {
		return nil, fmt.Errorf("generator references auth().%s but no viewer is bound to the context", member)
	}
	switch member {
	case "id":
		return viewer.GetID(), nil
	case "tenantId", "tenantID":
		return viewer.GetTenantID(), nil
	default:
		return nil, fmt.Errorf("generator references unsupported auth() member %q", member)
	}
}

const cuidAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newCUID produces a cuid-like collision-resistant identifier: a 'c' prefix
// followed by a millisecond timestamp and random suffix, base36-encoded.
// No cuid library appeared in the retrieval pack, so this is built directly
// on crypto/rand rather than left unimplemented.
func newCUID() string {
	var sb strings.Builder
	sb.WriteByte('c')
	sb.WriteString(toBase36(uint64(time.Now().UnixMilli())))
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	sb.WriteString(toBase36(binary.BigEndian.Uint64(buf[:])))
	return sb.String()
}

func toBase36(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [13]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = cuidAlphabet[n%36]
		n /= 36
	}
	return string(buf[i:])
}

// newNanoID returns a URL-safe random identifier of the given length.
func newNanoID(n int) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
	buf := make([]byte, n)
	raw := make([]byte, n)
	_, _ = rand.Read(raw)
	for i, b := range raw {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}

var base32Enc = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// newULID returns a lexicographically-sortable identifier: a 48-bit
// millisecond timestamp followed by 80 bits of randomness, Crockford
// base32-encoded per the ULID spec.
func newULID() string {
	var buf [16]byte
	ms := uint64(time.Now().UnixMilli())
	buf[0] = byte(ms >> 40)
	buf[1] = byte(ms >> 32)
	buf[2] = byte(ms >> 24)
	buf[3] = byte(ms >> 16)
	buf[4] = byte(ms >> 8)
	buf[5] = byte(ms)
	_, _ = rand.Read(buf[6:])
	return base32Enc.EncodeToString(buf[:])
}
