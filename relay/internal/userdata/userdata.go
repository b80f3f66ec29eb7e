// Package userdata assembles the Conversions API user_data matching
// parameters from a webhook payload and the transport it arrived on.
package userdata

import (
	"net/http"
	"strings"

	"github.com/telhawk-systems/capi-relay/common/httputil"
	"github.com/telhawk-systems/capi-relay/relay/internal/hashing"
	"github.com/telhawk-systems/capi-relay/relay/internal/normalize"
	"github.com/telhawk-systems/capi-relay/relay/internal/payload"
)

// Matching parameter keys.
const (
	Email           = "em"
	Phone           = "ph"
	FirstName       = "fn"
	LastName        = "ln"
	DateOfBirth     = "db"
	Gender          = "ge"
	City            = "ct"
	State           = "st"
	Zip             = "zp"
	Country         = "country"
	ExternalID      = "external_id"
	ClientIPAddress = "client_ip_address"
	ClientUserAgent = "client_user_agent"
	FBC             = "fbc"
	FBP             = "fbp"
)

// IdentityKeys are the matching parameters that are always hashed.
var IdentityKeys = []string{
	Email, Phone, FirstName, LastName, DateOfBirth, Gender,
	City, State, Zip, Country, ExternalID,
}

var canonicalOrder = append(append([]string{}, IdentityKeys...), ClientIPAddress, ClientUserAgent, FBC, FBP)

// Record is a sparse user_data mapping. Unresolved parameters are absent.
type Record map[string]string

// Has reports whether key is set.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Keys returns the populated keys in canonical order, for logging.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for _, k := range canonicalOrder {
		if r.Has(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Transport is the inbound request metadata relevant to matching.
type Transport struct {
	RemoteAddr string
	Header     http.Header
}

// TransportFromRequest captures the matching-relevant parts of r.
func TransportFromRequest(r *http.Request) Transport {
	return Transport{RemoteAddr: r.RemoteAddr, Header: r.Header}
}

// rule derives one parameter: the first present candidate is normalized,
// then hashed when the parameter is an identity field.
type rule struct {
	key       string
	paths     []payload.Path
	normalize func(string) (string, bool)
	hashed    bool
}

func (r rule) apply(p payload.Payload, rec Record) {
	raw, ok := p.FirstString(r.paths...)
	if !ok {
		return
	}

	var value string
	if r.hashed {
		value, ok = hashing.Normalized(raw, r.normalize)
	} else if r.normalize != nil {
		value, ok = r.normalize(raw)
	} else {
		value = raw
	}
	if ok {
		rec[r.key] = value
	}
}

// Builder derives Records. It holds only configuration and is safe for
// concurrent use.
type Builder struct {
	identity []rule
	network  []rule
}

// NewBuilder returns a Builder. defaultCountry replaces country values that
// cannot be mapped to an ISO code; empty means normalize.DefaultCountry.
func NewBuilder(defaultCountry string) *Builder {
	country := func(v string) (string, bool) {
		return normalize.Country(v, defaultCountry)
	}

	return &Builder{
		identity: []rule{
			{key: Email, paths: paths("email", "user_email"), hashed: true},
			{key: Phone, paths: paths("phone", "user_phone"), normalize: normalize.DigitsOnly, hashed: true},
			{key: DateOfBirth, paths: paths("user_birth_date", "birth_date", "data_nascimento"), normalize: normalize.DateToYYYYMMDD, hashed: true},
			{key: City, paths: []payload.Path{payload.P("city"), payload.P("ip_info", "city_normalized"), payload.P("ip_info", "city")}, normalize: normalize.City, hashed: true},
			{key: State, paths: []payload.Path{payload.P("state"), payload.P("ip_info", "region"), payload.P("region")}, normalize: normalize.State, hashed: true},
			{key: Zip, paths: []payload.Path{payload.P("zip"), payload.P("ip_info", "zip"), payload.P("postal_code")}, normalize: normalize.Zip, hashed: true},
			{key: Country, paths: []payload.Path{payload.P("country"), payload.P("ip_info", "country_code")}, normalize: country, hashed: true},
			{key: ExternalID, paths: paths("user_id", "id", "external_id"), hashed: true},
		},
		network: []rule{
			{key: ClientUserAgent, paths: paths("browser", "user_agent")},
			{key: FBC, paths: paths("fbc", "cookie_fbc")},
			{key: FBP, paths: paths("fbp", "cookie_fbp")},
		},
	}
}

// Build derives the user_data record. Parameters that cannot be derived are
// left out; Build never fails.
func (b *Builder) Build(p payload.Payload, t Transport) Record {
	rec := make(Record)

	for _, r := range b.identity {
		r.apply(p, rec)
	}
	names(p, rec)
	gender(p, rec)

	if ip := clientIP(p, t); ip != "" {
		rec[ClientIPAddress] = ip
	}
	// The request's own User-Agent belongs to the webhook sender and is never used.
	for _, r := range b.network {
		r.apply(p, rec)
	}

	return rec
}

// names resolves fn and ln. An explicit name is the first name; without one
// the full name is split and its remainder replaces any explicit surname.
func names(p payload.Payload, rec Record) {
	first, hasFirst := p.String("name")
	last, hasLast := p.FirstString(payload.P("surname"), payload.P("lastname"))

	if !hasFirst {
		if full, ok := p.String("user_full_name"); ok {
			parts := strings.Fields(full)
			if len(parts) > 0 {
				first, hasFirst = parts[0], true
			}
			if len(parts) > 1 {
				last, hasLast = strings.Join(parts[1:], " "), true
			}
		}
	}

	if hasFirst {
		if h, ok := hashing.Hash(first); ok {
			rec[FirstName] = h
		}
	}
	if hasLast {
		if h, ok := hashing.Hash(last); ok {
			rec[LastName] = h
		}
	}
}

func gender(p payload.Payload, rec Record) {
	raw, ok := p.FirstString(payload.P("user_gender"), payload.P("gender"))
	if !ok {
		return
	}

	g := strings.ToLower(raw)
	var code string
	switch {
	case strings.Contains(g, "f"):
		code = "f"
	case strings.Contains(g, "m"):
		code = "m"
	default:
		return
	}

	if h, ok := hashing.Hash(code); ok {
		rec[Gender] = h
	}
}

// clientIP prefers the end user's address reported in the payload, then the
// first X-Forwarded-For entry, then the transport peer address.
func clientIP(p payload.Payload, t Transport) string {
	if ip, ok := p.FirstString(payload.P("ip"), payload.P("ip_info", "ip")); ok {
		return ip
	}
	if t.Header != nil {
		if ip := httputil.ForwardedFor(t.Header); ip != "" {
			return ip
		}
	}
	return httputil.RemoteIP(t.RemoteAddr)
}

func paths(keys ...string) []payload.Path {
	out := make([]payload.Path, len(keys))
	for i, k := range keys {
		out[i] = payload.P(k)
	}
	return out
}
