package seeder

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// Payload is one webhook body as the upstream platform would send it.
type Payload map[string]interface{}

var (
	brStates = []string{"SP", "RJ", "MG", "RS", "PR", "SC", "BA", "PE", "CE", "DF", "GO"}
	brCities = map[string][]string{
		"SP": {"São Paulo", "Campinas", "Santos"},
		"RJ": {"Rio de Janeiro", "Niterói"},
		"MG": {"Belo Horizonte", "Uberlândia"},
		"RS": {"Porto Alegre", "Caxias do Sul"},
		"PR": {"Curitiba", "Londrina"},
		"SC": {"Florianópolis", "Joinville"},
		"BA": {"Salvador", "Feira de Santana"},
		"PE": {"Recife", "Olinda"},
		"CE": {"Fortaleza"},
		"DF": {"Brasília"},
		"GO": {"Goiânia"},
	}
	countrySpellings = []string{"BR", "br", "Brasil", "Brazil", "BRA"}
)

type user struct {
	id        string
	firstName string
	lastName  string
	email     string
	phone     string
	birthDate time.Time
	gender    string
	city      string
	state     string
	zip       string
	country   string
	ip        string
	userAgent string
}

// Generator produces fake webhook payloads. It is not safe for concurrent
// use.
type Generator struct {
	faker    *gofakeit.Faker
	cfg      Config
	users    []user
	deposits int
	now      func() time.Time
}

// NewGenerator returns a generator. A zero seed picks a time-based one.
func NewGenerator(cfg Config) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		faker: gofakeit.New(seed),
		cfg:   cfg,
		now:   time.Now,
	}
}

// Generate builds a payload for eventType. Unknown types still get a user
// profile so the relay's ignore path can be exercised.
func (g *Generator) Generate(eventType string) Payload {
	u := g.pickUser(eventType == "USER_CREATED")
	now := g.now().UTC()

	p := Payload{
		"event":    eventType,
		"event_id": g.faker.UUID(),
		"user_id":  u.id,
		"email":    u.email,
		"browser":  u.userAgent,
		"page_url": fmt.Sprintf("https://app.example.com/%s", strings.ToLower(strings.ReplaceAll(eventType, "_", "-"))),
	}

	switch eventType {
	case "USER_CREATED":
		p["name"] = u.firstName
		p["surname"] = u.lastName
		p["phone"] = u.phone
		p["user_birth_date"] = u.birthDate.Format("2006-01-02")
		p["user_gender"] = u.gender
		p["city"] = u.city
		p["state"] = u.state
		p["zip"] = u.zip
		p["country"] = u.country
		p["ip"] = u.ip
		p["created_at"] = now.Format(time.RFC3339)
	case "USER_LOGIN":
		p["user_full_name"] = u.firstName + " " + u.lastName
		p["ip_info"] = map[string]interface{}{
			"ip":           u.ip,
			"city":         u.city,
			"region":       u.state,
			"country_code": "BR",
		}
		p["logged_at"] = now.Unix()
	case "DEPOSIT_CREATED", "DEPOSIT_PAID":
		g.deposits++
		p["name"] = u.firstName
		p["lastname"] = u.lastName
		p["phone"] = u.phone
		p["ip"] = u.ip
		p["deposit_id"] = fmt.Sprintf("dep_%06d", g.deposits)
		p["amount"] = g.amount()
		p["currency"] = g.cfg.Currency
		p["created_at"] = now.Format(time.RFC3339)
	default:
		p["ip"] = u.ip
	}
	return p
}

// Next picks an event type from the configured list and generates it.
func (g *Generator) Next() Payload {
	return g.Generate(g.faker.RandomString(g.cfg.EventTypes))
}

func (g *Generator) amount() float64 {
	v := g.faker.Float64Range(g.cfg.MinAmount, g.cfg.MaxAmount)
	return math.Round(v*100) / 100
}

// pickUser reuses a known user most of the time so later events share
// identifiers with earlier registrations.
func (g *Generator) pickUser(fresh bool) user {
	if !fresh && len(g.users) > 0 && g.faker.Number(1, 10) <= 7 {
		return g.users[g.faker.Number(0, len(g.users)-1)]
	}

	u := g.newUser()
	if len(g.users) < g.cfg.UserPool {
		g.users = append(g.users, u)
	} else if len(g.users) > 0 {
		g.users[g.faker.Number(0, len(g.users)-1)] = u
	}
	return u
}

func (g *Generator) newUser() user {
	f := g.faker
	first, last := f.FirstName(), f.LastName()
	state := f.RandomString(brStates)

	gender := "M"
	if f.Gender() == "female" {
		gender = "F"
	}

	now := g.now()
	return user{
		id:        f.UUID(),
		firstName: first,
		lastName:  last,
		email:     strings.ToLower(fmt.Sprintf("%s.%s%d@%s", first, last, f.Number(1, 999), f.DomainName())),
		phone:     fmt.Sprintf("+55 (%d) 9%04d-%04d", f.Number(11, 99), f.Number(0, 9999), f.Number(0, 9999)),
		birthDate: f.DateRange(now.AddDate(-70, 0, 0), now.AddDate(-18, 0, 0)),
		gender:    gender,
		city:      f.RandomString(brCities[state]),
		state:     state,
		zip:       fmt.Sprintf("%05d-%03d", f.Number(1000, 99999), f.Number(0, 999)),
		country:   f.RandomString(countrySpellings),
		ip:        f.IPv4Address(),
		userAgent: f.UserAgent(),
	}
}
