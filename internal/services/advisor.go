package services

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	domain "github.com/kalaghar/api/internal/domain"
)

const (
	defaultMaxRecommendations = 3

	TagCheapest        = "cheapest"
	TagFastest         = "fastest"
	TagRecommended     = "recommended"
	TagDistanceUnknown = "distance_unknown"
)

// CarrierRate is one row of the carrier rate card. Fees are paise.
type CarrierRate struct {
	PartnerName   string  `yaml:"partner_name"`
	ServiceLevel  string  `yaml:"service_level"`
	BaseFee       int64   `yaml:"base_fee"`
	PerKm         int64   `yaml:"per_km"`
	PerKg         int64   `yaml:"per_kg"`
	KmPerDay      int     `yaml:"km_per_day"`
	HandlingDays  int     `yaml:"handling_days"`
	MaxDistanceKm int     `yaml:"max_distance_km"`
	MaxWeightKg   float64 `yaml:"max_weight_kg"`
}

func (c CarrierRate) validate() error {
	var problems []string
	if strings.TrimSpace(c.PartnerName) == "" {
		problems = append(problems, "partner_name is required")
	}
	if c.KmPerDay <= 0 {
		problems = append(problems, "km_per_day must be positive")
	}
	if c.BaseFee < 0 || c.PerKm < 0 || c.PerKg < 0 {
		problems = append(problems, "fees must not be negative")
	}
	if c.HandlingDays < 0 || c.MaxDistanceKm < 0 || c.MaxWeightKg < 0 {
		problems = append(problems, "limits must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("carrier %q: %s", c.PartnerName, strings.Join(problems, "; "))
	}
	return nil
}

func (c CarrierRate) eligible(distanceKm int, weightKg float64) bool {
	if c.MaxDistanceKm > 0 && distanceKm > c.MaxDistanceKm {
		return false
	}
	if c.MaxWeightKg > 0 && weightKg > c.MaxWeightKg {
		return false
	}
	return true
}

// DefaultCarrierRates is the built-in domestic rate card.
func DefaultCarrierRates() []CarrierRate {
	return []CarrierRate{
		{PartnerName: "India Post", ServiceLevel: "speed_post", BaseFee: 4000, PerKm: 4, PerKg: 3000, KmPerDay: 300, HandlingDays: 2, MaxWeightKg: 35},
		{PartnerName: "Delhivery", ServiceLevel: "surface", BaseFee: 6000, PerKm: 6, PerKg: 4000, KmPerDay: 500, HandlingDays: 1},
		{PartnerName: "DTDC", ServiceLevel: "standard", BaseFee: 5000, PerKm: 5, PerKg: 3500, KmPerDay: 400, HandlingDays: 1, MaxWeightKg: 60},
		{PartnerName: "Blue Dart", ServiceLevel: "express", BaseFee: 9000, PerKm: 10, PerKg: 6000, KmPerDay: 800, HandlingDays: 1},
		{PartnerName: "Shiprocket Express", ServiceLevel: "express", BaseFee: 5500, PerKm: 7, PerKg: 4500, KmPerDay: 600, HandlingDays: 1, MaxDistanceKm: 2500},
	}
}

type carrierRateFile struct {
	Carriers []CarrierRate `yaml:"carriers"`
}

// LoadCarrierRates reads a YAML rate card of the form `carriers: [...]`.
func LoadCarrierRates(path string) ([]CarrierRate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read carrier rates: %w", err)
	}
	return ParseCarrierRates(raw)
}

// ParseCarrierRates decodes and validates a YAML rate card. Unknown fields are rejected.
func ParseCarrierRates(raw []byte) ([]CarrierRate, error) {
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	var file carrierRateFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode carrier rates: %w", err)
	}
	if len(file.Carriers) == 0 {
		return nil, errors.New("carrier rates: at least one carrier is required")
	}
	var errs []error
	for _, carrier := range file.Carriers {
		if err := carrier.validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return file.Carriers, nil
}

// ShipmentAdvisor ranks carriers for an order's logistics profile. It performs no I/O.
type ShipmentAdvisor struct {
	carriers   []CarrierRate
	maxResults int
}

// NewShipmentAdvisor validates the rate card. An empty card uses DefaultCarrierRates.
func NewShipmentAdvisor(carriers []CarrierRate, maxResults int) (*ShipmentAdvisor, error) {
	if len(carriers) == 0 {
		carriers = DefaultCarrierRates()
	}
	for _, carrier := range carriers {
		if err := carrier.validate(); err != nil {
			return nil, err
		}
	}
	if maxResults <= 0 {
		maxResults = defaultMaxRecommendations
	}
	return &ShipmentAdvisor{
		carriers:   append([]CarrierRate(nil), carriers...),
		maxResults: maxResults,
	}, nil
}

type quote struct {
	carrier CarrierRate
	price   int64
	days    int
}

// Recommend returns at most maxResults carriers sorted by price, then days, then name.
// A zero or degraded distance prices on base fee and weight only.
func (a *ShipmentAdvisor) Recommend(logistics domain.Logistics) []domain.Recommendation {
	distance := logistics.DistanceKm
	unknown := logistics.Degraded || distance <= 0
	if unknown {
		distance = 0
	}
	weight := logistics.PackageWeightKg
	if weight < 0 || math.IsNaN(weight) {
		weight = 0
	}
	billableKg := int64(math.Ceil(weight))

	quotes := make([]quote, 0, len(a.carriers))
	for _, carrier := range a.carriers {
		if !carrier.eligible(distance, weight) {
			continue
		}
		days := carrier.HandlingDays + (distance+carrier.KmPerDay-1)/carrier.KmPerDay
		if days < 1 {
			days = 1
		}
		quotes = append(quotes, quote{
			carrier: carrier,
			price:   carrier.BaseFee + carrier.PerKm*int64(distance) + carrier.PerKg*billableKg,
			days:    days,
		})
	}
	if len(quotes) == 0 {
		return []domain.Recommendation{}
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		if quotes[i].price != quotes[j].price {
			return quotes[i].price < quotes[j].price
		}
		if quotes[i].days != quotes[j].days {
			return quotes[i].days < quotes[j].days
		}
		return quotes[i].carrier.PartnerName < quotes[j].carrier.PartnerName
	})
	if len(quotes) > a.maxResults {
		quotes = quotes[:a.maxResults]
	}

	fastest, recommended := 0, 0
	bestScore := math.MaxInt
	for i, q := range quotes {
		if q.days < quotes[fastest].days {
			fastest = i
		}
		score := i + daysRank(quotes, q.days)
		if score < bestScore {
			bestScore = score
			recommended = i
		}
	}

	out := make([]domain.Recommendation, 0, len(quotes))
	for i, q := range quotes {
		var tags []string
		if i == 0 {
			tags = append(tags, TagCheapest)
		}
		if i == fastest {
			tags = append(tags, TagFastest)
		}
		if i == recommended {
			tags = append(tags, TagRecommended)
		}
		if unknown {
			tags = append(tags, TagDistanceUnknown)
		}
		out = append(out, domain.Recommendation{
			Rank:           i + 1,
			PartnerName:    q.carrier.PartnerName,
			ServiceLevel:   q.carrier.ServiceLevel,
			EstimatedPrice: q.price,
			EstimatedDays:  q.days,
			Tags:           tags,
		})
	}
	return out
}

// daysRank counts quotes strictly faster than days.
func daysRank(quotes []quote, days int) int {
	rank := 0
	for _, q := range quotes {
		if q.days < days {
			rank++
		}
	}
	return rank
}
